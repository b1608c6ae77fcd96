package metadata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// durationMP4 reads timescale and duration from the moov/mvhd atom of an
// ISO base media file (m4a, mp4, m4v, mov).
func durationMP4(r io.ReadSeeker) (int64, error) {
	head := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, head); err != nil {
			return 0, fmt.Errorf("moov atom not found: %w", err)
		}
		size := int64(binary.BigEndian.Uint32(head[0:4]))
		if size < 8 {
			return 0, errors.New("invalid atom size")
		}
		if string(head[4:8]) == "moov" {
			return readMvhd(r, size-8)
		}
		if _, err := r.Seek(size-8, io.SeekCurrent); err != nil {
			return 0, err
		}
	}
}

func readMvhd(r io.ReadSeeker, limit int64) (int64, error) {
	head := make([]byte, 8)
	for read := int64(0); read < limit; {
		if _, err := io.ReadFull(r, head); err != nil {
			return 0, err
		}
		size := int64(binary.BigEndian.Uint32(head[0:4]))
		if size < 8 {
			return 0, errors.New("invalid sub-atom size")
		}
		if string(head[4:8]) != "mvhd" {
			if _, err := r.Seek(size-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			read += size
			continue
		}

		version := make([]byte, 4) // version + flags
		if _, err := io.ReadFull(r, version); err != nil {
			return 0, err
		}

		var timescale, units uint64
		if version[0] == 1 {
			buf := make([]byte, 8+8+4+8)
			if _, err := io.ReadFull(r, buf); err != nil {
				return 0, err
			}
			timescale = uint64(binary.BigEndian.Uint32(buf[16:20]))
			units = binary.BigEndian.Uint64(buf[20:28])
		} else {
			buf := make([]byte, 4+4+4+4)
			if _, err := io.ReadFull(r, buf); err != nil {
				return 0, err
			}
			timescale = uint64(binary.BigEndian.Uint32(buf[8:12]))
			units = uint64(binary.BigEndian.Uint32(buf[12:16]))
		}
		if timescale == 0 {
			return 0, errors.New("invalid timescale")
		}
		return int64(units * 1000 / timescale), nil
	}
	return 0, errors.New("mvhd atom not found")
}
