package database

import "sync"

// Table names a catalog table whose changes can be observed.
type Table string

const (
	TableMediaItems    Table = "media_items"
	TablePlaylists     Table = "playlists"
	TablePlaylistMedia Table = "playlist_media"
)

// AllTables lists every observable table.
var AllTables = []Table{TableMediaItems, TablePlaylists, TablePlaylistMedia}

type listener struct {
	tables map[Table]struct{}
	ch     chan struct{}
}

// Notifier fans out "table changed" signals to subscribers after a write
// commits. Signals are conflated: a subscriber that has not consumed the
// previous signal is not sent another.
type Notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]*listener
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[int]*listener)}
}

// Subscribe registers interest in the given tables. The returned function
// deregisters the subscription and closes the channel; it is safe to call
// more than once.
func (n *Notifier) Subscribe(tables ...Table) (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	l := &listener{tables: make(map[Table]struct{}, len(tables)), ch: make(chan struct{}, 1)}
	for _, t := range tables {
		l.tables[t] = struct{}{}
	}
	id := n.nextID
	n.nextID++
	n.listeners[id] = l

	var once sync.Once
	return l.ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.listeners, id)
			close(l.ch)
		})
	}
}

// Publish signals every subscriber interested in any of tables.
func (n *Notifier) Publish(tables ...Table) {
	if len(tables) == 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, l := range n.listeners {
		if !l.interested(tables) {
			continue
		}
		select {
		case l.ch <- struct{}{}:
		default:
			// already pending
		}
	}
}

// Len returns the number of live subscriptions.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

func (l *listener) interested(tables []Table) bool {
	for _, t := range tables {
		if _, ok := l.tables[t]; ok {
			return true
		}
	}
	return false
}
