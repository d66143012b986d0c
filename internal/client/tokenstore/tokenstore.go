/*
Package tokenstore persists the session token between client runs.

A Store holds at most one opaque token and never validates it. Stores that can observe
changes made elsewhere, by another process or another part of the program, also implement
Watcher.
*/
package tokenstore

import "context"

// Store reads and writes the session token. Set("") removes it.
type Store interface {
	Get() (string, bool)
	Set(token string) error
}

// Watcher reports token changes. The returned channel receives a value after every
// change (coalesced while unread) and is closed when ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// notify performs a non-blocking send; a pending value already covers this change.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
