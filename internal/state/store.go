// Package state persists the set of alert ids that have already been handled
// so the listener and subscriber never act on the same alert twice, even
// across restarts.
package state

import (
	"context"
	"fmt"
)

// Store is a durable set of processed alert ids. Implementations are safe
// for concurrent use; a failed mutation leaves the id reported as new.
type Store interface {
	IsNew(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string) error
	Extend(ctx context.Context, ids []string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend rooted at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendJSON:
		s, err := OpenFile(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
