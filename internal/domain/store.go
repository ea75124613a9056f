package domain

import "context"

// ProfileStore is the backing store for per-page profiles.
type ProfileStore interface {
	Get(ctx context.Context, pageID string) (*PageProfile, error)
	Put(ctx context.Context, profile *PageProfile) error
	Delete(ctx context.Context, pageID string) error
	List(ctx context.Context) ([]*PageProfile, error)
	Close() error
}
