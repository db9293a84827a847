// Package interfaces defines service contracts for networth
package interfaces

import (
	"context"

	"github.com/bobmcallan/networth/internal/models"
)

// LocalStore persists the whole AppData on this machine.
type LocalStore interface {
	// Load returns the stored data. Missing or unreadable data yields
	// models.DefaultAppData rather than an error; an error means the
	// store itself is unusable.
	Load(ctx context.Context) (*models.AppData, error)

	// Save replaces the stored data.
	Save(ctx context.Context, data *models.AppData) error

	// Close releases the underlying database.
	Close() error
}

// RemoteStore mirrors AppData to the cloud document store, one document
// per user.
type RemoteStore interface {
	// FetchOnce reads the user's document. It returns nil, nil when the
	// user has never synced.
	FetchOnce(ctx context.Context, userID string) (*models.Snapshot, error)

	// WriteThrough replaces the user's document and returns its new version.
	WriteThrough(ctx context.Context, userID string, data *models.AppData) (int, error)

	// Subscribe streams every newer version of the user's document until
	// ctx is cancelled, then closes the channel.
	Subscribe(ctx context.Context, userID string) (<-chan models.Snapshot, error)

	// Close releases the connection.
	Close() error
}
