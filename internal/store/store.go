// Package store provides persistence for running tunnel and server records,
// so a later invocation can find, report, and stop processes started by an
// earlier one.
package store

import (
	"context"

	"github.com/mrzlfz/code-server-labs/internal/model"
)

// TunnelStore defines the interface for tunnel record persistence.
type TunnelStore interface {
	// List returns all records sorted by StartedAt descending.
	List(ctx context.Context) ([]model.TunnelRecord, error)
	// Get retrieves a record by its ID.
	Get(ctx context.Context, id string) (*model.TunnelRecord, error)
	// FindByTool returns the records belonging to one tool.
	FindByTool(ctx context.Context, tool string) ([]model.TunnelRecord, error)
	// Create adds a new record.
	Create(ctx context.Context, r *model.TunnelRecord) error
	// Update modifies an existing record.
	Update(ctx context.Context, r *model.TunnelRecord) error
	// Delete removes a record by its ID.
	Delete(ctx context.Context, id string) error
	// Close releases any resources held by the store.
	Close() error
}
