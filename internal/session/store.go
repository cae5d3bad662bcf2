package session

import (
	"context"

	id "sentra/pkg/domain"
)

// Store persists sessions. Implementations return sentinel.ErrNotFound for
// unknown IDs.
type Store interface {
	Save(ctx context.Context, session Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
	// IDs snapshots the known session IDs so sweeps can walk them without
	// holding store locks across the scan.
	IDs(ctx context.Context) ([]id.SessionID, error)
}
