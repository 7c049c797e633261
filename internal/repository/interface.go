package repository

import (
	"context"
	"errors"

	"github.com/syncdata/cdc-relay/internal/domain"
)

var (
	// ErrSnapshotNotFound is returned when no row matches the key.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrInvalidIdentifier is returned for table or column names that cannot
	// be used as SQL identifiers.
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")
)

// SnapshotRepository reads the current state of a row from the system of
// record.
type SnapshotRepository interface {
	// FetchSnapshot returns the full row for key with its primary key also
	// exposed under domain.IDField. It returns ErrSnapshotNotFound when no
	// row matches.
	FetchSnapshot(ctx context.Context, key any) (domain.Snapshot, error)
}
