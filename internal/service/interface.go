package service

import (
	"context"
	"fmt"

	"github.com/syncdata/cdc-relay/internal/domain"
)

// SyncService propagates change events to the document store and the
// search index.
type SyncService interface {
	// HandleChangeEvent processes one event to completion. It never returns
	// an error: every failure is reported per sink in the Outcome.
	HandleChangeEvent(ctx context.Context, event *domain.ChangeEvent) domain.Outcome
}

// SearchDeletePolicy decides what a confirmed delete does to the search
// index.
type SearchDeletePolicy string

const (
	// SearchDeleteSkip leaves the search index untouched.
	SearchDeleteSkip SearchDeletePolicy = "skip"
	// SearchDeleteReindex pushes the fetched snapshot, if any, to search.
	SearchDeleteReindex SearchDeletePolicy = "reindex"
	// SearchDeleteDelete removes the document from the search index.
	SearchDeleteDelete SearchDeletePolicy = "delete"
)

// ParseSearchDeletePolicy validates a configured policy name. An empty name
// selects SearchDeleteSkip.
func ParseSearchDeletePolicy(s string) (SearchDeletePolicy, error) {
	switch p := SearchDeletePolicy(s); p {
	case "":
		return SearchDeleteSkip, nil
	case SearchDeleteSkip, SearchDeleteReindex, SearchDeleteDelete:
		return p, nil
	default:
		return "", fmt.Errorf("unknown search delete policy %q", s)
	}
}
