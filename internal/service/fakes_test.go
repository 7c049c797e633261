package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/syncdata/cdc-relay/internal/deadletter"
	"github.com/syncdata/cdc-relay/internal/domain"
	"github.com/syncdata/cdc-relay/internal/repository"
)

// fakeSnapshots serves rows keyed by domain.KeyString(key).
type fakeSnapshots struct {
	rows  map[string]domain.Row
	err   error
	calls int
}

func (f *fakeSnapshots) FetchSnapshot(_ context.Context, key any) (domain.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	row, ok := f.rows[domain.KeyString(key)]
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	return domain.NewSnapshot(row, row["order_id"]), nil
}

// memoryDocuments replaces whole documents, like a document store.
type memoryDocuments struct {
	docs    map[string]domain.Snapshot
	upserts []domain.Snapshot
	deletes []any
	err     error
}

func newMemoryDocuments() *memoryDocuments {
	return &memoryDocuments{docs: map[string]domain.Snapshot{}}
}

func (m *memoryDocuments) Upsert(_ context.Context, snapshot domain.Snapshot) error {
	m.upserts = append(m.upserts, snapshot)
	if m.err != nil {
		return m.err
	}
	id, _ := snapshot.ID()
	m.docs[domain.KeyString(id)] = snapshot
	return nil
}

func (m *memoryDocuments) Delete(_ context.Context, key any) error {
	m.deletes = append(m.deletes, key)
	if m.err != nil {
		return m.err
	}
	delete(m.docs, domain.KeyString(key))
	return nil
}

// memorySearch merges fields into existing documents, like doc_as_upsert.
type memorySearch struct {
	docs    map[string]map[string]any
	upserts []domain.Snapshot
	deletes []any
	err     error
}

func newMemorySearch() *memorySearch {
	return &memorySearch{docs: map[string]map[string]any{}}
}

func (m *memorySearch) UpsertAsUpdate(_ context.Context, snapshot domain.Snapshot) error {
	m.upserts = append(m.upserts, snapshot)
	if m.err != nil {
		return m.err
	}
	id, ok := snapshot.ID()
	if !ok {
		return nil
	}
	doc, exists := m.docs[domain.KeyString(id)]
	if !exists {
		doc = map[string]any{}
		m.docs[domain.KeyString(id)] = doc
	}
	for k, v := range snapshot.Body() {
		doc[k] = v
	}
	return nil
}

func (m *memorySearch) Delete(_ context.Context, key any) error {
	m.deletes = append(m.deletes, key)
	if m.err != nil {
		return m.err
	}
	delete(m.docs, domain.KeyString(key))
	return nil
}

type recordingDeadLetter struct {
	mu      sync.Mutex
	records []*deadletter.Record
}

func (r *recordingDeadLetter) Publish(_ context.Context, rec *deadletter.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *recordingDeadLetter) Close() error { return nil }

// envelope encodes a change the way the connector in front of the orders
// table does: payload, before and after are JSON strings.
func envelope(t *testing.T, op string, before, after map[string]any) []byte {
	t.Helper()

	str := func(v any) string {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return string(b)
	}

	payload := map[string]any{"op": op}
	if before != nil {
		payload["before"] = str(before)
	}
	if after != nil {
		payload["after"] = str(after)
	}
	return []byte(str(map[string]any{"payload": str(payload)}))
}
