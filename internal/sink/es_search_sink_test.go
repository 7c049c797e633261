package sink_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncdata/cdc-relay/internal/domain"
	"github.com/syncdata/cdc-relay/internal/sink"
)

type esRequest struct {
	Method string
	Path   string
	Query  string
	User   string
	Body   map[string]interface{}
}

type fakeES struct {
	mu       sync.Mutex
	requests []esRequest
	status   int
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := esRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
	req.User, _, _ = r.BasicAuth()
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &req.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	status := f.status
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"result":"updated"}`))
}

func (f *fakeES) recorded() []esRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]esRequest(nil), f.requests...)
}

func newESSink(t *testing.T, fake *fakeES) *sink.ESSearchSink {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := sink.NewESClient(sink.ESConfig{
		Addresses: []string{srv.URL},
		Username:  "relay",
		Password:  "secret",
	})
	require.NoError(t, err)

	return sink.NewESSearchSink(client, "orders", "wait_for", 0)
}

func TestESSearchSink_UpsertAsUpdate(t *testing.T) {
	t.Parallel()

	fake := &fakeES{}
	s := newESSink(t, fake)

	snap := domain.NewSnapshot(domain.Row{"order_id": int64(42), "status": "shipped", "total": int64(100)}, int64(42))
	require.NoError(t, s.UpsertAsUpdate(context.Background(), snap))

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/orders/_update/42", reqs[0].Path)
	assert.Equal(t, "refresh=wait_for", reqs[0].Query)
	assert.Equal(t, "relay", reqs[0].User)
	assert.Equal(t, map[string]interface{}{
		"doc": map[string]interface{}{
			"order_id": float64(42),
			"status":   "shipped",
			"total":    float64(100),
		},
		"doc_as_upsert": true,
	}, reqs[0].Body)
}

func TestESSearchSink_UpsertWithoutIDIsIgnored(t *testing.T) {
	t.Parallel()

	fake := &fakeES{}
	s := newESSink(t, fake)

	require.NoError(t, s.UpsertAsUpdate(context.Background(), domain.Snapshot{"status": "shipped"}))
	assert.Empty(t, fake.recorded())
}

func TestESSearchSink_UpsertError(t *testing.T) {
	t.Parallel()

	fake := &fakeES{status: http.StatusBadRequest}
	s := newESSink(t, fake)

	err := s.UpsertAsUpdate(context.Background(), domain.NewSnapshot(domain.Row{"order_id": "A"}, "A"))
	assert.Error(t, err)
}

func TestESSearchSink_Delete(t *testing.T) {
	t.Parallel()

	fake := &fakeES{}
	s := newESSink(t, fake)

	require.NoError(t, s.Delete(context.Background(), int64(7)))

	reqs := fake.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodDelete, reqs[0].Method)
	assert.Equal(t, "/orders/_doc/7", reqs[0].Path)
}

func TestESSearchSink_DeleteMissingIsNoop(t *testing.T) {
	t.Parallel()

	fake := &fakeES{status: http.StatusNotFound}
	s := newESSink(t, fake)

	assert.NoError(t, s.Delete(context.Background(), int64(7)))
}

func TestNewESClient_BadCACert(t *testing.T) {
	t.Parallel()

	_, err := sink.NewESClient(sink.ESConfig{
		Addresses:  []string{"https://localhost:9200"},
		CACertPath: "/nonexistent/ca.pem",
	})
	assert.Error(t, err)
}
