package cdc_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncdata/cdc-relay/internal/cdc"
	"github.com/syncdata/cdc-relay/internal/domain"
)

// stringEnvelope builds the double-encoded shape: payload is a JSON string
// whose before/after are JSON strings as well.
func stringEnvelope(t *testing.T, op string, before, after map[string]any) []byte {
	t.Helper()

	payload := map[string]any{}
	if op != "" {
		payload["op"] = op
	}
	if before != nil {
		payload["before"] = mustString(t, before)
	}
	if after != nil {
		payload["after"] = mustString(t, after)
	}

	out, err := json.Marshal(map[string]any{"payload": mustString(t, payload)})
	require.NoError(t, err)
	return out
}

func mustString(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestDecode_UpdateScenario(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"payload":"{\"op\":\"u\",\"after\":\"{\\\"order_id\\\":42,\\\"status\\\":\\\"shipped\\\"}\"}"}`)

	change, err := cdc.NewDecoder("order_id").Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, domain.OpUpdate, change.Op)
	assert.Equal(t, int64(42), change.Key)
	assert.Equal(t, domain.Row{"order_id": int64(42), "status": "shipped"}, change.Row)
}

func TestDecode_DeleteUsesBeforeImage(t *testing.T) {
	t.Parallel()

	raw := stringEnvelope(t, "d", map[string]any{"order_id": 7}, nil)

	change, err := cdc.NewDecoder("order_id").Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, domain.OpDelete, change.Op)
	assert.Equal(t, int64(7), change.Key)
}

func TestDecode_CreateIgnoresBeforeImage(t *testing.T) {
	t.Parallel()

	raw := stringEnvelope(t, "c", map[string]any{"order_id": 1}, map[string]any{"order_id": 2})

	change, err := cdc.NewDecoder("order_id").Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(2), change.Key)
}

func TestDecode_EmbeddedObjects(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"schema":{},"payload":{"op":"c","before":null,"after":{"order_id":"A-1","total":10.5}}}`)

	change, err := cdc.NewDecoder("order_id").Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, domain.OpCreate, change.Op)
	assert.Equal(t, "A-1", change.Key)
	assert.Equal(t, 10.5, change.Row["total"])
}

func TestDecode_MissingOpDecodesAfter(t *testing.T) {
	t.Parallel()

	raw := stringEnvelope(t, "", nil, map[string]any{"order_id": 5})

	change, err := cdc.NewDecoder("order_id").Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.OpNone, change.Op)
	assert.Equal(t, int64(5), change.Key)
}

func TestDecode_Skips(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"empty":                     nil,
		"not json":                  []byte(`not json`),
		"array":                     []byte(`[1,2]`),
		"null":                      []byte(`null`),
		"no payload":                []byte(`{"schema":{}}`),
		"null payload":              []byte(`{"payload":null}`),
		"payload not object":        []byte(`{"payload":"[1]"}`),
		"payload garbage":           []byte(`{"payload":"{oops"}`),
		"malformed after":           []byte(`{"payload":"{\"op\":\"u\",\"after\":\"{broken\"}"}`),
		"missing after":             []byte(`{"payload":"{\"op\":\"u\"}"}`),
		"null key":                  []byte(`{"payload":{"op":"u","after":{"order_id":null}}}`),
		"delete without before":     stringEnvelope(t, "d", nil, map[string]any{"order_id": 1}),
		"other key only":            stringEnvelope(t, "u", nil, map[string]any{"user_id": 1}),
		"trailing brace":            []byte(`{"payload":"{\"op\":\"u\",\"after\":\"{\\\"order_id\\\":42}\"}"}}`),
		"trailing bracket":          []byte(`{"payload":"{\"op\":\"u\",\"after\":\"{\\\"order_id\\\":42}\"}"}]`),
		"trailing value":            []byte(`{"payload":"{\"op\":\"u\",\"after\":\"{\\\"order_id\\\":42}\"}"} {}`),
		"trailing brace in payload": []byte(`{"payload":"{\"op\":\"u\",\"after\":\"{\\\"order_id\\\":42}\"}}"}`),
		"trailing brace in after":   []byte(`{"payload":"{\"op\":\"u\",\"after\":\"{\\\"order_id\\\":42}}\"}"}`),
	}

	dec := cdc.NewDecoder("order_id")
	for name, raw := range cases {
		_, err := dec.Decode(raw)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, cdc.ErrSkip, name)
	}
}
