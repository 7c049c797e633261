package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncdata/cdc-relay/internal/domain"
	pkglog "github.com/syncdata/cdc-relay/pkg/log"
)

func TestActionFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ActionDocumentUpsert, ActionFor("document", domain.ActionUpsert))
	assert.Equal(t, ActionDocumentDelete, ActionFor("document", domain.ActionDelete))
	assert.Equal(t, ActionSearchUpsert, ActionFor("search", domain.ActionUpsert))
	assert.Equal(t, ActionSearchDelete, ActionFor("search", domain.ActionDelete))
}

func TestLog_WritesAuditEntry(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := pkglog.NewWithWriter(pkglog.Config{Level: "info"}, &buf)
	ctx := pkglog.WithLogger(context.Background(), logger)

	Log(ctx, ActionSearchDelete, int64(7), "search document removed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, pkglog.LogTypeAudit, line[pkglog.FieldLogType])
	assert.Equal(t, ActionSearchDelete, line[FieldAction])
	assert.EqualValues(t, 7, line[pkglog.FieldKey])
	assert.Equal(t, "search document removed", line["message"])
}
