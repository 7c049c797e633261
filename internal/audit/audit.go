package audit

import (
	"context"

	"github.com/syncdata/cdc-relay/internal/domain"
	pkglog "github.com/syncdata/cdc-relay/pkg/log"
)

// Audit actions for downstream writes.
const (
	ActionDocumentUpsert = "document.upsert"
	ActionDocumentDelete = "document.delete"
	ActionSearchUpsert   = "search.upsert"
	ActionSearchDelete   = "search.delete"
)

// Field constants for audit entries.
const (
	FieldAction = "audit_action"
)

// ActionFor joins a sink name and the mutation applied to it, e.g.
// "document.upsert".
func ActionFor(sinkName string, action domain.Action) string {
	return sinkName + "." + string(action)
}

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, key any, msg string) {
	l := pkglog.Ctx(ctx)
	l.Info().
		Str(pkglog.FieldLogType, pkglog.LogTypeAudit).
		Str(FieldAction, action).
		Interface(pkglog.FieldKey, key).
		Msg(msg)
}
