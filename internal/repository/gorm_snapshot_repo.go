package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/syncdata/cdc-relay/internal/domain"
)

// KeyParam is the named bind parameter a custom snapshot query must use for
// the primary key value.
const KeyParam = "id"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SnapshotConfig describes how a snapshot row is looked up.
type SnapshotConfig struct {
	Table       string
	PrimaryKey  string
	Query       string   // optional; replaces the table lookup, must reference @id
	JSONColumns []string // columns decoded from JSON text into nested values
	Timeout     time.Duration
}

// GormSnapshotRepository implements SnapshotRepository using GORM.
type GormSnapshotRepository struct {
	db          *gorm.DB
	table       string
	primaryKey  string
	query       string
	jsonColumns map[string]struct{}
	timeout     time.Duration
}

// NewGormSnapshotRepository validates cfg and creates a GORM-backed
// snapshot repository.
func NewGormSnapshotRepository(db *gorm.DB, cfg SnapshotConfig) (*GormSnapshotRepository, error) {
	if !identifierPattern.MatchString(cfg.PrimaryKey) || strings.Contains(cfg.PrimaryKey, ".") {
		return nil, fmt.Errorf("%w: primary key %q", ErrInvalidIdentifier, cfg.PrimaryKey)
	}

	query := strings.TrimSpace(cfg.Query)
	if query == "" {
		if !identifierPattern.MatchString(cfg.Table) {
			return nil, fmt.Errorf("%w: table %q", ErrInvalidIdentifier, cfg.Table)
		}
	} else if !strings.Contains(query, "@"+KeyParam) {
		return nil, fmt.Errorf("snapshot query must reference @%s", KeyParam)
	}

	jsonColumns := make(map[string]struct{}, len(cfg.JSONColumns))
	for _, c := range cfg.JSONColumns {
		if c = strings.TrimSpace(c); c != "" {
			jsonColumns[c] = struct{}{}
		}
	}

	return &GormSnapshotRepository{
		db:          db,
		table:       cfg.Table,
		primaryKey:  cfg.PrimaryKey,
		query:       query,
		jsonColumns: jsonColumns,
		timeout:     cfg.Timeout,
	}, nil
}

// FetchSnapshot looks the row up by primary key. The key is always passed
// as a bound parameter.
func (r *GormSnapshotRepository) FetchSnapshot(ctx context.Context, key any) (domain.Snapshot, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var rows []map[string]interface{}
	tx := r.db.WithContext(ctx)
	if r.query != "" {
		tx = tx.Raw(r.query, map[string]interface{}{KeyParam: key}).Scan(&rows)
	} else {
		tx = tx.Table(r.table).
			Where(clause.Eq{Column: clause.Column{Name: r.primaryKey}, Value: key}).
			Limit(1).
			Find(&rows)
	}
	if tx.Error != nil {
		return nil, fmt.Errorf("snapshot lookup for %v: %w", key, tx.Error)
	}
	if len(rows) == 0 {
		return nil, ErrSnapshotNotFound
	}

	row := domain.NormalizeRow(r.decodeJSONColumns(rows[0]))

	id, ok := row[r.primaryKey]
	if !ok || id == nil {
		id = domain.Normalize(key)
	}
	return domain.NewSnapshot(row, id), nil
}

func (r *GormSnapshotRepository) decodeJSONColumns(m map[string]interface{}) map[string]interface{} {
	for col := range r.jsonColumns {
		var raw []byte
		switch v := m[col].(type) {
		case string:
			raw = []byte(v)
		case []byte:
			raw = v
		default:
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var nested interface{}
		if err := dec.Decode(&nested); err != nil {
			continue // not JSON, keep the text value
		}
		m[col] = nested
	}
	return m
}
