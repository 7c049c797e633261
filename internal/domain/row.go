package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// IDField is the canonical document key used by both sinks.
const IDField = "_id"

// Row is a row image: column name to normalized column value.
type Row map[string]any

// Snapshot is a full current-state row fetched from the system of record,
// carrying the primary key a second time under IDField.
type Snapshot map[string]any

// NewSnapshot copies row and exposes id under IDField.
func NewSnapshot(row Row, id any) Snapshot {
	s := make(Snapshot, len(row)+1)
	for k, v := range row {
		s[k] = v
	}
	s[IDField] = id
	return s
}

// ID returns the canonical document key.
func (s Snapshot) ID() (any, bool) {
	id, ok := s[IDField]
	if !ok || id == nil {
		return nil, false
	}
	return id, true
}

// Body returns the snapshot without IDField, for stores that keep the key
// outside the document source.
func (s Snapshot) Body() map[string]any {
	body := make(map[string]any, len(s))
	for k, v := range s {
		if k == IDField {
			continue
		}
		body[k] = v
	}
	return body
}

// Kind is the closed set of value kinds a normalized row value may take.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTime
	KindList
	KindObject
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// KindOf classifies a normalized value.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case int64:
		return KindInt
	case float64:
		return KindFloat
	case string:
		return KindString
	case time.Time:
		return KindTime
	case []any:
		return KindList
	case map[string]any:
		return KindObject
	default:
		return KindUnknown
	}
}

// Normalize converts values produced by the JSON decoder (with UseNumber)
// and by SQL drivers into the closed set reported by KindOf.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil, bool, int64, float64, string:
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return strconv.FormatUint(u, 10)
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint:
		if uint64(t) <= math.MaxInt64 {
			return int64(t)
		}
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t)
		}
		return strconv.FormatUint(t, 10)
	case float32:
		return float64(t)
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}
		return out
	case Row:
		return Normalize(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// NormalizeRow normalizes every column of m.
func NormalizeRow(m map[string]any) Row {
	row := make(Row, len(m))
	for k, v := range m {
		row[k] = Normalize(v)
	}
	return row
}

// KeyString renders a key value for string-keyed stores.
func KeyString(v any) string {
	switch t := Normalize(v).(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}
