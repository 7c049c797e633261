// Package cdc decodes Debezium change envelopes into actionable changes.
package cdc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/syncdata/cdc-relay/internal/domain"
)

// ErrSkip signals that an event carries nothing actionable. It is not a
// failure: the event is dropped without touching any sink.
var ErrSkip = errors.New("cdc: skip event")

func skip(reason string) error {
	return fmt.Errorf("%w: %s", ErrSkip, reason)
}

// Decoder turns raw change-event bytes into a domain.Change.
type Decoder struct {
	primaryKey string
}

// NewDecoder creates a decoder that requires primaryKey in the row image.
func NewDecoder(primaryKey string) *Decoder {
	return &Decoder{primaryKey: primaryKey}
}

// PrimaryKey returns the column the decoder keys changes by.
func (d *Decoder) PrimaryKey() string { return d.primaryKey }

// Decode parses the outer message, the payload and the relevant row image.
//
// payload, before and after may each be a JSON-encoded string or an
// embedded object; both shapes are produced by Debezium depending on the
// converter in use. Every non-actionable input returns an error wrapping
// ErrSkip.
func (d *Decoder) Decode(raw []byte) (*domain.Change, error) {
	var outer map[string]json.RawMessage
	if err := unmarshal(raw, &outer); err != nil || outer == nil {
		return nil, skip("message is not a JSON object")
	}

	payloadRaw, ok := outer["payload"]
	if !ok || isNull(payloadRaw) {
		return nil, skip("message has no payload")
	}

	var payload map[string]json.RawMessage
	if err := unmarshalNested(payloadRaw, &payload); err != nil || payload == nil {
		return nil, skip("payload is not a JSON object")
	}

	op := decodeOp(payload["op"])

	imageKey := "after"
	if op.IsDelete() {
		imageKey = "before"
	}
	row := decodeRow(payload[imageKey])

	key, ok := row[d.primaryKey]
	if !ok || key == nil {
		return nil, skip(fmt.Sprintf("row image has no %s", d.primaryKey))
	}

	return &domain.Change{
		Op:  op,
		Row: row,
		Key: key,
	}, nil
}

func decodeOp(raw json.RawMessage) domain.Op {
	if len(raw) == 0 || isNull(raw) {
		return domain.OpNone
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.OpNone
	}
	return domain.Op(s)
}

// decodeRow never fails: a missing or malformed image is an empty row, and
// the caller then skips on the missing primary key.
func decodeRow(raw json.RawMessage) domain.Row {
	if len(raw) == 0 || isNull(raw) {
		return domain.Row{}
	}
	var m map[string]any
	if err := unmarshalNested(raw, &m); err != nil || m == nil {
		return domain.Row{}
	}
	return domain.NormalizeRow(m)
}

// unmarshalNested decodes raw into v, first unwrapping one level of JSON
// string encoding when raw is a string literal.
func unmarshalNested(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return err
		}
		raw = []byte(inner)
	}
	return unmarshal(raw, v)
}

func unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
