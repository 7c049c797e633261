package domain

import "time"

// Op is the Debezium operation code of a change envelope.
type Op string

const (
	OpNone   Op = ""
	OpCreate Op = "c"
	OpUpdate Op = "u"
	OpDelete Op = "d"
	OpRead   Op = "r" // initial snapshot read
)

// IsDelete reports whether the change removed the row.
func (o Op) IsDelete() bool { return o == OpDelete }

// ChangeEvent is one raw message read from the change stream.
type ChangeEvent struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Change is a decoded, actionable change envelope: the operation, the row
// image the operation refers to (after for c/u/r, before for d) and the
// primary key value taken from that image.
type Change struct {
	Op  Op
	Row Row
	Key any
}
