package rpc

import "github.com/google/uuid"

// IDGenerator produces session ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session ids, so journal
// rows sort by connection time. It is stateless and safe for concurrent
// use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. It panics if the random source
// fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
