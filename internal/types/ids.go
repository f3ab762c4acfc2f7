package types

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

type EventID string
type ForkID string
type SessionID string
type JobID string
type ToolUseID string

const shortIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
const shortIDLength = 8

// NewEventID returns a UUIDv7: time-ordered, so lexicographic order on
// event IDs matches emission order.
func NewEventID() EventID {
	return EventID(uuid.Must(uuid.NewV7()).String())
}

// NewSessionID returns a UUIDv7 session identifier, generated upfront so
// the worker can be told its session ID before it starts.
func NewSessionID() SessionID {
	return SessionID(uuid.Must(uuid.NewV7()).String())
}

func NewForkID() ForkID {
	return ForkID(newShortID())
}

func NewJobID() JobID {
	return JobID(newShortID())
}

// newShortID generates an 8-char lowercase alphanumeric ID, short enough
// to type into a `done` command by hand.
func newShortID() string {
	var b strings.Builder
	b.Grow(shortIDLength)
	for i := 0; i < shortIDLength; i++ {
		b.WriteByte(shortIDAlphabet[rand.Intn(len(shortIDAlphabet))])
	}
	return b.String()
}
