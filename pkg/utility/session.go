package utility

import (
	"github.com/google/uuid"
)

// SessionID identifies one loaded replay session. Every event posted while the
// session is active carries it, so late consumers can drop stale events.
type SessionID = uuid.UUID

func NewSessionID() SessionID {
	return uuid.Must(uuid.NewV7())
}
