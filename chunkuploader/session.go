package chunkuploader

import (
	"regexp"

	"github.com/google/uuid"
)

// SessionID correlates all chunks of one file upload on the receiving side.
// It lives for one upload and is never persisted.
type SessionID string

var sessionIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// NewSessionID returns a random version 4 UUID in its canonical lower case form.
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// ValidSessionID reports whether s has the shape of a version 4 UUID.
func ValidSessionID(s string) bool {
	return sessionIDPattern.MatchString(s)
}

func (id SessionID) String() string {
	return string(id)
}
