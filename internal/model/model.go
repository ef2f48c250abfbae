// Package model defines the broker's persisted record types: Message and
// Topic. Both are immutable once constructed; updates to a Topic produce a
// new value rather than mutating fields shared with concurrent readers.
package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	uuid "github.com/hashicorp/go-uuid"
)

// ID is a 128-bit identifier, server-assigned for both Messages and Topics.
type ID [16]byte

// NewID generates a fresh random 128-bit identifier.
func NewID() (ID, error) {
	raw, err := uuid.GenerateRandomBytes(16)
	if err != nil {
		return ID{}, err
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}

func (id ID) String() string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", id[0:4], id[4:6], id[6:8], id[8:10], id[10:16])
}

// IsZero reports whether id is the zero value (never a valid assigned ID).
func (id ID) IsZero() bool { return id == ID{} }

// Retention is a topic's eviction window: zero means unbounded.
type Retention struct {
	Minutes float64
	Bounded bool
}

// Unbounded is the zero-value retention: the topic is never swept.
var Unbounded = Retention{}

// Topic is a named, creator-attributed message stream.
type Topic struct {
	ID        ID
	Name      string
	Creator   string
	CreatedAt time.Time
	Retention Retention
}

// WithUpdate returns a copy of t with name/retention replaced. The caller is
// responsible for re-checking name uniqueness before committing the result.
func (t Topic) WithUpdate(name string, retention Retention) Topic {
	t.Name = name
	t.Retention = retention
	return t
}

// Message is an immutable post to a Topic.
type Message struct {
	ID        ID
	TopicID   ID
	Author    string
	Content   string
	Timestamp time.Time
	Key       *string
}

// SanitizeContent trims surrounding whitespace and strips ASCII control
// characters other than TAB and SPACE, per the broker's content policy.
// The empty string is a valid result and signals InvalidContent upstream.
func SanitizeContent(raw string) string {
	trimmed := strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		if r == '\t' || r == ' ' {
			b.WriteRune(r)
			continue
		}
		if r <= unicode.MaxASCII && unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
