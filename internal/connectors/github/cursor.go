package github

import (
	"encoding/base64"
	"encoding/json"
)

// CursorVersion is the current cursor schema version.
const CursorVersion = 1

// Cursor addresses a position in one repository's activity timeline.
// It is opaque to callers: jobs persist the encoded form after every
// page and hand it back to resume.
type Cursor struct {
	// Version is the schema version for future migrations.
	Version int `json:"v"`

	// Page is the next page number to fetch (1-based).
	Page int `json:"page"`
}

// NewCursor creates a cursor pointing at the first page.
func NewCursor() *Cursor {
	return &Cursor{
		Version: CursorVersion,
		Page:    1,
	}
}

// Encode serializes the cursor to a base64-encoded JSON string.
func (c *Cursor) Encode() string {
	if c == nil {
		return ""
	}
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor deserializes a cursor from a base64-encoded JSON string.
// Returns a first-page cursor if the input is empty.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return NewCursor(), nil
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, ErrInvalidCursor
	}
	if cursor.Page < 1 {
		cursor.Page = 1
	}

	return &cursor, nil
}

// Next returns the cursor for the following page.
func (c *Cursor) Next(page int) *Cursor {
	return &Cursor{Version: CursorVersion, Page: page}
}
