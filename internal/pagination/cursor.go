// Package pagination encodes keyset cursors for listings ordered by
// created_at DESC, id ASC.
package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// NextCursorHeader carries the cursor of the following page. It is absent on
// the last page.
const NextCursorHeader = "X-Next-Cursor"

// Cursor is the position after the last item of a page.
type Cursor struct {
	LastID    string
	CreatedAt time.Time
}

var ErrInvalidCursor = errors.New("invalid cursor format")

// EncodeCursor returns an opaque, URL-safe cursor.
func EncodeCursor(lastID string, createdAt time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + lastID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor produced by EncodeCursor. An empty cursor
// decodes to nil.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	ts, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{LastID: id, CreatedAt: createdAt}, nil
}

// NextCursor returns the cursor after a full page, or "" when the page came
// back short and nothing follows.
func NextCursor[T any](items []T, limit int, getID func(T) string, getCreatedAt func(T) time.Time) string {
	if limit <= 0 || len(items) < limit {
		return ""
	}
	last := items[len(items)-1]
	return EncodeCursor(getID(last), getCreatedAt(last))
}
