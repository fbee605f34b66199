// Package pagex provides the keyset-pagination cursor shared by every
// admin listing endpoint (webhook logs, campaign messages): an opaque
// base64 token encoding a (timestamp, id) position so a caller can resume
// a list without an offset that drifts as rows are inserted concurrently.
package pagex

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cursor is a position in a keyset-paginated list: the millisecond
// timestamp and id of the last row the caller has seen. Ordering by
// (Ms, UID) keeps pagination deterministic even when two rows share a
// timestamp.
type Cursor struct {
	Ms  int64     // Unix milliseconds timestamp
	UID uuid.UUID // Row id, breaks ties within the same millisecond
}

// Encode creates a base64-encoded cursor string. Returns empty string for
// the zero-value cursor (the "first page" sentinel).
func Encode(c Cursor) string {
	if c.Ms == 0 && c.UID == uuid.Nil {
		return ""
	}
	raw := fmt.Sprintf("%d|%s", c.Ms, c.UID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a cursor string produced by Encode. Returns a zero-value
// cursor and false if s is empty or malformed.
func Decode(s string) (Cursor, bool) {
	if s == "" {
		return Cursor{}, false
	}

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, false
	}

	parts := strings.Split(string(b), "|")
	if len(parts) != 2 {
		return Cursor{}, false
	}

	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, false
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return Cursor{}, false
	}

	return Cursor{Ms: ms, UID: id}, true
}

// FromTime builds a Cursor from a row's creation time and id, the shape
// every repo's List method returns as the "next" token.
func FromTime(t time.Time, id uuid.UUID) Cursor {
	return Cursor{Ms: t.UTC().UnixMilli(), UID: id}
}
