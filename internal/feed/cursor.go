package feed

import (
	"encoding/base64"
	"encoding/json"
	"math"
)

// Cursor identifies the last item of a page in (score, id) order. A nil
// *Cursor is the start of the feed.
type Cursor struct {
	Score float64 `json:"score"`
	ID    int64   `json:"id"`
}

type cursorWire struct {
	Score *float64 `json:"score"`
	ID    *int64   `json:"id"`
}

// EncodeCursor serialises c into a URL-safe token. A nil cursor encodes to "".
func EncodeCursor(c *Cursor) string {
	if c == nil {
		return ""
	}
	data, err := json.Marshal(c)
	if err != nil {
		// only non-finite scores fail to marshal
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a token from EncodeCursor. Anything else, including
// the empty string, yields nil rather than an error.
func DecodeCursor(token string) *Cursor {
	if token == "" {
		return nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		// tolerate padded tokens
		if data, err = base64.URLEncoding.DecodeString(token); err != nil {
			return nil
		}
	}
	var w cursorWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil
	}
	if w.Score == nil || w.ID == nil || math.IsNaN(*w.Score) || math.IsInf(*w.Score, 0) {
		return nil
	}
	return &Cursor{Score: *w.Score, ID: *w.ID}
}
