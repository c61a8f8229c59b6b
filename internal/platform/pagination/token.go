package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Cursor is the payload carried inside page tokens. Listings are offset based.
type Cursor struct {
	Offset int `json:"o"`
}

// EncodeToken serialises the cursor into a base64 URL-safe page token. The first page has no token.
func EncodeToken(cursor Cursor) string {
	if cursor.Offset <= 0 {
		return ""
	}
	data, _ := json.Marshal(cursor)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeToken parses a token produced by EncodeToken.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if cursor.Offset < 0 {
		return Cursor{}, fmt.Errorf("%w: negative offset", ErrInvalidPageToken)
	}
	return cursor, nil
}

// Window resolves the LIMIT and OFFSET for a page. The limit asks for one extra row so
// callers can tell whether another page exists.
func Window(pageSize int, pageToken string) (limit, offset int, err error) {
	cursor, err := DecodeToken(pageToken)
	if err != nil {
		return 0, 0, err
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > DefaultMaxPageSize {
		pageSize = DefaultMaxPageSize
	}
	return pageSize + 1, cursor.Offset, nil
}

// Trim drops the look-ahead row fetched by Window and returns the token for the next page.
func Trim[T any](items []T, limit, offset int) ([]T, string) {
	pageSize := limit - 1
	if pageSize < 0 || len(items) <= pageSize {
		return items, ""
	}
	return items[:pageSize], EncodeToken(Cursor{Offset: offset + pageSize})
}
