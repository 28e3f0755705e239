// Package relay encodes global object ids and pagination cursors.
package relay

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidID = errors.New("invalid global id")

// ToGlobalID encodes typeName and pk as base64("Type:pk").
func ToGlobalID(typeName string, pk int) string {
	return base64.StdEncoding.EncodeToString([]byte(typeName + ":" + strconv.Itoa(pk)))
}

// FromGlobalID decodes a global id into its type name and primary key.
func FromGlobalID(id string) (string, int, error) {
	raw, err := base64.StdEncoding.DecodeString(id)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	typeName, pk, ok := strings.Cut(string(raw), ":")
	if !ok || typeName == "" {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	n, err := strconv.Atoi(pk)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return typeName, n, nil
}

// FromGlobalIDOf decodes id and checks that it refers to typeName.
func FromGlobalIDOf(typeName, id string) (int, error) {
	got, pk, err := FromGlobalID(id)
	if err != nil {
		return 0, err
	}
	if got != typeName {
		return 0, fmt.Errorf("%w: must be of type %s, got %s", ErrInvalidID, typeName, got)
	}
	return pk, nil
}

const cursorPrefix = "cursor:"

// OffsetToCursor encodes a zero-based list offset.
func OffsetToCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

// CursorToOffset decodes a cursor produced by OffsetToCursor.
func CursorToOffset(cursor string) (int, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	s, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	n, err := strconv.Atoi(s)
	// The cursor names the last row seen; MaxInt leaves no offset after it.
	if err != nil || n < 0 || n >= math.MaxInt {
		return 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	return n, nil
}

// PageInfo describes one slice of a connection.
type PageInfo struct {
	HasNextPage     bool
	HasPreviousPage bool
	StartCursor     *string
	EndCursor       *string
}

// Edge pairs a node with its cursor.
type Edge[T any] struct {
	Node   T
	Cursor string
}

// Connection is a forward-paginated slice of a list.
type Connection[T any] struct {
	Edges      []Edge[T]
	PageInfo   PageInfo
	TotalCount int
}

// Args are the forward pagination arguments of a connection field.
type Args struct {
	First *int
	After *string
}

// MaxPageSize bounds first.
const MaxPageSize = 100

// Offsets converts args to an offset and limit.
func (a Args) Offsets() (offset, limit int, err error) {
	limit = MaxPageSize
	if a.First != nil {
		if *a.First < 0 {
			return 0, 0, errors.New("argument first must be non-negative")
		}
		if *a.First > MaxPageSize {
			return 0, 0, fmt.Errorf("argument first must not exceed %d", MaxPageSize)
		}
		limit = *a.First
	}
	if a.After != nil {
		after, err := CursorToOffset(*a.After)
		if err != nil {
			return 0, 0, err
		}
		offset = after + 1
	}
	return offset, limit, nil
}

// NewConnection builds the connection for nodes found at offset in a list
// of total items. An empty slice before the end of the list still reports a
// next page.
func NewConnection[T any](nodes []T, offset, total int) *Connection[T] {
	conn := &Connection[T]{Edges: make([]Edge[T], len(nodes)), TotalCount: total}
	for i, n := range nodes {
		conn.Edges[i] = Edge[T]{Node: n, Cursor: OffsetToCursor(offset + i)}
	}
	if len(nodes) > 0 {
		conn.PageInfo.StartCursor = &conn.Edges[0].Cursor
		conn.PageInfo.EndCursor = &conn.Edges[len(nodes)-1].Cursor
	}
	conn.PageInfo.HasPreviousPage = offset > 0
	conn.PageInfo.HasNextPage = offset+len(nodes) < total
	return conn
}
