// Package page implements cursor pagination over ordered collections.
//
// A page is fetched by scanning strictly after a resume key for one item
// more than requested. The extra item only proves that more data exists; it
// is never returned, and the continuation token is built from the last item
// that was. Consecutive tokens therefore partition the collection with no
// skipped and no repeated items.
package page

import (
	"context"
	"errors"
	"fmt"
)

// Page size bounds.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

var (
	// ErrInvalidPageSize is returned for a non-positive page size.
	ErrInvalidPageSize = errors.New("catcher: invalid page size")

	// ErrInvalidToken is returned for a continuation token that does not
	// verify or was issued for another collection.
	ErrInvalidToken = errors.New("catcher: invalid continuation token")
)

// Page is one bounded slice of an ordered collection.
type Page[T any] struct {
	Items     []T    `json:"items"`
	NextToken string `json:"nextToken,omitempty"`
}

// Source is an ordered collection that can be scanned from a resume key.
type Source[T any] interface {
	// Scan returns up to limit items with keys strictly greater than after,
	// in ascending key order. An empty after starts at the beginning.
	Scan(ctx context.Context, after string, limit int) ([]T, error)

	// Key returns the sort key of an item.
	Key(item T) string
}

// SourceFunc adapts a scan function and a key function to a Source.
type SourceFunc[T any] struct {
	ScanFunc func(ctx context.Context, after string, limit int) ([]T, error)
	KeyFunc  func(item T) string
}

// Scan implements Source.
func (s SourceFunc[T]) Scan(ctx context.Context, after string, limit int) ([]T, error) {
	return s.ScanFunc(ctx, after, limit)
}

// Key implements Source.
func (s SourceFunc[T]) Key(item T) string { return s.KeyFunc(item) }

// Pager holds the token codec and page size limits shared by list endpoints.
type Pager struct {
	codec       *Codec
	defaultSize int
	maxSize     int
}

// NewPager returns a Pager signing tokens with secret. Non-positive sizes
// fall back to DefaultPageSize and MaxPageSize.
func NewPager(secret string, defaultSize, maxSize int) *Pager {
	if maxSize <= 0 {
		maxSize = MaxPageSize
	}
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	if defaultSize > maxSize {
		defaultSize = maxSize
	}
	return &Pager{codec: NewCodec(secret), defaultSize: defaultSize, maxSize: maxSize}
}

// DefaultSize is the page size used when a caller does not ask for one.
func (p *Pager) DefaultSize() int { return p.defaultSize }

// List returns the page of src that follows token. An empty token starts at
// the beginning of the collection. scope names the collection and is bound
// into every token issued, so a token cannot be replayed elsewhere.
func List[T any](ctx context.Context, p *Pager, src Source[T], scope string, size int, token string) (Page[T], error) {
	if size <= 0 {
		return Page[T]{}, fmt.Errorf("%w: %d", ErrInvalidPageSize, size)
	}
	if size > p.maxSize {
		size = p.maxSize
	}

	var after string
	if token != "" {
		key, err := p.codec.Decode(scope, token)
		if err != nil {
			return Page[T]{}, err
		}
		after = key
	}

	items, err := src.Scan(ctx, after, size+1)
	if err != nil {
		return Page[T]{}, err
	}

	out := Page[T]{Items: make([]T, 0, min(len(items), size))}
	if len(items) > size {
		out.Items = append(out.Items, items[:size]...)
		next, err := p.codec.Encode(scope, src.Key(items[size-1]))
		if err != nil {
			return Page[T]{}, err
		}
		out.NextToken = next
		return out, nil
	}
	out.Items = append(out.Items, items...)
	return out, nil
}
