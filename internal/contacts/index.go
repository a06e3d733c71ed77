package contacts

import (
	"context"
	"strings"

	"github.com/sameelarif/imessage-mcp/internal/phone"
)

// Source supplies the full contact snapshot the index works over.
// *Store satisfies it; tests use in-memory fakes.
type Source interface {
	All(ctx context.Context) ([]Contact, error)
}

// Index answers lookup and search queries over a contact source. It holds
// no state of its own; every call re-reads the source.
type Index struct {
	source Source
}

func NewIndex(source Source) *Index {
	return &Index{source: source}
}

// All returns the source's contacts in store order. An index built without
// a source reports ErrStoreUnavailable.
func (ix *Index) All(ctx context.Context) ([]Contact, error) {
	if ix.source == nil {
		return nil, ErrStoreUnavailable
	}
	return ix.source.All(ctx)
}

// Search returns contacts whose first name, last name, nickname, or full
// name contains query, case-insensitively. Results keep store order; they
// are not ranked by relevance.
func (ix *Index) Search(ctx context.Context, query string) ([]Contact, error) {
	all, err := ix.All(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var matched []Contact
	for _, c := range all {
		for _, field := range []string{c.FirstName, c.LastName, c.Nickname, c.FullName} {
			if field != "" && strings.Contains(strings.ToLower(field), q) {
				matched = append(matched, c)
				break
			}
		}
	}
	return matched, nil
}

// FindByPhone returns the first contact in store order with any phone
// number matching the given one. When several contacts share a suffix only
// the first is returned; ties are not reported.
func (ix *Index) FindByPhone(ctx context.Context, number string) (*Contact, error) {
	all, err := ix.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		for _, p := range c.PhoneNumbers {
			if phone.Matches(p, number) {
				found := c
				return &found, nil
			}
		}
	}
	return nil, nil
}
