package contacts

import (
	"context"
	"errors"
	"testing"
)

type fakeSource struct {
	contacts []Contact
	err      error
	calls    int
}

func (f *fakeSource) All(ctx context.Context) ([]Contact, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.contacts, nil
}

func testContacts() []Contact {
	return []Contact{
		{ID: 1, FirstName: "John", LastName: "Smith", FullName: "John Smith", PhoneNumbers: []string{"+1 (415) 555-0100"}},
		{ID: 2, FirstName: "Mary", LastName: "Jones", Nickname: "johnny", FullName: "Mary Jones", PhoneNumbers: []string{"555-0199"}},
		{ID: 3, FirstName: "Ann", FullName: "Ann", PhoneNumbers: []string{"+44 20 7946 0958", "4155550177"}},
	}
}

func TestIndexSearchMatchesAnyNameField(t *testing.T) {
	ix := NewIndex(&fakeSource{contacts: testContacts()})
	got, err := ix.Search(context.Background(), "john")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	// Store order is preserved: John Smith before the nickname match.
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("unexpected order: %d, %d", got[0].ID, got[1].ID)
	}
}

func TestIndexSearchCaseInsensitive(t *testing.T) {
	ix := NewIndex(&fakeSource{contacts: testContacts()})
	got, err := ix.Search(context.Background(), "SMITH")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected John Smith, got %+v", got)
	}
}

func TestIndexSearchNoMatch(t *testing.T) {
	ix := NewIndex(&fakeSource{contacts: testContacts()})
	got, err := ix.Search(context.Background(), "zzz")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestIndexFindByPhoneSuffix(t *testing.T) {
	ix := NewIndex(&fakeSource{contacts: testContacts()})
	c, err := ix.FindByPhone(context.Background(), "4155550100")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.ID != 1 {
		t.Fatalf("expected contact 1, got %+v", c)
	}
}

func TestIndexFindByPhoneFirstMatchWins(t *testing.T) {
	src := &fakeSource{contacts: []Contact{
		{ID: 1, FullName: "A", PhoneNumbers: []string{"+14155550100"}},
		{ID: 2, FullName: "B", PhoneNumbers: []string{"4155550100"}},
	}}
	ix := NewIndex(src)
	c, err := ix.FindByPhone(context.Background(), "415-555-0100")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.ID != 1 {
		t.Fatalf("expected first contact in store order, got %+v", c)
	}
}

func TestIndexFindByPhoneMiss(t *testing.T) {
	ix := NewIndex(&fakeSource{contacts: testContacts()})
	c, err := ix.FindByPhone(context.Background(), "999-9999")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Fatalf("expected no contact, got %+v", c)
	}
}

func TestIndexPropagatesSourceError(t *testing.T) {
	wantErr := errors.New("boom")
	ix := NewIndex(&fakeSource{err: wantErr})
	if _, err := ix.Search(context.Background(), "x"); !errors.Is(err, wantErr) {
		t.Errorf("Search error = %v, want %v", err, wantErr)
	}
	if _, err := ix.FindByPhone(context.Background(), "x"); !errors.Is(err, wantErr) {
		t.Errorf("FindByPhone error = %v, want %v", err, wantErr)
	}
}

func TestIndexWithoutSource(t *testing.T) {
	ix := NewIndex(nil)
	if _, err := ix.Search(context.Background(), "jane"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := ix.FindByPhone(context.Background(), "555"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
