package contacts

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// writeAddressBook creates a minimal AddressBook-shaped database.
func writeAddressBook(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	schema := `
		CREATE TABLE ZABCDRECORD (
			Z_PK INTEGER PRIMARY KEY,
			ZFIRSTNAME TEXT,
			ZLASTNAME TEXT,
			ZNICKNAME TEXT
		);
		CREATE TABLE ZABCDPHONENUMBER (
			ZOWNER INTEGER,
			ZFULLNUMBER TEXT
		);
		CREATE TABLE ZABCDEMAILADDRESS (
			ZOWNER INTEGER,
			ZADDRESS TEXT
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatal(err)
	}
	inserts := []string{
		`INSERT INTO ZABCDRECORD VALUES (1, 'John', 'Smith', NULL)`,
		`INSERT INTO ZABCDRECORD VALUES (2, 'Ann', NULL, 'annie')`,
		`INSERT INTO ZABCDRECORD VALUES (3, NULL, NULL, 'ghost')`, // nameless, excluded by All
		`INSERT INTO ZABCDPHONENUMBER VALUES (1, '+1 (415) 555-0100')`,
		`INSERT INTO ZABCDPHONENUMBER VALUES (1, '415-555-0101')`,
		`INSERT INTO ZABCDEMAILADDRESS VALUES (1, 'john@example.com')`,
		`INSERT INTO ZABCDPHONENUMBER VALUES (2, '555-0199')`,
	}
	for _, stmt := range inserts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
}

func TestStoreAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), addressBookFile)
	writeAddressBook(t, path)

	store, err := Open(nil, path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	all, err := store.All(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 named contacts, got %d", len(all))
	}
	// Ordered by (first, last): Ann before John.
	if all[0].FullName != "Ann" {
		t.Errorf("first contact = %q, want Ann", all[0].FullName)
	}
	if all[1].FullName != "John Smith" {
		t.Errorf("second contact = %q, want John Smith", all[1].FullName)
	}
	if len(all[1].PhoneNumbers) != 2 || all[1].PhoneNumbers[0] != "+1 (415) 555-0100" {
		t.Errorf("unexpected phones: %v", all[1].PhoneNumbers)
	}
	if len(all[1].Emails) != 1 || all[1].Emails[0] != "john@example.com" {
		t.Errorf("unexpected emails: %v", all[1].Emails)
	}
}

func TestOpenMissingStore(t *testing.T) {
	_, err := Open(nil, filepath.Join(t.TempDir(), "nope.abcddb"))
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
}

func TestLocatePrefersSources(t *testing.T) {
	root := t.TempDir()
	sourceDir := filepath.Join(root, "Sources", "ABCD-1234")
	if err := os.MkdirAll(sourceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	sourcePath := filepath.Join(sourceDir, addressBookFile)
	localPath := filepath.Join(root, addressBookFile)
	for _, p := range []string{sourcePath, localPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := Locate(root)
	if err != nil {
		t.Fatal(err)
	}
	if got != sourcePath {
		t.Errorf("Locate = %q, want iCloud source %q", got, sourcePath)
	}
}

func TestLocateFallsBackToLocal(t *testing.T) {
	root := t.TempDir()
	localPath := filepath.Join(root, addressBookFile)
	if err := os.WriteFile(localPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Locate(root)
	if err != nil {
		t.Fatal(err)
	}
	if got != localPath {
		t.Errorf("Locate = %q, want %q", got, localPath)
	}
}

func TestLocateMissing(t *testing.T) {
	_, err := Locate(t.TempDir())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
}

func TestFullName(t *testing.T) {
	cases := []struct {
		first, last, want string
	}{
		{"John", "Smith", "John Smith"},
		{"John", "", "John"},
		{"", "Smith", "Smith"},
		{"", "", "Unknown"},
	}
	for _, tc := range cases {
		if got := fullName(tc.first, tc.last); got != tc.want {
			t.Errorf("fullName(%q, %q) = %q, want %q", tc.first, tc.last, got, tc.want)
		}
	}
}
