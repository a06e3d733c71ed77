package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrStoreUnavailable indicates no contact database could be located or
// opened on this host. It is terminal for any call that needs contacts and
// is never silently downgraded to an empty result.
var ErrStoreUnavailable = errors.New("contacts: store unavailable")

const addressBookFile = "AddressBook-v22.abcddb"

// Store reads the macOS AddressBook database. The handle is opened once by
// the host, read-only, and closed on shutdown. A mutex serializes query
// execution so concurrent tool calls stay safe on a single connection.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// Locate returns the path of the contact database, preferring iCloud-synced
// sources under Sources/<uuid>/ over the flat local file.
func Locate(root string) (string, error) {
	sourcesDir := filepath.Join(root, "Sources")
	if entries, err := os.ReadDir(sourcesDir); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			candidate := filepath.Join(sourcesDir, entry.Name(), addressBookFile)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}
	local := filepath.Join(root, addressBookFile)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}
	return "", fmt.Errorf("%w: no %s under %s", ErrStoreUnavailable, addressBookFile, root)
}

// DefaultRoot returns the standard AddressBook directory for the current user.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Library", "Application Support", "AddressBook")
}

// Open opens the contact database at path read-only.
func Open(log *slog.Logger, path string) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty database path", ErrStoreUnavailable)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStoreUnavailable, path)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStoreUnavailable, path, err)
	}
	s := &Store{
		db:     db,
		path:   path,
		logger: log.With(slog.String("component", "contacts")),
	}
	s.logger.Info("contact store opened", slog.String("path", path))
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// All returns every named contact with its phone numbers and email
// addresses, ordered by (first name, last name) as collated by the store.
func (s *Store) All(ctx context.Context) ([]Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.Z_PK, COALESCE(r.ZFIRSTNAME, ''), COALESCE(r.ZLASTNAME, ''), COALESCE(r.ZNICKNAME, '')
		FROM ZABCDRECORD r
		WHERE r.ZFIRSTNAME IS NOT NULL OR r.ZLASTNAME IS NOT NULL
		ORDER BY r.ZFIRSTNAME, r.ZLASTNAME`)
	if err != nil {
		return nil, fmt.Errorf("contacts: query records: %w", err)
	}
	defer rows.Close()

	var result []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Nickname); err != nil {
			return nil, fmt.Errorf("contacts: scan record: %w", err)
		}
		c.FullName = fullName(c.FirstName, c.LastName)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contacts: iterate records: %w", err)
	}

	for i := range result {
		phones, err := s.relatedValues(ctx, `SELECT ZFULLNUMBER FROM ZABCDPHONENUMBER WHERE ZOWNER = ?`, result[i].ID)
		if err != nil {
			return nil, fmt.Errorf("contacts: phones for %d: %w", result[i].ID, err)
		}
		emails, err := s.relatedValues(ctx, `SELECT ZADDRESS FROM ZABCDEMAILADDRESS WHERE ZOWNER = ?`, result[i].ID)
		if err != nil {
			return nil, fmt.Errorf("contacts: emails for %d: %w", result[i].ID, err)
		}
		result[i].PhoneNumbers = phones
		result[i].Emails = emails
	}
	return result, nil
}

// relatedValues collects non-empty strings from a single-column query.
// Callers hold s.mu.
func (s *Store) relatedValues(ctx context.Context, query string, owner int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid && v.String != "" {
			values = append(values, v.String)
		}
	}
	return values, rows.Err()
}
