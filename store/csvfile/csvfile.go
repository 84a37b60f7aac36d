/*
Package csvfile provides the flat-file implementation of ledger.RecordStore.

FILE FORMAT:
  UTF-8 comma-separated text, one file per section per user:

    id,date,category,description,amount
    1,2024-03-01,Food,Lunch,12.50

  Rows are kept in append order. Amounts always carry two decimals.

TOLERANT READER:
  Load skips rows with the wrong field count or an unparsable id, date or
  amount. A missing or unreadable file loads as an empty ledger.

ATOMIC SAVE:
  Save writes a temporary file next to the target and renames it over the
  target, so a reader never sees a half-written ledger.

USAGE:
  backend := csvfile.NewBackend("./data")
  reg := ledger.NewRegistry(backend, "alice")
  // personal ledger of alice lives in ./data/personal_expenses_alice.csv
*/
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/warp/expense-ledger/ledger"
)

// Header is the first row of every ledger file.
var Header = []string{"id", "date", "category", "description", "amount"}

// ErrInvalidUser is returned for user names that cannot be part of a file name.
var ErrInvalidUser = errors.New("invalid user name")

// Ensure Store implements ledger.RecordStore
var _ ledger.RecordStore = (*Store)(nil)

// =============================================================================
// STORE
// =============================================================================

type Store struct {
	path string
}

// New returns a store for path. The parent directory and a header-only file
// are created when missing.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	s := &Store{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.Save(context.Background(), nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Load reads every well-formed row. It never fails: an absent or unreadable
// file is an empty ledger.
func (s *Store) Load(_ context.Context) ([]ledger.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("ledger file unreadable, loading empty", "path", s.path, "error", err)
		}
		return []ledger.Record{}, nil
	}
	defer f.Close()

	return Decode(f, s.path), nil
}

// Decode reads records in the ledger file format from r, skipping the header
// and every malformed row. source is only used in log messages.
func Decode(r io.Reader, source string) []ledger.Record {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records := []ledger.Record{}
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				slog.Debug("skipping unparsable row", "source", source, "line", line, "error", err)
				continue
			}
			slog.Warn("ledger read aborted", "source", source, "line", line, "error", err)
			break
		}
		if line == 1 {
			continue // header
		}
		rec, err := parseRow(row)
		if err != nil {
			slog.Debug("skipping malformed row", "source", source, "line", line, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

func parseRow(row []string) (ledger.Record, error) {
	if len(row) != len(Header) {
		return ledger.Record{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(row))
	}
	id, err := strconv.Atoi(strings.TrimSpace(row[0]))
	if err != nil {
		return ledger.Record{}, fmt.Errorf("id: %w", err)
	}
	date, err := ledger.ParseDate(row[1])
	if err != nil {
		return ledger.Record{}, fmt.Errorf("date: %w", err)
	}
	amount, err := ledger.ParseAmount(row[4])
	if err != nil {
		return ledger.Record{}, fmt.Errorf("amount: %w", err)
	}
	return ledger.Record{
		ID:          id,
		Date:        date,
		Category:    row[2],
		Description: row[3],
		Amount:      amount,
	}, nil
}

// Save rewrites the whole file with records, in order.
func (s *Store) Save(_ context.Context, records []ledger.Record) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if err := Encode(tmp, records); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := tmp.Chmod(fileMode(s.path)); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", s.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// fileMode is the mode of the existing file at path, or 0644 for a new one.
func fileMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}

// Encode writes the header and one row per record to w.
func Encode(w io.Writer, records []ledger.Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.Write(r.Row()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// =============================================================================
// BACKEND - One file per (section, user) under a directory
// =============================================================================

// Ensure Backend implements ledger.Backend
var _ ledger.Backend = Backend{}

type Backend struct {
	Dir string
}

func NewBackend(dir string) Backend {
	return Backend{Dir: dir}
}

// FileName returns the ledger file name of section for user.
func FileName(info ledger.SectionInfo, user string) string {
	return fmt.Sprintf("%s_%s.csv", info.Filename, user)
}

func (b Backend) Open(info ledger.SectionInfo, user string) (ledger.RecordStore, error) {
	if err := ValidateUser(user); err != nil {
		return nil, err
	}
	return New(filepath.Join(b.Dir, FileName(info, user)))
}

// ValidateUser rejects names that are empty or would escape the data directory.
func ValidateUser(user string) error {
	if strings.TrimSpace(user) == "" ||
		strings.ContainsAny(user, `/\`) ||
		strings.Contains(user, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidUser, user)
	}
	return nil
}
