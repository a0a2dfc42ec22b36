// Package csvfile stores known-valid addresses and validation results in two
// flat CSV files. Files are created with a header row on first write, scanned
// on every read, and appended to on insert. Updating an existing known-valid
// key, or dropping expired rows, rewrites the whole file.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ignite/email-validator/internal/domain"
)

var (
	knownValidHeader = []string{"EMAIL", "VALIDATED_AT", "SOURCE", "EXPIRES_AT"}
	resultHeader     = []string{
		"ORIGINAL_EMAIL", "CORRECTED_EMAIL", "STATUS", "VALIDATED_AT",
		"RECHECK_NEEDED", "SOURCE", "ID", "EXPIRES_AT",
	}
)

// ErrMalformedRow is returned when a data row has the wrong column count.
var ErrMalformedRow = errors.New("malformed csv row")

// table is a CSV file guarded by a mutex. All access to the file goes
// through it so readers never observe a half-written rewrite.
type table struct {
	mu     sync.Mutex
	path   string
	header []string
}

func (t *table) readAll() ([][]string, error) {
	f, err := os.Open(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", t.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", t.path, err)
		}
		if first {
			first = false
			if len(rec) > 0 && rec[0] == t.header[0] {
				continue
			}
		}
		if len(rec) != len(t.header) {
			return nil, fmt.Errorf("%s: %w: got %d columns", t.path, ErrMalformedRow, len(rec))
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func (t *table) append(row []string) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", t.path, err)
	}
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", t.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", t.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(t.header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("writing row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// rewrite replaces the file atomically with header plus rows. The temp file
// never outlives a failed rewrite.
func (t *table) rewrite(rows [][]string) (err error) {
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", t.path, err)
	}
	tmp := t.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(t.header); err != nil {
		f.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("writing rows: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("replacing %s: %w", t.path, err)
	}
	return nil
}

// live drops rows whose expiry column has passed. pruned reports whether
// anything was dropped.
func live(rows [][]string, expiresCol int, now time.Time) (kept [][]string, pruned bool) {
	kept = rows[:0:0]
	for _, row := range rows {
		if expired(row[expiresCol], now) {
			pruned = true
			continue
		}
		kept = append(kept, row)
	}
	return kept, pruned
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// expired treats an unparseable expiry as already expired.
func expired(raw string, now time.Time) bool {
	at, err := parseTime(raw)
	if err != nil {
		return true
	}
	return !now.Before(at)
}

// KnownValid is a validation.KnownValidStore backed by a CSV file.
type KnownValid struct {
	t   table
	now func() time.Time
}

// NewKnownValid returns a store writing to path. The file is created lazily.
func NewKnownValid(path string) *KnownValid {
	return &KnownValid{
		t:   table{path: path, header: knownValidHeader},
		now: time.Now,
	}
}

// Get returns the unexpired entry for email, or nil.
func (s *KnownValid) Get(ctx context.Context, email string) (*domain.KnownValidEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	rows, err := s.t.readAll()
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, row := range rows {
		if !strings.EqualFold(row[0], email) || expired(row[3], now) {
			continue
		}
		validatedAt, err := parseTime(row[1])
		if err != nil {
			return nil, fmt.Errorf("parsing VALIDATED_AT for %s: %w", row[0], err)
		}
		return &domain.KnownValidEntry{Email: row[0], ValidatedAt: validatedAt, Source: row[2]}, nil
	}
	return nil, nil
}

// Put appends a new row. The file is rewritten instead when the key already
// exists or expired rows can be dropped.
func (s *KnownValid) Put(ctx context.Context, entry domain.KnownValidEntry, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.t.mu.Lock()
	defer s.t.mu.Unlock()

	key := strings.ToLower(entry.Email)
	row := []string{key, formatTime(entry.ValidatedAt), entry.Source, formatTime(s.now().Add(ttl))}

	rows, err := s.t.readAll()
	if err != nil {
		return err
	}
	rows, pruned := live(rows, 3, s.now())
	for i := range rows {
		if strings.EqualFold(rows[i][0], key) {
			rows[i] = row
			return s.t.rewrite(rows)
		}
	}
	if pruned {
		return s.t.rewrite(append(rows, row))
	}
	return s.t.append(row)
}

// ResultLog is a validation.ResultLog backed by a CSV file.
type ResultLog struct {
	t   table
	now func() time.Time
}

// NewResultLog returns a log writing to path. The file is created lazily.
func NewResultLog(path string) *ResultLog {
	return &ResultLog{
		t:   table{path: path, header: resultHeader},
		now: time.Now,
	}
}

// Append adds one row. Live rows are never touched; expired rows are
// dropped by rewriting the file.
func (l *ResultLog) Append(ctx context.Context, entry domain.ResultLogEntry, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.t.mu.Lock()
	defer l.t.mu.Unlock()

	row := []string{
		entry.OriginalEmail,
		entry.CorrectedEmail,
		string(entry.Status),
		formatTime(entry.ValidatedAt),
		strconv.FormatBool(entry.RecheckNeeded),
		entry.Source,
		entry.ID,
		formatTime(l.now().Add(ttl)),
	}

	rows, err := l.t.readAll()
	if err != nil {
		return err
	}
	if rows, pruned := live(rows, 7, l.now()); pruned {
		return l.t.rewrite(append(rows, row))
	}
	return l.t.append(row)
}

// FindByEmail scans for unexpired rows matching email on either address.
func (l *ResultLog) FindByEmail(ctx context.Context, email string) ([]domain.ResultLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.t.mu.Lock()
	defer l.t.mu.Unlock()

	rows, err := l.t.readAll()
	if err != nil {
		return nil, err
	}
	now := l.now()
	var out []domain.ResultLogEntry
	for _, row := range rows {
		if !strings.EqualFold(row[0], email) && !strings.EqualFold(row[1], email) {
			continue
		}
		if expired(row[7], now) {
			continue
		}
		validatedAt, err := parseTime(row[3])
		if err != nil {
			return nil, fmt.Errorf("parsing VALIDATED_AT for %s: %w", row[6], err)
		}
		recheck, _ := strconv.ParseBool(row[4])
		out = append(out, domain.ResultLogEntry{
			ID:             row[6],
			OriginalEmail:  row[0],
			CorrectedEmail: row[1],
			Status:         domain.Status(row[2]),
			ValidatedAt:    validatedAt,
			RecheckNeeded:  recheck,
			Source:         row[5],
		})
	}
	return out, nil
}
