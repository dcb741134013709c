package queue

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"pixelpost/internal/fileutil"
)

// DefaultDelimiter separates fields within a record.
const DefaultDelimiter = ';'

// Snapshot is the queue content read at one point in time.
type Snapshot struct {
	records  []Record
	revision string
}

// Revision identifies the exact file the snapshot was read from. It changes
// whenever the file is rewritten, even with identical content. A missing
// file has an empty revision.
func (s Snapshot) Revision() string { return s.revision }

// Empty reports whether the queue has no records.
func (s Snapshot) Empty() bool { return len(s.records) == 0 }

// Len returns the record count.
func (s Snapshot) Len() int { return len(s.records) }

// HeadRecord returns the raw first record, or nil on an empty queue.
func (s Snapshot) HeadRecord() Record {
	if s.Empty() {
		return nil
	}
	return s.records[0]
}

// Head parses the first record.
func (s Snapshot) Head() (Item, error) {
	if s.Empty() {
		return Item{}, errors.New("queue is empty")
	}
	return Parse(s.records[0])
}

// Rest returns every record after the head.
func (s Snapshot) Rest() []Record {
	if s.Empty() {
		return nil
	}
	return append([]Record(nil), s.records[1:]...)
}

// Records returns all records in order.
func (s Snapshot) Records() []Record {
	return append([]Record(nil), s.records...)
}

// Option customizes a Store.
type Option func(*Store)

// WithDelimiter overrides the field separator.
func WithDelimiter(r rune) Option {
	return func(s *Store) {
		if r != 0 {
			s.delimiter = r
		}
	}
}

// WithRename replaces the final rename of Replace. Tests use it to simulate a
// crash before the new content becomes visible.
func WithRename(fn fileutil.RenameFunc) Option {
	return func(s *Store) {
		if fn != nil {
			s.rename = fn
		}
	}
}

// Store reads and rewrites the queue file.
type Store struct {
	path      string
	delimiter rune
	rename    fileutil.RenameFunc
}

// NewStore returns a store for the file at path. Nothing is created on disk.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{path: path, delimiter: DefaultDelimiter, rename: os.Rename}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the queue file location.
func (s *Store) Path() string { return s.path }

// ReadAll loads every record. A missing file yields an empty snapshot.
func (s *Store) ReadAll(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("open queue: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Snapshot{}, fmt.Errorf("stat queue: %w", err)
	}

	h := sha256.New()
	r := s.newReader(io.TeeReader(f, h))
	var records []Record
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("read queue %s: %w", s.path, err)
		}
		if isBlank(fields) {
			continue
		}
		records = append(records, Record(fields))
	}
	return Snapshot{records: records, revision: revision(h.Sum(nil), info)}, nil
}

// revision mixes the content hash with the file identity so a queue rewritten
// with the same bytes still reads as a new revision.
func revision(sum []byte, info fs.FileInfo) string {
	h := sha256.New()
	h.Write(sum)
	var buf [8]byte
	for _, v := range []uint64{fileID(info), uint64(info.ModTime().UnixNano()), uint64(info.Size())} {
		binary.BigEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Replace atomically swaps the queue content for records.
func (s *Store) Replace(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	err := fileutil.WriteAtomicWith(s.path, mode, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		cw.Comma = s.delimiter
		for _, rec := range records {
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}, s.rename)
	if err != nil {
		return fmt.Errorf("replace queue %s: %w", s.path, err)
	}
	return nil
}

// Append adds rec to the tail of the queue, creating the file if needed.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if _, err := Parse(rec); err != nil {
		return err
	}
	snap, err := s.ReadAll(ctx)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create queue directory: %w", err)
		}
	}
	return s.Replace(ctx, append(snap.Records(), rec))
}

func (s *Store) newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = s.delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false
	return cr
}

// csv.Reader skips empty lines; a line of only whitespace still arrives as
// one field and is dropped here.
func isBlank(fields []string) bool {
	return len(fields) == 1 && strings.TrimSpace(fields[0]) == ""
}
