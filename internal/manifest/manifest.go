// Package manifest keeps a CSV record of every file imported into the
// organized tree. Rows are keyed by their path relative to the output root;
// existing rows are preserved across runs.
package manifest

import (
	"bytes"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	blake2b "github.com/minio/blake2b-simd"
	"github.com/spf13/afero"

	"github.com/sagshome/ImageClean-sub000/internal/infra/fsx"
)

// digestBytes is how much of each file is hashed for the digest column.
const digestBytes = 64 * 1024

const timeLayout = "2006-01-02 15:04:05"

var headers = []string{
	"run_id",          // Run that imported the file
	"filename",        // Base filename
	"relative_path",   // Path relative to the output root
	"source_folder",   // Top-level folder under the input root
	"file_size_bytes", // Size in bytes
	"file_size_mb",    // Size in megabytes
	"file_modified",   // File modification timestamp
	"capture_date",    // Embedded or inferred capture date, empty if none
	"file_hash",       // BLAKE2b-256 of the first 64KB
	"extension",       // File extension
	"organized_date",  // When the file was organized
}

const keyColumn = 2

// Move is a rename inside the output tree. An empty To means the file was
// dropped.
type Move struct {
	From string
	To   string
}

// Entry is one imported file. Moves are the renames that happened in the
// output tree before Dst was written, in order. An entry with an empty Dst
// only carries moves.
type Entry struct {
	Src         string
	Dst         string
	Size        int64
	ModTime     time.Time
	CaptureDate time.Time // zero when unknown
	Moves       []Move
}

// Manifest is the CSV file at Path.
type Manifest struct {
	Fs         afero.Fs
	Path       string
	InputRoot  string
	OutputRoot string
	RunID      string

	now func() time.Time
}

// Update merges entries into the manifest and rewrites it atomically, sorted
// by relative path. Moves re-key the rows they touch. A row already present
// at an entry's destination is replaced, since the file there is new. It
// returns the number of rows written.
func (m *Manifest) Update(entries []Entry) (int, error) {
	rows, err := m.load()
	if err != nil {
		return 0, err
	}

	now := time.Now
	if m.now != nil {
		now = m.now
	}
	added := 0
	for _, e := range entries {
		for _, mv := range e.Moves {
			m.move(rows, mv)
		}
		if e.Dst == "" {
			continue
		}
		rel, ok := m.rel(e.Dst)
		if !ok {
			continue
		}
		digest, err := Digest(m.Fs, e.Dst)
		if err != nil {
			digest = ""
		}
		capture := ""
		if !e.CaptureDate.IsZero() {
			capture = e.CaptureDate.Format(timeLayout)
		}
		rows[rel] = []string{
			m.RunID,
			filepath.Base(e.Dst),
			rel,
			m.sourceFolder(e.Src),
			fmt.Sprintf("%d", e.Size),
			fmt.Sprintf("%.2f", float64(e.Size)/(1024*1024)),
			e.ModTime.Format(timeLayout),
			capture,
			digest,
			strings.ToLower(filepath.Ext(e.Dst)),
			now().Format(timeLayout),
		}
		added++
	}

	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := w.Write(rows[k]); err != nil {
			return 0, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, err
	}
	if err := fsx.WriteFileAtomic(m.Fs, filepath.Dir(m.Path), filepath.Base(m.Path), buf.Bytes()); err != nil {
		return 0, fmt.Errorf("manifest: write %s: %w", m.Path, err)
	}
	return added, nil
}

// move re-keys the row at mv.From to mv.To, or drops it when To is empty.
func (m *Manifest) move(rows map[string][]string, mv Move) {
	from, ok := m.rel(mv.From)
	if !ok {
		return
	}
	row, ok := rows[from]
	if !ok {
		return
	}
	delete(rows, from)
	if mv.To == "" {
		return
	}
	to, ok := m.rel(mv.To)
	if !ok {
		return
	}
	row = slices.Clone(row)
	row[1] = filepath.Base(mv.To)
	row[keyColumn] = to
	rows[to] = row
}

// rel is path relative to the output root, slash separated.
func (m *Manifest) rel(path string) (string, bool) {
	rel, err := filepath.Rel(m.OutputRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// load reads existing rows keyed by relative path. A missing file is empty.
func (m *Manifest) load() (map[string][]string, error) {
	rows := make(map[string][]string)
	f, err := m.Fs.Open(m.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return rows, nil
		}
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", m.Path, err)
	}
	for i, row := range records {
		if i == 0 || len(row) <= keyColumn {
			continue
		}
		rows[row[keyColumn]] = row
	}
	return rows, nil
}

// sourceFolder is the first path segment of src under the input root.
func (m *Manifest) sourceFolder(src string) string {
	rel, err := filepath.Rel(m.InputRoot, src)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	first := strings.Split(filepath.ToSlash(rel), "/")[0]
	if first == filepath.Base(src) {
		return ""
	}
	return first
}

// Digest returns the hex BLAKE2b-256 of the first 64KB of path.
func Digest(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake2b.New256()
	if _, err := io.Copy(h, io.LimitReader(f, digestBytes)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
