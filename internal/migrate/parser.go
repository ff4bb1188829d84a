package migrate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Migration filenames follow the V<version>__<name>.sql contract, e.g.
// V1__init.sql or V042__add_index.sql. Versions need not be zero-padded.
var filenamePattern = regexp.MustCompile(`^V(\d+)__(.+)\.sql$`)

// File is an immutable parsed migration: built once from on-disk content,
// never mutated afterwards.
type File struct {
	Version  int
	Name     string
	Path     string
	Checksum string
	SQL      string
}

// Label returns the canonical V<version>__<name> form used in logs.
func (f File) Label() string {
	return fmt.Sprintf("V%d__%s", f.Version, f.Name)
}

// Checksum hashes content with line endings normalized to LF, so the same
// logical file hashes identically regardless of editor or platform.
func Checksum(content string) string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// ParseFile parses a single migration file.
func ParseFile(fsys afero.Fs, path string) (File, error) {
	base := filepath.Base(path)
	match := filenamePattern.FindStringSubmatch(base)
	if match == nil {
		return File{}, &ParseError{
			Filename: base,
			Reason:   "expected format V<version>__name.sql",
		}
	}

	version, err := strconv.Atoi(match[1])
	if err != nil {
		return File{}, &ParseError{
			Filename: base,
			Reason:   fmt.Sprintf("version %q out of range", match[1]),
		}
	}

	content, err := afero.ReadFile(fsys, path)
	if err != nil {
		return File{}, &ParseError{
			Filename: base,
			Reason:   fmt.Sprintf("read failed: %v", err),
		}
	}
	if strings.TrimSpace(string(content)) == "" {
		return File{}, &ParseError{Filename: base, Reason: "file is empty"}
	}

	return File{
		Version:  version,
		Name:     match[2],
		Path:     path,
		Checksum: Checksum(string(content)),
		SQL:      string(content),
	}, nil
}

// ParseDir parses every matching file in a directory, sorted ascending by
// numeric version. Non-matching files are skipped silently; an empty
// directory yields an empty list. A duplicate version is an error even when
// the names differ.
func ParseDir(fsys afero.Fs, dir string) ([]File, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory %q: %w", dir, err)
	}

	migrations := make([]File, 0, len(entries))
	seen := make(map[int]string)

	for _, entry := range entries {
		if entry.IsDir() || !filenamePattern.MatchString(entry.Name()) {
			continue
		}

		migration, err := ParseFile(fsys, filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		if prior, dup := seen[migration.Version]; dup {
			return nil, &ParseError{
				Filename: entry.Name(),
				Reason:   fmt.Sprintf("duplicate version %d, already used by %q", migration.Version, prior),
			}
		}
		seen[migration.Version] = entry.Name()
		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}
