package main

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
)

//go:embed *.sql
var embeddedFiles embed.FS

// Migration files follow NNN_name.up.sql / NNN_name.down.sql.
var migrationFileRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// ErrNoMigrations is returned when the set contains no migration files.
var ErrNoMigrations = errors.New("no migration files found")

type (
	// MigrationSet wraps a filesystem of SQL migration files and validates
	// that the set is well formed: strict filenames, every up paired with a
	// down, a contiguous sequence starting at 001, and stable content
	// between validations.
	MigrationSet struct {
		fsys      fs.FS
		checksums map[string]string
	}

	// migrationFile is one parsed migration filename.
	migrationFile struct {
		Sequence  int
		Name      string
		Direction string
		Filename  string
	}
)

// NewMigrationSet creates a set over the given filesystem. A nil filesystem
// selects the migrations embedded in this binary.
func NewMigrationSet(fsys fs.FS) *MigrationSet {
	if fsys == nil {
		fsys = embeddedFiles
	}

	return &MigrationSet{
		fsys:      fsys,
		checksums: make(map[string]string),
	}
}

// FS exposes the underlying filesystem for the golang-migrate iofs source.
func (s *MigrationSet) FS() fs.FS {
	return s.fsys
}

// Files lists the migration filenames in apply order. Files that do not
// match the naming standard are ignored, the same way golang-migrate skips
// them, so a stray README cannot break the set.
func (s *MigrationSet) Files() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if migrationFileRegex.MatchString(entry.Name()) {
			files = append(files, entry.Name())
		}
	}

	// Lexicographic order equals apply order under the NNN_ prefix
	sort.Strings(files)

	return files, nil
}

// Read returns the content of one migration file.
func (s *MigrationSet) Read(filename string) ([]byte, error) {
	return fs.ReadFile(s.fsys, filename)
}

// Validate checks the whole set: filenames, up/down pairing, sequence
// contiguity from 001, and content checksums. The first validation pins
// each file's checksum; later validations fail if a file changed underneath
// a running migrator.
func (s *MigrationSet) Validate() error {
	files, err := s.Files()
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return ErrNoMigrations
	}

	directions := make(map[string]map[string]bool)
	sequences := make(map[int]bool)

	for _, filename := range files {
		parsed, err := parseMigrationFile(filename)
		if err != nil {
			return err
		}

		key := fmt.Sprintf("%03d_%s", parsed.Sequence, parsed.Name)
		if directions[key] == nil {
			directions[key] = make(map[string]bool)
		}

		directions[key][parsed.Direction] = true
		sequences[parsed.Sequence] = true

		if err := s.checkContent(filename); err != nil {
			return err
		}
	}

	for key, dirs := range directions {
		if !dirs["up"] {
			return fmt.Errorf("migration %s has no up file", key)
		}

		if !dirs["down"] {
			return fmt.Errorf("migration %s has no down file", key)
		}
	}

	return checkSequence(sequences)
}

// LatestVersion returns the highest sequence number in the set, 0 when empty.
func (s *MigrationSet) LatestVersion() int {
	files, err := s.Files()
	if err != nil {
		return 0
	}

	latest := 0

	for _, filename := range files {
		parsed, err := parseMigrationFile(filename)
		if err != nil {
			continue
		}

		if parsed.Sequence > latest {
			latest = parsed.Sequence
		}
	}

	return latest
}

// checkContent reads a file and compares it against the pinned checksum,
// pinning it on first sight.
func (s *MigrationSet) checkContent(filename string) error {
	content, err := s.Read(filename)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", filename, err)
	}

	sum := sha256.Sum256(content)
	checksum := hex.EncodeToString(sum[:])

	if pinned, ok := s.checksums[filename]; ok && pinned != checksum {
		return fmt.Errorf("migration %s changed after validation", filename)
	}

	s.checksums[filename] = checksum

	return nil
}

// parseMigrationFile splits a migration filename into its components.
func parseMigrationFile(filename string) (migrationFile, error) {
	matches := migrationFileRegex.FindStringSubmatch(filename)
	if matches == nil {
		return migrationFile{}, fmt.Errorf(
			"invalid migration filename %q (expected NNN_name.up.sql or NNN_name.down.sql)", filename,
		)
	}

	sequence, err := strconv.Atoi(matches[1])
	if err != nil {
		return migrationFile{}, fmt.Errorf("invalid sequence in %q: %w", filename, err)
	}

	return migrationFile{
		Sequence:  sequence,
		Name:      matches[2],
		Direction: matches[3],
		Filename:  filename,
	}, nil
}

// checkSequence verifies the sequence numbers run 1..N without gaps.
func checkSequence(sequences map[int]bool) error {
	numbers := make([]int, 0, len(sequences))
	for seq := range sequences {
		numbers = append(numbers, seq)
	}

	sort.Ints(numbers)

	for i, seq := range numbers {
		if seq != i+1 {
			return fmt.Errorf("migration sequence has a gap: expected %03d, found %03d", i+1, seq)
		}
	}

	return nil
}
