package database

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
)

// Migration is one versioned schema change with its rollback script.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

func (m *Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

// Checksum fingerprints the up script so edits to an applied migration are caught.
func (m *Migration) Checksum() string {
	sum := sha256.Sum256([]byte(m.UpScript))
	return hex.EncodeToString(sum[:])
}

//go:embed migrations/*.sql
var migrationFS embed.FS

var migrationFile = regexp.MustCompile(`^(\d{6})_([a-z0-9_]+)\.(up|down)\.sql$`)

// LoadMigrations collects 000001_name.up.sql / .down.sql pairs from dir.
// Files that do not follow the naming scheme are ignored; a version with
// only one half, or two names, is an error.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %q: %w", dir, err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		match := migrationFile.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil {
			continue
		}
		version, _ := strconv.Atoi(match[1])

		body, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: match[2]}
			byVersion[version] = m
		} else if m.Name != match[2] {
			return nil, fmt.Errorf("migration %06d has conflicting names %q and %q", version, m.Name, match[2])
		}

		if match[3] == "up" {
			m.UpScript = string(body)
		} else {
			m.DownScript = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		switch {
		case m.UpScript == "":
			return nil, fmt.Errorf("migration %s has no up script", m)
		case m.DownScript == "":
			return nil, fmt.Errorf("migration %s has no down script", m)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// embeddedMigrations panics on a malformed migrations directory; the files
// ship inside the binary so this only fails on a broken build.
var embeddedMigrations = func() []Migration {
	loaded, err := LoadMigrations(migrationFS, "migrations")
	if err != nil {
		panic(err)
	}
	return loaded
}()

// Registered returns the migrations compiled into the binary, oldest first.
func Registered() []Migration {
	return embeddedMigrations
}

// FindMigration looks up a registered migration by version.
func FindMigration(set []Migration, version int) (*Migration, bool) {
	i := sort.Search(len(set), func(i int) bool { return set[i].Version >= version })
	if i < len(set) && set[i].Version == version {
		return &set[i], true
	}
	return nil, false
}
