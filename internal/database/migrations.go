package database

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"

	"circle/internal/middleware"
)

// Migration is one versioned pair of SQL scripts named
// NNNNNN_name.up.sql / NNNNNN_name.down.sql.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

// MigrationSet is a list of migrations ordered by version.
type MigrationSet []Migration

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

var builtinMigrations = func() MigrationSet {
	set, err := LoadMigrations(embeddedMigrations, "migrations")
	if err != nil {
		middleware.Logger.Error("embedded migrations are invalid", slog.String("error", err.Error()))
		return nil
	}
	return set
}()

// Migrations returns the migrations compiled into the binary.
func Migrations() MigrationSet {
	return builtinMigrations
}

// LoadMigrations reads every *.up.sql in dir together with its .down.sql.
// Malformed names, duplicate versions and missing down scripts are errors.
func LoadMigrations(fsys fs.FS, dir string) (MigrationSet, error) {
	ups, err := fs.Glob(fsys, path.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	set := make(MigrationSet, 0, len(ups))
	seen := make(map[int]string, len(ups))
	for _, upPath := range ups {
		file := path.Base(upPath)
		version, name, err := parseMigrationFilename(file)
		if err != nil {
			return nil, err
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %06d used by both %s and %s", version, other, file)
		}
		seen[version] = file

		up, err := fs.ReadFile(fsys, upPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		downFile := strings.TrimSuffix(file, ".up.sql") + ".down.sql"
		down, err := fs.ReadFile(fsys, path.Join(dir, downFile))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", downFile, err)
		}

		set = append(set, Migration{Version: version, Name: name, Up: string(up), Down: string(down)})
	}

	sort.Slice(set, func(i, j int) bool { return set[i].Version < set[j].Version })
	return set, nil
}

func parseMigrationFilename(file string) (int, string, error) {
	base := strings.TrimSuffix(file, ".up.sql")
	rawVersion, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", fmt.Errorf("migration %q: want NNNNNN_name.up.sql", file)
	}
	version, err := strconv.Atoi(rawVersion)
	if err != nil || version <= 0 {
		return 0, "", fmt.Errorf("migration %q: version %q is not a positive number", file, rawVersion)
	}
	return version, name, nil
}

// Find returns the migration with the given version.
func (s MigrationSet) Find(version int) (Migration, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i].Version >= version })
	if i < len(s) && s[i].Version == version {
		return s[i], true
	}
	return Migration{}, false
}

// Pending returns the migrations whose versions are not in applied.
func (s MigrationSet) Pending(applied []int) MigrationSet {
	done := make(map[int]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}
	var out MigrationSet
	for _, m := range s {
		if _, ok := done[m.Version]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// checkApplied fails when the database records versions this binary does not
// know, which means it is older than the schema it is pointed at.
func (s MigrationSet) checkApplied(applied []int) error {
	var unknown []string
	for _, v := range applied {
		if _, ok := s.Find(v); !ok {
			unknown = append(unknown, fmt.Sprintf("%06d", v))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("database has migrations this build does not know: %s", strings.Join(unknown, ", "))
}
