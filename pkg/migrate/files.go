package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var (
	fileNameRe  = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)
)

// File is one goose SQL migration on disk.
type File struct {
	Version int64
	Name    string
	Path    string
}

// List returns the migrations in fsys ordered by version. Non-SQL entries are
// ignored; a misnamed SQL file or a repeated version is an error.
func List(fsys fs.FS) ([]File, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var files []File
	owners := make(map[int64]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m := fileNameRe.FindStringSubmatch(entry.Name())
		if m == nil {
			return nil, fmt.Errorf("migration %q: expected YYYYMMDDHHMMSS_name.sql", entry.Name())
		}
		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", entry.Name(), err)
		}
		if prev, dup := owners[version]; dup {
			return nil, fmt.Errorf("migration version %d used by %q and %q", version, prev, entry.Name())
		}
		owners[version] = entry.Name()
		files = append(files, File{Version: version, Name: m[2], Path: entry.Name()})
	}

	slices.SortFunc(files, func(a, b File) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		}
		return 0
	})
	return files, nil
}

// Validate checks every migration is well named and carries balanced goose
// annotations for both directions.
func Validate(fsys fs.FS) error {
	files, err := List(fsys)
	if err != nil {
		return err
	}
	var errs []error
	for _, f := range files {
		body, err := fs.ReadFile(fsys, f.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %q: %w", f.Path, err))
			continue
		}
		if err := checkAnnotations(string(body)); err != nil {
			errs = append(errs, fmt.Errorf("migration %q: %w", f.Path, err))
		}
	}
	return errors.Join(errs...)
}

func checkAnnotations(sql string) error {
	up := strings.Index(sql, "-- +goose Up")
	down := strings.Index(sql, "-- +goose Down")
	switch {
	case up < 0:
		return errors.New(`missing "-- +goose Up"`)
	case down < 0:
		return errors.New(`missing "-- +goose Down"`)
	case down < up:
		return errors.New("down section precedes up section")
	}
	if begins, ends := strings.Count(sql, "-- +goose StatementBegin"), strings.Count(sql, "-- +goose StatementEnd"); begins != ends {
		return fmt.Errorf("%d StatementBegin vs %d StatementEnd", begins, ends)
	}
	return nil
}

// Create writes an empty migration named after name into dir. Its version is
// derived from now but always sorts after the newest existing migration.
func Create(dir, name string, now time.Time) (File, error) {
	if strings.TrimSpace(dir) == "" {
		return File{}, errors.New("dir is required")
	}
	slug := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return File{}, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return File{}, fmt.Errorf("create %q: %w", dir, err)
	}

	existing, err := List(os.DirFS(dir))
	if err != nil {
		return File{}, err
	}
	stamp := now.UTC().Truncate(time.Second)
	if n := len(existing); n > 0 {
		latest, err := time.Parse(versionLayout, strconv.FormatInt(existing[n-1].Version, 10))
		if err == nil && !stamp.After(latest) {
			stamp = latest.Add(time.Second)
		}
	}
	version, err := strconv.ParseInt(stamp.Format(versionLayout), 10, 64)
	if err != nil {
		return File{}, err
	}

	file := File{Version: version, Name: slug, Path: filepath.Join(dir, fmt.Sprintf("%d_%s.sql", version, slug))}
	body := fmt.Sprintf("-- +goose Up\n-- +goose StatementBegin\n-- %[1]s\n-- +goose StatementEnd\n\n-- +goose Down\n-- +goose StatementBegin\n-- revert %[1]s\n-- +goose StatementEnd\n", slug)
	fh, err := os.OpenFile(file.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return File{}, fmt.Errorf("create migration: %w", err)
	}
	if _, err := fh.WriteString(body); err != nil {
		_ = fh.Close()
		return File{}, fmt.Errorf("write migration: %w", err)
	}
	return file, fh.Close()
}
