package packagestore

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/manifest"
)

var (
	ErrInvalidArchive   = errors.New("packagestore: not a valid zip archive")
	ErrArchiveTooLarge  = errors.New("packagestore: archive exceeds uncompressed size limit")
	ErrUnsafePath       = errors.New("packagestore: archive entry escapes extraction root")
	ErrManifestNotFound = errors.New("packagestore: imsmanifest.xml not found")
	ErrPackageExists    = errors.New("packagestore: lesson already has a package")
	ErrPackageNotFound  = errors.New("packagestore: package not found")
)

// Archive is a zip that passed pre-extraction checks.
type Archive struct {
	reader           *zip.Reader
	UncompressedSize int64
	Entries          int
}

// OpenArchive validates zip metadata without inflating any entry. Sizes come
// from the central directory, so a zip bomb is rejected before extraction.
func OpenArchive(data []byte, maxUncompressed int64, maxEntries int) (*Archive, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidArchive)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("%w: %w", ErrUnsafePath, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("%w: archive has no entries", ErrInvalidArchive)
	}
	if maxEntries > 0 && len(zr.File) > maxEntries {
		return nil, fmt.Errorf("%w: %d entries (max %d)", ErrArchiveTooLarge, len(zr.File), maxEntries)
	}

	var total uint64
	for _, f := range zr.File {
		if _, err := entryPath(f.Name); err != nil {
			return nil, err
		}
		total += f.UncompressedSize64
		if maxUncompressed > 0 && total > uint64(maxUncompressed) {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrArchiveTooLarge, maxUncompressed)
		}
	}
	return &Archive{reader: zr, UncompressedSize: int64(total), Entries: len(zr.File)}, nil
}

// entryPath normalizes a zip entry name to a relative slash path.
func entryPath(name string) (string, error) {
	n := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(n, "/") || (len(n) > 1 && n[1] == ':') {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	clean := path.Clean(n)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return clean, nil
}

// extractTo inflates every entry below dir. Declared sizes are enforced while
// copying so a header that lies about its size cannot exceed the budget.
func (a *Archive) extractTo(ctx context.Context, dir string) (int64, error) {
	var written int64
	for _, f := range a.reader.File {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		rel, err := entryPath(f.Name)
		if err != nil {
			return written, err
		}
		if rel == "." {
			continue
		}
		dest := filepath.Join(dir, filepath.FromSlash(rel))
		if !within(dir, dest) {
			return written, fmt.Errorf("%w: %q", ErrUnsafePath, f.Name)
		}

		mode := f.Mode()
		switch {
		case mode.IsDir() || strings.HasSuffix(f.Name, "/"):
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return written, err
			}
			continue
		case !mode.IsRegular():
			// symlinks and devices are never materialized
			continue
		}

		n, err := copyEntry(f, dest, int64(f.UncompressedSize64))
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func copyEntry(f *zip.File, dest string, limit int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidArchive, f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, io.LimitReader(rc, limit+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) {
			return n, fmt.Errorf("%w: %s: %w", ErrInvalidArchive, f.Name, err)
		}
		return n, err
	}
	if n > limit {
		return n, fmt.Errorf("%w: %s larger than declared", ErrArchiveTooLarge, f.Name)
	}
	return n, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Manifest reads imsmanifest.xml without extracting, using the same search
// order as LocateManifest. dir is "" for a root manifest, else the wrapper folder.
func (a *Archive) Manifest() (dir string, data []byte, err error) {
	var root, sub *zip.File
	for _, f := range a.reader.File {
		name, err := entryPath(f.Name)
		if err != nil || f.FileInfo().IsDir() || path.Base(name) != manifest.FileName {
			continue
		}
		parent := path.Dir(name)
		if parent == "." {
			root = f
			break
		}
		if strings.Contains(parent, "/") || parent == "__MACOSX" {
			continue
		}
		if sub == nil || parent < dir {
			sub, dir = f, parent
		}
	}
	found := sub
	if root != nil {
		found, dir = root, ""
	}
	if found == nil {
		return "", nil, fmt.Errorf("%w: searched root and one subdirectory level", ErrManifestNotFound)
	}
	rc, err := found.Open()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	defer rc.Close()
	data, err = io.ReadAll(io.LimitReader(rc, int64(found.UncompressedSize64)+1))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	return dir, data, nil
}
