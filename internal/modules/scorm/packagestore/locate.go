package packagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/manifest"
)

// LocateManifest returns the directory holding imsmanifest.xml: dir itself,
// else the first immediate subdirectory (by name) that has one. The search
// never goes deeper than one level.
func LocateManifest(dir string) (string, error) {
	if isFile(filepath.Join(dir, manifest.FileName)) {
		return dir, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "__MACOSX" {
			continue
		}
		sub := filepath.Join(dir, e.Name())
		if isFile(filepath.Join(sub, manifest.FileName)) {
			return sub, nil
		}
	}
	return "", fmt.Errorf("%w: searched root and one subdirectory level", ErrManifestNotFound)
}

func isFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}
