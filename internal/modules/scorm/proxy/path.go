package proxy

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SafeJoin resolves a slash-separated sub path under root. Anything that
// would escape root after cleaning is ErrPathTraversal.
func SafeJoin(root, subpath string) (string, error) {
	if strings.ContainsRune(subpath, 0) || strings.Contains(subpath, `\`) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, subpath)
	}
	for _, seg := range strings.Split(subpath, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrPathTraversal, subpath)
		}
	}
	clean := path.Clean("/" + subpath)
	full := filepath.Join(root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, subpath)
	}
	return full, nil
}

// checkTraversal rejects the path before any token lookup.
func checkTraversal(subpath string) error {
	_, err := SafeJoin(string(filepath.Separator)+"root", subpath)
	return err
}

// resolveSymlinks keeps a symlinked file from pointing outside root.
func resolveSymlinks(root, full string) (string, error) {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(realRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return resolved, nil
}

const octetStream = "application/octet-stream"

var contentTypes = map[string]string{
	".js":   "application/javascript; charset=utf-8",
	".mjs":  "application/javascript; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".json": "application/json",
	".xml":  "application/xml",
	".svg":  "image/svg+xml",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
	".woff": "font/woff",
	".swf":  "application/x-shockwave-flash",
}

// ContentType picks a type from the extension, sniffing head when unknown.
func ContentType(name string, head []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	if len(head) > 0 {
		return http.DetectContentType(head)
	}
	return octetStream
}

func isRegular(p string) (os.FileInfo, bool) {
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return nil, false
	}
	return fi, true
}
