package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/neurobridge-scorm/internal/domain"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

type memBucket struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	failOn  string
}

func newMemBucket() *memBucket {
	return &memBucket{objects: map[string]string{}, types: map[string]string{}}
}

func (b *memBucket) Upload(_ context.Context, key string, r io.Reader, contentType string) error {
	if b.failOn != "" && strings.HasSuffix(key, b.failOn) {
		return errors.New("boom")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = string(data)
	b.types[key] = contentType
	return nil
}

func (b *memBucket) ListKeys(_ context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (b *memBucket) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, _ := b.ListKeys(ctx, prefix)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.objects, k)
	}
	return len(keys), nil
}

func (b *memBucket) Close() error { return nil }

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "1700000000000_01J0000000000000000000000A")
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestPackageMirrorLifecycle(t *testing.T) {
	bucket := newMemBucket()
	m := NewPackageMirror(bucket, logger.Nop())
	root := writeTree(t, map[string]string{
		"course/imsmanifest.xml": "<manifest/>",
		"course/index.html":      "<html/>",
		"course/js/app.js":       "x",
	})
	pkg := &types.Package{ID: uuid.New(), ExtractRoot: root, PackagePath: filepath.Join(root, "course")}

	m.PackageStored(context.Background(), pkg)
	m.Wait()

	keys, _ := bucket.ListKeys(context.Background(), "")
	want := []string{
		"1700000000000_01J0000000000000000000000A/course/imsmanifest.xml",
		"1700000000000_01J0000000000000000000000A/course/index.html",
		"1700000000000_01J0000000000000000000000A/course/js/app.js",
	}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("keys: want=%v got=%v", want, keys)
	}
	if ct := bucket.types[want[2]]; !strings.HasPrefix(ct, "application/javascript") {
		t.Fatalf("content type: got=%q", ct)
	}

	m.PackageRemoved(context.Background(), pkg)
	m.Wait()
	if keys, _ := bucket.ListKeys(context.Background(), ""); len(keys) != 0 {
		t.Fatalf("objects left after remove: %v", keys)
	}
}

func TestPackageMirrorUploadError(t *testing.T) {
	bucket := newMemBucket()
	bucket.failOn = "index.html"
	m := NewPackageMirror(bucket, logger.Nop())
	root := writeTree(t, map[string]string{"index.html": "<html/>", "a.js": "x"})

	if _, err := m.Upload(context.Background(), root); err == nil {
		t.Fatalf("expected upload error")
	}
}
