// Package proxy gates learner access to extracted package files behind
// short-lived opaque tokens.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/neurobridge-scorm/internal/domain"
	"github.com/yungbote/neurobridge-scorm/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
)

var (
	ErrUnauthorized  = errors.New("proxy: invalid or expired token")
	ErrPathTraversal = errors.New("proxy: path escapes package root")
	ErrFileNotFound  = errors.New("proxy: file not found")
	ErrNoPackage     = errors.New("proxy: lesson has no package")
)

// PackageLookup finds the package serving a lesson.
type PackageLookup interface {
	GetByLessonID(dbc dbctx.Context, lessonID uuid.UUID) (*types.Package, error)
}

type Options struct {
	TokenTTL time.Duration
}

type Proxy struct {
	tokens   TokenStore
	packages PackageLookup
	opts     Options
	log      *logger.Logger
	now      func() time.Time
}

func New(tokens TokenStore, packages PackageLookup, opts Options, baseLog *logger.Logger) *Proxy {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	return &Proxy{
		tokens:   tokens,
		packages: packages,
		opts:     opts,
		log:      baseLog.With("module", "ContentProxy"),
		now:      time.Now,
	}
}

// IssueToken mints a token for an already-authorized learner. Expired tokens
// are swept first.
func (p *Proxy) IssueToken(ctx context.Context, userID, lessonID uuid.UUID) (AccessToken, error) {
	now := p.now()
	if n, err := p.tokens.Sweep(ctx, now); err != nil {
		p.log.Warn("token sweep failed", "error", err)
	} else if n > 0 {
		p.log.Debug("expired tokens swept", "count", n)
	}

	raw, err := newToken()
	if err != nil {
		return AccessToken{}, fmt.Errorf("proxy: generate token: %w", err)
	}
	tok := AccessToken{
		Token:     raw,
		UserID:    userID,
		LessonID:  lessonID,
		ExpiresAt: now.Add(p.opts.TokenTTL).UTC(),
	}
	if err := p.tokens.Put(ctx, tok); err != nil {
		return AccessToken{}, err
	}
	return tok, nil
}

// Validate returns the live token or ErrUnauthorized.
func (p *Proxy) Validate(ctx context.Context, token string) (AccessToken, error) {
	if token == "" {
		return AccessToken{}, ErrUnauthorized
	}
	tok, err := p.tokens.Get(ctx, token)
	if err != nil {
		return AccessToken{}, err
	}
	if tok.Expired(p.now()) {
		return AccessToken{}, ErrUnauthorized
	}
	return tok, nil
}

// File is a resolved package file ready to stream.
type File struct {
	Path        string
	Name        string
	ContentType string
	Size        int64
	ModTime     time.Time
	Token       AccessToken
	Package     *types.Package
}

func (f *File) Open() (*os.File, error) {
	return os.Open(f.Path)
}

// Resolve maps (token, subpath) to a file inside the token's package. The path
// is checked before the token so traversal attempts fail the same way with or
// without a valid token. An empty subpath resolves to the launch resource.
func (p *Proxy) Resolve(ctx context.Context, token, subpath string) (*File, error) {
	if err := checkTraversal(subpath); err != nil {
		return nil, err
	}
	tok, err := p.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	pkg, err := p.packages.GetByLessonID(dbctx.Context{Ctx: ctx}, tok.LessonID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, ErrNoPackage
	}
	if subpath == "" {
		subpath = pkg.LaunchHref
	}

	full, err := SafeJoin(pkg.PackagePath, subpath)
	if err != nil {
		return nil, err
	}
	fi, ok := isRegular(full)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, subpath)
	}
	resolved, err := resolveSymlinks(pkg.PackagePath, full)
	if err != nil {
		if errors.Is(err, ErrPathTraversal) {
			p.log.Warn("symlink escapes package root", "lesson_id", tok.LessonID, "path", subpath)
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, subpath)
	}
	ct := ContentType(fi.Name(), nil)
	if ct == octetStream {
		ct = ContentType(fi.Name(), sniff(resolved))
	}
	return &File{
		Path:        resolved,
		Name:        fi.Name(),
		ContentType: ct,
		Size:        fi.Size(),
		ModTime:     fi.ModTime(),
		Token:       tok,
		Package:     pkg,
	}, nil
}

// Serve reads a whole package file. Large assets should go through Resolve
// and File.Open instead.
func (p *Proxy) Serve(ctx context.Context, token, subpath string) ([]byte, string, error) {
	f, err := p.Resolve(ctx, token, subpath)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, "", fmt.Errorf("proxy: read %s: %w", subpath, err)
	}
	return data, f.ContentType, nil
}

func sniff(p string) []byte {
	fh, err := os.Open(p)
	if err != nil {
		return nil
	}
	defer fh.Close()
	buf := make([]byte, 512)
	n, _ := io.ReadFull(fh, buf)
	return buf[:n]
}
