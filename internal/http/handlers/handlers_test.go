package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/neurobridge-scorm/internal/domain"
	"github.com/yungbote/neurobridge-scorm/internal/http/response"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/packagestore"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/proxy"
	"github.com/yungbote/neurobridge-scorm/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-scorm/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
	"github.com/yungbote/neurobridge-scorm/internal/services"
)

func asUser(uid uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: uid, Name: "Ada"})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.APIError {
	t.Helper()
	var env response.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return env.Error
}

func doJSON(r http.Handler, method, url string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, url, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// ---- packages ----

type fakePackageService struct {
	got  services.UploadInput
	body []byte
	err  error
}

func (f *fakePackageService) Upload(_ context.Context, in services.UploadInput) (*types.Package, error) {
	f.got = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &types.Package{ID: uuid.New(), LessonID: in.LessonID}, nil
}

func (f *fakePackageService) Get(_ context.Context, lessonID uuid.UUID) (*services.PackageDetail, error) {
	return nil, packagestore.ErrPackageNotFound
}

func (f *fakePackageService) List(context.Context, int) ([]*types.Package, error) {
	return []*types.Package{}, nil
}

func (f *fakePackageService) Delete(context.Context, uuid.UUID) error { return nil }

func multipartUpload(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(content)
	}
	_ = w.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/scorm/packages", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestPackageUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakePackageService{}
	h := NewPackageHandler(logger.Nop(), svc, 1024)
	r := gin.New()
	r.POST("/api/scorm/packages", asUser(uuid.New()), h.Upload)

	lessonID := uuid.New()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, multipartUpload(t, map[string]string{"lessonId": lessonID.String(), "replace": "true"}, "course.zip", []byte("PK..")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if svc.got.LessonID != lessonID || !svc.got.Replace || svc.got.Filename != "course.zip" || string(svc.body) != "PK.." {
		t.Fatalf("upload input: %+v body=%q", svc.got, svc.body)
	}
	var out struct {
		PackageID uuid.UUID `json:"packageId"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out.PackageID == uuid.Nil {
		t.Fatalf("missing packageId: %s", rec.Body.String())
	}

	cases := []struct {
		name   string
		req    *http.Request
		svcErr error
		code   string
	}{
		{"missing file", multipartUpload(t, map[string]string{"lessonId": lessonID.String()}, "", nil), nil, "missing_file"},
		{"bad lesson", multipartUpload(t, map[string]string{"lessonId": "nope"}, "a.zip", []byte("x")), nil, "invalid_lesson_id"},
		{"service rejects type", multipartUpload(t, map[string]string{"lessonId": lessonID.String()}, "a.rar", []byte("x")), services.ErrNotZip, "invalid_file_type"},
		{"manifest missing", multipartUpload(t, map[string]string{"lessonId": lessonID.String()}, "a.zip", []byte("x")), packagestore.ErrManifestNotFound, "manifest_not_found"},
		{"body over limit", multipartUpload(t, map[string]string{"lessonId": lessonID.String()}, "a.zip", bytes.Repeat([]byte("x"), 3<<20)), nil, "file_too_large"},
	}
	for _, tc := range cases {
		svc.err = tc.svcErr
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, tc.req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status want=400 got=%d body=%s", tc.name, rec.Code, rec.Body.String())
		}
		if got := decodeError(t, rec).Code; got != tc.code {
			t.Fatalf("%s: code want=%s got=%s", tc.name, tc.code, got)
		}
	}
}

func TestPackageGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewPackageHandler(logger.Nop(), &fakePackageService{}, 0)
	r := gin.New()
	r.GET("/api/scorm/packages/:lessonId", h.Get)

	rec := doJSON(r, http.MethodGet, "/api/scorm/packages/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Code != "package_not_found" {
		t.Fatalf("want 404 package_not_found got=%d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(r, http.MethodGet, "/api/scorm/packages/xyz", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: want=400 got=%d", rec.Code)
	}
}

// ---- progress ----

type fakeProgressService struct {
	userID   uuid.UUID
	lessonID uuid.UUID
	cmi      map[string]string
}

func (f *fakeProgressService) Get(_ context.Context, userID, lessonID uuid.UUID) (*services.LessonProgress, error) {
	f.userID, f.lessonID = userID, lessonID
	return &services.LessonProgress{Package: &types.Package{LessonID: lessonID}}, nil
}

func (f *fakeProgressService) Save(_ context.Context, userID, lessonID uuid.UUID, cmi map[string]string) (*types.ProgressRecord, error) {
	f.userID, f.lessonID, f.cmi = userID, lessonID, cmi
	return &types.ProgressRecord{UserID: userID, CompletionStatus: types.CompletionIncomplete}, nil
}

func (f *fakeProgressService) Summaries(_ context.Context, userID uuid.UUID, lessonIDs []uuid.UUID) ([]services.ProgressSummary, error) {
	out := make([]services.ProgressSummary, 0, len(lessonIDs))
	for _, id := range lessonIDs {
		out = append(out, services.ProgressSummary{LessonID: id})
	}
	return out, nil
}

func TestProgressHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	uid := uuid.New()
	svc := &fakeProgressService{}
	h := NewProgressHandler(logger.Nop(), svc)
	r := gin.New()
	r.Use(asUser(uid))
	r.GET("/api/scorm/progress", h.Get)
	r.POST("/api/scorm/progress", h.Save)
	r.GET("/api/scorm/progress/summary", h.Summary)

	lessonID := uuid.New()
	rec := doJSON(r, http.MethodPost, "/api/scorm/progress", gin.H{
		"lessonId": lessonID,
		"userId":   uid,
		"cmiData":  map[string]string{"cmi.location": "p3"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save: want=200 got=%d %s", rec.Code, rec.Body.String())
	}
	if svc.userID != uid || svc.lessonID != lessonID || svc.cmi["cmi.location"] != "p3" {
		t.Fatalf("save forwarded: user=%s lesson=%s cmi=%v", svc.userID, svc.lessonID, svc.cmi)
	}

	rec = doJSON(r, http.MethodPost, "/api/scorm/progress", gin.H{
		"lessonId": lessonID,
		"userId":   uuid.New(),
		"cmiData":  map[string]string{},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("other learner: want=403 got=%d", rec.Code)
	}

	rec = doJSON(r, http.MethodPost, "/api/scorm/progress", gin.H{"lessonId": lessonID})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing cmiData: want=400 got=%d", rec.Code)
	}

	rec = doJSON(r, http.MethodGet, "/api/scorm/progress?lessonId="+lessonID.String(), nil)
	if rec.Code != http.StatusOK || svc.userID != uid {
		t.Fatalf("get: want=200 for caller got=%d user=%s", rec.Code, svc.userID)
	}

	a, b := uuid.New(), uuid.New()
	rec = doJSON(r, http.MethodGet, "/api/scorm/progress/summary?lessonIds="+a.String()+","+b.String(), nil)
	var sums struct {
		Summaries []services.ProgressSummary `json:"summaries"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &sums)
	if rec.Code != http.StatusOK || len(sums.Summaries) != 2 {
		t.Fatalf("summary: got=%d %s", rec.Code, rec.Body.String())
	}
	if rec = doJSON(r, http.MethodGet, "/api/scorm/progress/summary", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty summary: want=400 got=%d", rec.Code)
	}
}

// ---- proxy ----

type proxyOnly struct{ p *proxy.Proxy }

func (s proxyOnly) IssueToken(ctx context.Context, userID, lessonID uuid.UUID) (proxy.AccessToken, error) {
	return s.p.IssueToken(ctx, userID, lessonID)
}

func (s proxyOnly) Resolve(ctx context.Context, token, subpath string) (*proxy.File, error) {
	return s.p.Resolve(ctx, token, subpath)
}

type lessonPackages map[uuid.UUID]*types.Package

func (l lessonPackages) GetByLessonID(_ dbctx.Context, lessonID uuid.UUID) (*types.Package, error) {
	return l[lessonID], nil
}

func TestProxyServesContentWithSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "intro"), 0o755); err != nil {
		t.Fatal(err)
	}
	_ = os.WriteFile(filepath.Join(dir, "intro", "index.html"), []byte("<html>hi</html>"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "intro", "app.js"), []byte("var x = 1;"), 0o644)

	lessonID := uuid.New()
	p := proxy.New(proxy.NewMemoryTokenStore(), lessonPackages{
		lessonID: {ID: uuid.New(), LessonID: lessonID, PackagePath: dir, LaunchHref: "intro/index.html"},
	}, proxy.Options{}, logger.Nop())
	h := NewProxyHandler(logger.Nop(), proxyOnly{p})

	r := gin.New()
	r.GET("/api/scorm/proxy", h.ServeQuery)
	r.GET("/api/scorm/content/:token/*filepath", h.ServeContent)
	r.POST("/api/scorm/proxy", asUser(uuid.New()), h.IssueToken)

	rec := doJSON(r, http.MethodPost, "/api/scorm/proxy", gin.H{"lessonId": lessonID})
	var issued struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &issued)
	if rec.Code != http.StatusOK || issued.Token == "" {
		t.Fatalf("issue: got=%d %s", rec.Code, rec.Body.String())
	}

	launch := services.LaunchURL(issued.Token, "intro/index.html")
	rec = doJSON(r, http.MethodGet, launch, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "<html>hi</html>" {
		t.Fatalf("launch %s: got=%d %q", launch, rec.Code, rec.Body.String())
	}
	hdr := rec.Header()
	if hdr.Get("X-Frame-Options") != proxy.HeaderFrameOptions ||
		hdr.Get("Content-Security-Policy") != proxy.HeaderCSP ||
		hdr.Get("Cache-Control") != proxy.HeaderCacheControl {
		t.Fatalf("security headers missing: %v", hdr)
	}
	if ct := hdr.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type: got=%q", ct)
	}

	// relative sub-resource from the launch page
	rec = doJSON(r, http.MethodGet, strings.TrimSuffix(launch, "index.html")+"app.js", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/javascript") {
		t.Fatalf("relative asset: got=%d ct=%q", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = doJSON(r, http.MethodGet, "/api/scorm/proxy?token="+issued.Token+"&path=intro/app.js", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "var x = 1;" {
		t.Fatalf("query form: got=%d %q", rec.Code, rec.Body.String())
	}

	for name, tc := range map[string]struct {
		url    string
		status int
		code   string
	}{
		"traversal":     {"/api/scorm/proxy?token=" + issued.Token + "&path=../../etc/passwd", http.StatusForbidden, "path_traversal"},
		"unknown token": {"/api/scorm/proxy?token=deadbeef&path=intro/app.js", http.StatusUnauthorized, "invalid_token"},
		"missing file":  {"/api/scorm/proxy?token=" + issued.Token + "&path=intro/nope.js", http.StatusNotFound, "file_not_found"},
	} {
		rec := doJSON(r, http.MethodGet, tc.url, nil)
		if rec.Code != tc.status || decodeError(t, rec).Code != tc.code {
			t.Fatalf("%s: want=%d/%s got=%d %s", name, tc.status, tc.code, rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Frame-Options") == "" {
			t.Fatalf("%s: error responses keep security headers", name)
		}
	}
}

// ---- player ----

type fakePlayer struct {
	method, element, value string
}

func (f *fakePlayer) StartSession(_ context.Context, userID uuid.UUID, token, name string) (*services.SessionView, error) {
	if token != "good" {
		return nil, proxy.ErrUnauthorized
	}
	return &services.SessionView{SessionID: "s1", Version: "1.2", Entry: "ab-initio"}, nil
}

func (f *fakePlayer) Call(_ context.Context, _ uuid.UUID, sessionID, method, element, value string) (services.RTEResponse, error) {
	if sessionID == "theirs" {
		return services.RTEResponse{}, services.ErrSessionForbidden
	}
	f.method, f.element, f.value = method, element, value
	return services.RTEResponse{Result: "true", ErrorCode: "0"}, nil
}

func TestPlayerHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fp := &fakePlayer{}
	h := NewPlayerHandler(logger.Nop(), fp)
	r := gin.New()
	r.Use(asUser(uuid.New()))
	r.POST("/api/scorm/sessions", h.StartSession)
	r.POST("/api/scorm/sessions/:id/rte", h.Call)

	rec := doJSON(r, http.MethodPost, "/api/scorm/sessions", gin.H{"token": "good"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"sessionId":"s1"`) {
		t.Fatalf("start: got=%d %s", rec.Code, rec.Body.String())
	}
	if rec = doJSON(r, http.MethodPost, "/api/scorm/sessions", gin.H{"token": "bad"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: want=401 got=%d", rec.Code)
	}

	rec = doJSON(r, http.MethodPost, "/api/scorm/sessions/s1/rte", gin.H{"method": "SetValue", "element": "cmi.location", "value": "p2"})
	var out services.RTEResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if rec.Code != http.StatusOK || out.Result != "true" || out.ErrorCode != "0" {
		t.Fatalf("rte call: got=%d %s", rec.Code, rec.Body.String())
	}
	if fp.method != "SetValue" || fp.element != "cmi.location" || fp.value != "p2" {
		t.Fatalf("forwarded: %+v", fp)
	}

	for _, m := range []string{"LMSInitialize", "LMSFinish", "GetDiagnostic"} {
		if rec := doJSON(r, http.MethodPost, "/api/scorm/sessions/s1/rte", gin.H{"method": m}); rec.Code != http.StatusOK {
			t.Fatalf("%s: want=200 got=%d %s", m, rec.Code, rec.Body.String())
		}
	}
	if rec := doJSON(r, http.MethodPost, "/api/scorm/sessions/s1/rte", gin.H{"method": "Explode"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown method: want=400 got=%d", rec.Code)
	}
	if rec := doJSON(r, http.MethodPost, "/api/scorm/sessions/theirs/rte", gin.H{"method": "Commit"}); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign session: want=403 got=%d", rec.Code)
	}
}

func TestXAPIStatements(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewXAPIHandler(logger.Nop())
	r := gin.New()
	r.POST("/x", h.Statements)

	if rec := doJSON(r, http.MethodPost, "/x", []gin.H{{"verb": "completed"}, {"verb": "passed"}}); rec.Code != http.StatusNoContent {
		t.Fatalf("batch: want=204 got=%d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid json: want=400 got=%d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(map[string]Pinger{
		"db": func(context.Context) error { return nil },
	})
	r := gin.New()
	r.GET("/healthcheck", h.HealthCheck)
	r.GET("/readyz", h.Ready)
	if rec := doJSON(r, http.MethodGet, "/healthcheck", nil); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: got=%d %q", rec.Code, rec.Body.String())
	}
	if rec := doJSON(r, http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
		t.Fatalf("readyz: got=%d", rec.Code)
	}
}
