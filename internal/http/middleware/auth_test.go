package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-scorm/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-scorm/internal/platform/logger"
	"github.com/yungbote/neurobridge-scorm/internal/services"
)

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := services.NewAuthService("secret", logger.Nop())
	uid := uuid.New()
	tok, err := auth.SignAccessToken(uid, "", time.Hour)
	if err != nil {
		t.Fatalf("SignAccessToken: %v", err)
	}

	r := gin.New()
	r.GET("/me", NewAuthMiddleware(logger.Nop(), auth).RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, ctxutil.GetRequestData(c.Request.Context()).UserID.String())
	})

	cases := []struct {
		name   string
		url    string
		header string
		status int
	}{
		{"bearer header", "/me", "Bearer " + tok, http.StatusOK},
		{"access_token query", "/me?access_token=" + tok, "", http.StatusOK},
		{"content token query is not a credential", "/me?token=" + tok, "", http.StatusUnauthorized},
		{"missing", "/me", "", http.StatusUnauthorized},
		{"bad token", "/me", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.url, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: status want=%d got=%d body=%s", tc.name, tc.status, rec.Code, rec.Body.String())
		}
		if tc.status == http.StatusOK && rec.Body.String() != uid.String() {
			t.Fatalf("%s: user id want=%s got=%s", tc.name, uid, rec.Body.String())
		}
	}
}

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/x", func(c *gin.Context) {
		td := ctxutil.GetTraceData(c.Request.Context())
		c.String(http.StatusOK, td.RequestID)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "req-123")
	req.Header.Set(headerTraceID, "trace-abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Body.String() != "req-123" || rec.Header().Get(headerRequestID) != "req-123" {
		t.Fatalf("request id not propagated: body=%q header=%q", rec.Body.String(), rec.Header().Get(headerRequestID))
	}
	if got := rec.Header().Get(headerTraceID); got != "trace-abc" {
		t.Fatalf("trace id: want=trace-abc got=%q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "bad id\r\nx")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get(headerRequestID); got == "" || got == "bad id\r\nx" {
		t.Fatalf("unsafe request id should be replaced: got=%q", got)
	}
}
