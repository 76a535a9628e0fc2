package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/personaforge-backend/internal/platform/ctxutil"
)

func serveTraced(t *testing.T, headers map[string]string) (*httptest.ResponseRecorder, *ctxutil.TraceData) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	var seen *ctxutil.TraceData
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/api/cascade", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/cascade", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec, seen
}

func TestAttachTraceContextKeepsClientIDs(t *testing.T) {
	rec, td := serveTraced(t, map[string]string{
		HeaderRequestID: "req-123",
		HeaderTraceID:   "trace-abc",
	})
	if td == nil {
		t.Fatalf("expected trace data on the request context")
	}
	if td.RequestID != "req-123" || td.TraceID != "trace-abc" {
		t.Fatalf("unexpected ids: %+v", td)
	}
	if got := rec.Header().Get(HeaderRequestID); got != "req-123" {
		t.Fatalf("request id header: got=%q", got)
	}
}

func TestAttachTraceContextGeneratesMissingIDs(t *testing.T) {
	rec, td := serveTraced(t, nil)
	if td == nil || td.RequestID == "" || td.TraceID == "" {
		t.Fatalf("expected generated ids, got %+v", td)
	}
	if strings.Contains(td.TraceID, "-") {
		t.Fatalf("generated trace id should be hex only: %q", td.TraceID)
	}
	if rec.Header().Get(HeaderTraceID) != td.TraceID {
		t.Fatalf("trace header does not match context")
	}
}

func TestAttachTraceContextRejectsUnsafeIDs(t *testing.T) {
	_, td := serveTraced(t, map[string]string{
		HeaderRequestID: "bad id\x01",
		HeaderTraceID:   strings.Repeat("x", maxRequestIDLen+1),
	})
	if td.RequestID == "bad id\x01" {
		t.Fatalf("unsafe request id was kept")
	}
	if len(td.TraceID) > maxRequestIDLen {
		t.Fatalf("oversized trace id was kept")
	}
}
