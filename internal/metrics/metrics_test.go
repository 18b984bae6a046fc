package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestServerEndpoints(t *testing.T) {
	s := NewServer("127.0.0.1:0", zerolog.Nop())
	TicksTotal.WithLabelValues("counted").Inc()
	SessionActive.Set(1)

	tests := []struct {
		path     string
		contains string
	}{
		{"/health", "OK"},
		{"/metrics", `flowtrack_ticks_total{outcome="counted"}`},
		{"/metrics", "flowtrack_session_active 1"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.server.Handler.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}
			body, _ := io.ReadAll(rec.Body)
			if !strings.Contains(string(body), tt.contains) {
				t.Errorf("Expected body to contain %q", tt.contains)
			}
		})
	}
}
