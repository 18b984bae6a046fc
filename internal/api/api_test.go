package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/flowtrack/internal/analytics"
	"github.com/goodtune/flowtrack/internal/clock"
	"github.com/goodtune/flowtrack/internal/service"
	"github.com/goodtune/flowtrack/internal/storage"
	"github.com/goodtune/flowtrack/internal/storage/memory"
	"github.com/goodtune/flowtrack/internal/tracking"
	"github.com/goodtune/flowtrack/internal/window"
	"github.com/rs/zerolog"
)

func setupTestServer(t *testing.T) (*Server, *service.Tracker, *storage.TrackingSpace) {
	t.Helper()
	provider := window.NewStatic("Code")
	tracker := service.New(service.Options{
		Store:    memory.New(),
		Provider: provider,
		Clock:    clock.NewTestClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)),
		Tracking: tracking.Config{TickInterval: time.Second},
		Logger:   zerolog.Nop(),
	})
	work, err := tracker.CreateSpace(context.Background(), "Work", "")
	if err != nil {
		t.Fatalf("CreateSpace failed: %v", err)
	}
	srv := NewServer(Config{ListenAddr: "127.0.0.1:0", Heartbeat: time.Second}, tracker, zerolog.Nop())
	return srv, tracker, work
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	rec := doRequest(t, srv.Handler(), "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}

func TestSpaceLifecycle(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	h := srv.Handler()

	rec := doRequest(t, h, "POST", "/api/spaces", CreateSpaceRequest{Name: "Personal", Color: "#ec4899"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var created storage.TrackingSpace
	_ = json.NewDecoder(rec.Body).Decode(&created)
	if created.Name != "Personal" || created.Color != "#ec4899" {
		t.Errorf("Unexpected space %+v", created)
	}

	created.Apps = []string{"Music", "music"}
	rec = doRequest(t, h, "PUT", "/api/spaces/"+created.ID, created)
	if rec.Code != http.StatusOK {
		t.Fatalf("Update: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var spaces []storage.TrackingSpace
	_ = json.NewDecoder(rec.Body).Decode(&spaces)
	if len(spaces) != 2 {
		t.Fatalf("Expected 2 spaces, got %d", len(spaces))
	}

	rec = doRequest(t, h, "GET", "/api/spaces/"+created.ID, nil)
	var got storage.TrackingSpace
	_ = json.NewDecoder(rec.Body).Decode(&got)
	if len(got.Apps) != 1 {
		t.Errorf("Expected deduplicated apps, got %v", got.Apps)
	}

	rec = doRequest(t, h, "DELETE", "/api/spaces/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Delete: expected 200, got %d", rec.Code)
	}
	rec = doRequest(t, h, "GET", "/api/spaces/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	h := srv.Handler()

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"blank name", "POST", "/api/spaces", CreateSpaceRequest{Name: "  "}, http.StatusBadRequest},
		{"unknown space", "GET", "/api/spaces/nope", nil, http.StatusNotFound},
		{"toggle unknown", "POST", "/api/spaces/nope/toggle", nil, http.StatusNotFound},
		{"bad date", "GET", "/api/entries?dateFrom=10/03/2024", nil, http.StatusBadRequest},
		{"bad range", "GET", "/api/analytics?range=year", nil, http.StatusBadRequest},
		{"analytics unknown space", "GET", "/api/analytics?range=day&spaceId=nope", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("Expected JSON error body: %v", err)
			}
			if resp.Code != tt.want {
				t.Errorf("Expected code %d in body, got %d", tt.want, resp.Code)
			}
		})
	}
}

func TestActivationEndpoints(t *testing.T) {
	srv, tracker, work := setupTestServer(t)
	h := srv.Handler()

	rec := doRequest(t, h, "PUT", "/api/spaces/"+work.ID+"/active", SetActiveRequest{Active: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("SetActive: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp ActiveResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Active {
		t.Error("Expected space to be active")
	}
	if info := tracker.SessionInfo(); info.SpaceID != work.ID {
		t.Errorf("Expected session on Work, got %+v", info)
	}

	rec = doRequest(t, h, "POST", "/api/spaces/"+work.ID+"/toggle", nil)
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Active {
		t.Error("Expected toggle to deactivate")
	}

	_, _ = tracker.SetActive(context.Background(), work.ID, true)
	rec = doRequest(t, h, "POST", "/api/session/stop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("StopAll: expected 200, got %d", rec.Code)
	}
	var info tracking.SessionInfo
	_ = json.NewDecoder(rec.Body).Decode(&info)
	if info.IsTracking {
		t.Error("Expected tracking to stop")
	}
}

func TestEntriesAndAnalytics(t *testing.T) {
	srv, tracker, work := setupTestServer(t)
	h := srv.Handler()

	_, _ = tracker.SetActive(context.Background(), work.ID, true)
	work.Apps = []string{"Code"}
	_, _ = tracker.UpdateSpace(context.Background(), *work)
	for i := 0; i < 3; i++ {
		tracker.Engine().Tick(context.Background())
	}
	if err := tracker.Engine().Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	rec := doRequest(t, h, "GET", "/api/entries?spaceId="+work.ID+"&dateFrom=2024-03-10&dateTo=2024-03-10", nil)
	var entries []storage.TimeEntry
	_ = json.NewDecoder(rec.Body).Decode(&entries)
	if len(entries) != 1 || entries[0].Duration != 3 {
		t.Fatalf("Unexpected entries %+v", entries)
	}

	rec = doRequest(t, h, "GET", "/api/stats/today", nil)
	var today map[string]int64
	_ = json.NewDecoder(rec.Body).Decode(&today)
	if today["Code"] != 3 {
		t.Errorf("Expected 3s today, got %v", today)
	}

	rec = doRequest(t, h, "GET", "/api/analytics?range=week&spaceId="+work.ID, nil)
	var summary analytics.Summary
	_ = json.NewDecoder(rec.Body).Decode(&summary)
	if summary.Total != 3 || len(summary.ByDate) != 7 {
		t.Errorf("Unexpected summary %+v", summary)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	h := srv.Handler()

	rec := doRequest(t, h, "PUT", "/api/settings", storage.AppSettings{EnableDND: true, MutedApps: []string{"Slack"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}
	rec = doRequest(t, h, "GET", "/api/settings", nil)
	var settings storage.AppSettings
	_ = json.NewDecoder(rec.Body).Decode(&settings)
	if !settings.EnableDND || len(settings.MutedApps) != 1 {
		t.Errorf("Unexpected settings %+v", settings)
	}
}

func TestEventsStream(t *testing.T) {
	srv, tracker, work := setupTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected event stream, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() string {
		t.Helper()
		var data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read event: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			if strings.HasPrefix(line, "data: ") {
				data = strings.TrimPrefix(line, "data: ")
			}
			if line == "" && data != "" {
				return data
			}
		}
	}

	var info tracking.SessionInfo
	if err := json.Unmarshal([]byte(readEvent()), &info); err != nil || info.IsTracking {
		t.Fatalf("Expected idle snapshot, got %+v (%v)", info, err)
	}

	if _, err := tracker.SetActive(context.Background(), work.ID, true); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	if err := json.Unmarshal([]byte(readEvent()), &info); err != nil || info.SpaceID != work.ID {
		t.Fatalf("Expected tracking snapshot, got %+v (%v)", info, err)
	}
}

func TestCORSPreflight(t *testing.T) {
	tracker := service.New(service.Options{
		Store:    memory.New(),
		Provider: window.NewStatic(""),
		Logger:   zerolog.Nop(),
	})
	srv := NewServer(Config{AllowedOrigins: []string{"http://localhost:1420"}}, tracker, zerolog.Nop())

	req := httptest.NewRequest(http.MethodOptions, "/api/spaces/abc/toggle", nil)
	req.Header.Set("Origin", "http://localhost:1420")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:1420" {
		t.Errorf("Expected origin header, got %q", got)
	}
}

func TestFocusedApp(t *testing.T) {
	srv, _, _ := setupTestServer(t)
	rec := doRequest(t, srv.Handler(), "GET", "/api/apps/focused", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var app window.App
	_ = json.NewDecoder(rec.Body).Decode(&app)
	if app.Name != "Code" {
		t.Errorf("Expected Code, got %+v", app)
	}
}
