// Quakewatch - Multi-Source Seismic Event Ingestion and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/quakewatch/internal/models"
	"github.com/tomtom215/quakewatch/internal/pipeline"
)

type fakeIngester struct {
	result pipeline.Result
	err    error
	calls  int64
}

func (f *fakeIngester) Run(_ context.Context) (pipeline.Result, error) {
	atomic.AddInt64(&f.calls, 1)
	return f.result, f.err
}

type fakeReader struct {
	runs    []models.RunLog
	unified map[string]*models.UnifiedEvent
	dead    []models.DeadLetterRecord
	err     error
}

func (f *fakeReader) RecentRuns(_ context.Context, limit int) ([]models.RunLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeReader) GetUnifiedEvent(_ context.Context, id string) (*models.UnifiedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.unified[id], nil
}

func (f *fakeReader) DeadLetters(_ context.Context, source string, limit int) ([]models.DeadLetterRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.DeadLetterRecord
	for _, d := range f.dead {
		if source == "" || d.Source == source {
			out = append(out, d)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func newTestServer(ingester Ingester, reader Reader) *httptest.Server {
	handler := NewHandler(ingester, reader)
	router := NewRouter(handler, RouterConfig{})
	return httptest.NewServer(router.Setup())
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeIngester{}, &fakeReader{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf(`body = %v, want {"status":"ok"}`, body)
	}
}

func TestIngestSuccess(t *testing.T) {
	ingester := &fakeIngester{result: pipeline.Result{
		RunID:         "abc12345",
		Sources:       []string{"usgs", "emsc"},
		RawEvents:     7,
		UnifiedEvents: 5,
		DeadLetters:   1,
		DurationS:     0.42,
	}}
	srv := newTestServer(ingester, &fakeReader{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ingest", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /ingest: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var result pipeline.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.RunID != "abc12345" || result.RawEvents != 7 || result.UnifiedEvents != 5 {
		t.Errorf("result = %+v", result)
	}
}

func TestIngestFailure(t *testing.T) {
	ingester := &fakeIngester{err: errors.New("all 3 sources failed")}
	srv := newTestServer(ingester, &fakeReader{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ingest", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /ingest: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(body["error"], "sources failed") {
		t.Errorf("error = %q", body["error"])
	}
}

func TestIngestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeIngester{}, &fakeReader{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ingest")
	if err != nil {
		t.Fatalf("GET /ingest: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestIngestConcurrentTriggersAllServed(t *testing.T) {
	ingester := &fakeIngester{}
	srv := newTestServer(ingester, &fakeReader{})
	defer srv.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(srv.URL+"/ingest", "application/json", nil)
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt64(&ingester.calls); n != 4 {
		t.Errorf("calls = %d, want 4", n)
	}
}

func TestIngestRateLimited(t *testing.T) {
	handler := NewHandler(&fakeIngester{}, &fakeReader{})
	router := NewRouter(handler, RouterConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})
	srv := httptest.NewServer(router.Setup())
	defer srv.Close()

	limited := false
	for i := 0; i < 5; i++ {
		resp, err := http.Post(srv.URL+"/ingest", "application/json", nil)
		if err != nil {
			t.Fatalf("POST /ingest: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("expected a 429 after exceeding the ingest rate limit")
	}

	// Health must stay outside the limiter.
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200 despite ingest limit", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&fakeIngester{}, &fakeReader{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), "# HELP") {
		t.Error("metrics output missing exposition format")
	}
}

func TestRuns(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	reader := &fakeReader{runs: []models.RunLog{
		{RunID: "run00002", StartedAt: now.Add(time.Minute), Status: models.RunStatusOK},
		{RunID: "run00001", StartedAt: now, Status: models.RunStatusFailed},
	}}
	srv := newTestServer(&fakeIngester{}, reader)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs")
	if err != nil {
		t.Fatalf("GET /runs: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Runs []models.RunLog `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Runs) != 2 || body.Runs[0].RunID != "run00002" {
		t.Errorf("runs = %+v", body.Runs)
	}
}

func TestRunsLimit(t *testing.T) {
	reader := &fakeReader{runs: []models.RunLog{
		{RunID: "a"}, {RunID: "b"}, {RunID: "c"},
	}}
	srv := newTestServer(&fakeIngester{}, reader)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs?limit=1")
	if err != nil {
		t.Fatalf("GET /runs: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Runs []models.RunLog `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Runs) != 1 {
		t.Errorf("len(runs) = %d, want 1", len(body.Runs))
	}
}

func TestUnifiedEventLookup(t *testing.T) {
	reader := &fakeReader{unified: map[string]*models.UnifiedEvent{
		"UE-0123456789abcdef": {UnifiedEventID: "UE-0123456789abcdef", NumSources: 2},
	}}
	srv := newTestServer(&fakeIngester{}, reader)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events/unified/UE-0123456789abcdef")
	if err != nil {
		t.Fatalf("GET unified: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var ev models.UnifiedEvent
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.UnifiedEventID != "UE-0123456789abcdef" || ev.NumSources != 2 {
		t.Errorf("event = %+v", ev)
	}

	missing, err := http.Get(srv.URL + "/events/unified/UE-ffffffffffffffff")
	if err != nil {
		t.Fatalf("GET missing: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", missing.StatusCode)
	}
}

func TestDeadLettersFilter(t *testing.T) {
	reader := &fakeReader{dead: []models.DeadLetterRecord{
		{Source: "usgs", RawPayload: "a"},
		{Source: "emsc", RawPayload: "b"},
	}}
	srv := newTestServer(&fakeIngester{}, reader)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/deadletters?source=emsc")
	if err != nil {
		t.Fatalf("GET /deadletters: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		DeadLetters []models.DeadLetterRecord `json:"dead_letters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.DeadLetters) != 1 || body.DeadLetters[0].Source != "emsc" {
		t.Errorf("dead letters = %+v", body.DeadLetters)
	}
}

func TestReaderErrorsReturn500(t *testing.T) {
	reader := &fakeReader{err: errors.New("db gone")}
	srv := newTestServer(&fakeIngester{}, reader)
	defer srv.Close()

	for _, path := range []string{"/runs", "/events/unified/UE-x", "/deadletters"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("%s status = %d, want 500", path, resp.StatusCode)
		}
	}
}

func TestQueryLimit(t *testing.T) {
	tests := []struct {
		raw  string
		def  int
		want int
	}{
		{"", 20, 20},
		{"5", 20, 5},
		{"0", 20, 20},
		{"-3", 20, 20},
		{"junk", 20, 20},
		{"9999", 20, 500},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/runs?limit="+tt.raw, nil)
		if got := queryLimit(r, tt.def); got != tt.want {
			t.Errorf("queryLimit(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
