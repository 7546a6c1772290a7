package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/janpfeifer/GoOracle/internal/game"
	"github.com/janpfeifer/GoOracle/internal/store"
	"github.com/janpfeifer/GoOracle/internal/table"
	"github.com/labstack/echo/v4"
)

type fakeResults struct {
	records []store.Record
	stats   store.Stats
	err     error
	limit   int
}

func (f *fakeResults) Recent(_ context.Context, limit int) ([]store.Record, error) {
	f.limit = limit
	return f.records, f.err
}

func (f *fakeResults) Stats(context.Context) (store.Stats, error) {
	return f.stats, f.err
}

func newTestAPI(t *testing.T, results Results) (*echo.Echo, *table.Registry) {
	t.Helper()
	reg := table.NewRegistry(table.Options{NewRNG: func() game.RNG { return game.NewRNG(5) }})
	t.Cleanup(reg.CloseAll)
	return New(NewHandler(reg, results)), reg
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeTable(t *testing.T, rec *httptest.ResponseRecorder) TableResponse {
	t.Helper()
	var resp TableResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	e, _ := newTestAPI(t, nil)
	rec := do(e, http.MethodGet, "/api/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(headerRequestID) == "" {
		t.Errorf("Expected a %s header", headerRequestID)
	}
}

func TestTableLifecycle(t *testing.T) {
	e, reg := newTestAPI(t, nil)

	rec := do(e, http.MethodPost, "/api/tables", `{"mode":"manual","question":" Should I move to Lisbon? "}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create: status %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeTable(t, rec)
	if created.ID == "" || created.Snapshot.Mode != game.ModeManual || created.Snapshot.Phase != game.PhasePlaying {
		t.Fatalf("Unexpected created table %+v", created)
	}
	if created.Snapshot.Question != "Should I move to Lisbon?" {
		t.Errorf("Unexpected question %q", created.Snapshot.Question)
	}
	if created.SpeedLabel != "1x Normal" {
		t.Errorf("Unexpected speed label %q", created.SpeedLabel)
	}
	if reg.Len() != 1 {
		t.Errorf("Expected one registered table, got %d", reg.Len())
	}
	base := "/api/tables/" + created.ID

	rec = do(e, http.MethodGet, base, "")
	if rec.Code != http.StatusOK || decodeTable(t, rec).Snapshot.Step != 0 {
		t.Fatalf("Get: status %d, body %s", rec.Code, rec.Body.String())
	}

	// Reveal then place on the allowed groups.
	allowed := created.Snapshot.Manual.Allowed[0]
	rec = do(e, http.MethodPost, base+"/reveal", `{"group":`+strconv.Itoa(allowed)+`}`)
	revealed := decodeTable(t, rec).Snapshot
	if rec.Code != http.StatusOK {
		t.Fatalf("Reveal: status %d, body %s", rec.Code, rec.Body.String())
	}
	if revealed.Phase == game.PhasePlaying {
		if !revealed.Manual.WaitingForPlacement || revealed.Manual.Revealed == nil {
			t.Fatalf("Expected a card waiting for placement, got %+v", revealed.Manual)
		}
		rec = do(e, http.MethodPost, base+"/place", `{"group":`+strconv.Itoa(revealed.Manual.Allowed[0])+`}`)
		if rec.Code != http.StatusOK || decodeTable(t, rec).Snapshot.Step != 1 {
			t.Fatalf("Place: status %d, body %s", rec.Code, rec.Body.String())
		}
	}

	rec = do(e, http.MethodPut, base+"/speed", `{"speed":2}`)
	if rec.Code != http.StatusOK || decodeTable(t, rec).SpeedLabel != "2x Fast" {
		t.Fatalf("Speed: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodPost, base+"/start", `{"mode":"auto"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Restart: status %d, body %s", rec.Code, rec.Body.String())
	}
	if snap := decodeTable(t, rec).Snapshot; snap.Mode != game.ModeAuto || snap.Step != 0 || snap.Speed != game.SpeedFast {
		t.Errorf("Unexpected snapshot after restart: %+v", snap)
	}

	rec = do(e, http.MethodDelete, base, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Delete: status %d", rec.Code)
	}
	if rec = do(e, http.MethodGet, base, ""); rec.Code != http.StatusNotFound {
		t.Errorf("Get after delete: status %d", rec.Code)
	}
}

func TestOutOfTurnCommandIsIgnored(t *testing.T) {
	e, _ := newTestAPI(t, nil)
	created := decodeTable(t, do(e, http.MethodPost, "/api/tables", `{"mode":"manual"}`))
	rec := do(e, http.MethodPost, "/api/tables/"+created.ID+"/place", `{"group":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Place before reveal: status %d", rec.Code)
	}
	if snap := decodeTable(t, rec).Snapshot; snap.Step != 0 || !snap.Manual.WaitingForReveal {
		t.Errorf("Place before reveal should be a no-op, got %+v", snap.Manual)
	}
}

func TestErrors(t *testing.T) {
	e, _ := newTestAPI(t, nil)
	created := decodeTable(t, do(e, http.MethodPost, "/api/tables", ""))
	if created.Snapshot.Mode != game.ModeAuto {
		t.Errorf("Empty body should create an auto game, got %q", created.Snapshot.Mode)
	}
	base := "/api/tables/" + created.ID

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"unknown table", http.MethodGet, "/api/tables/nope", "", http.StatusNotFound},
		{"unknown table command", http.MethodPost, "/api/tables/nope/reveal", `{"group":0}`, http.StatusNotFound},
		{"delete unknown table", http.MethodDelete, "/api/tables/nope", "", http.StatusNotFound},
		{"bad mode", http.MethodPost, "/api/tables", `{"mode":"sideways"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/tables", `{"mode":`, http.StatusBadRequest},
		{"bad restart mode", http.MethodPost, base + "/start", `{"mode":"sideways"}`, http.StatusBadRequest},
		{"question too long", http.MethodPost, "/api/tables",
			`{"question":"` + strings.Repeat("?", game.MaxQuestionLength+1) + `"}`, http.StatusBadRequest},
		{"bad speed", http.MethodPut, base + "/speed", `{"speed":3}`, http.StatusBadRequest},
		{"missing group", http.MethodPost, base + "/reveal", `{}`, http.StatusBadRequest},
		{"results disabled", http.MethodGet, "/api/results", "", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("%s %s: status %d, want %d (body %s)", tt.method, tt.path, rec.Code, tt.want, rec.Body.String())
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == "" {
				t.Errorf("Expected an error body, got %q", rec.Body.String())
			}
		})
	}
}

func TestResults(t *testing.T) {
	results := &fakeResults{
		records: []store.Record{{ID: 1, TableID: "t1", Mode: game.ModeAuto, Success: true, Reason: game.ReasonCompleteOrder}},
		stats:   store.Stats{Games: 1, Wins: 1, ByReason: map[game.Reason]int{game.ReasonCompleteOrder: 1}},
	}
	e, _ := newTestAPI(t, results)

	rec := do(e, http.MethodGet, "/api/results?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Results: status %d", rec.Code)
	}
	var resp ResultsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].TableID != "t1" || results.limit != 5 {
		t.Errorf("Unexpected results %+v (limit %d)", resp.Results, results.limit)
	}

	if rec = do(e, http.MethodGet, "/api/results", ""); rec.Code != http.StatusOK || results.limit != store.DefaultLimit {
		t.Errorf("Default limit: status %d, limit %d", rec.Code, results.limit)
	}
	for _, limit := range []string{"0", "-1", "abc", "100000"} {
		if rec = do(e, http.MethodGet, "/api/results?limit="+limit, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status %d, want 400", limit, rec.Code)
		}
	}

	rec = do(e, http.MethodGet, "/api/results/stats", "")
	var stats store.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil || stats.Wins != 1 {
		t.Errorf("Stats: status %d, body %s", rec.Code, rec.Body.String())
	}

	results.err = errors.New("disk on fire")
	if rec = do(e, http.MethodGet, "/api/results/stats", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("Store failure: status %d, want 500", rec.Code)
	}
}
