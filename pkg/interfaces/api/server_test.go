package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/tandas/pkg/application/dto"
	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/infrastructure/events"
	"github.com/vsinha/tandas/pkg/infrastructure/repositories/memory"
	testhelpers "github.com/vsinha/tandas/pkg/infrastructure/testing"
)

type errorBody struct {
	Error string `json:"error"`
}

func newTestServer(t *testing.T) (*Server, *memory.Backend, *events.InMemoryEventStore) {
	t.Helper()
	backend := testhelpers.BuildPlantScenario()
	store := events.NewInMemoryEventStore()
	server := NewServer(Config{
		EventStore: store,
		Now:        func() time.Time { return testhelpers.ScenarioClock },
	}, backend, backend)
	return server, backend, store
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func createSession(t *testing.T, s *Server) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/sessions", nil)
	expectStatus(t, rec, http.StatusCreated)

	var resp struct {
		SessionID string                     `json:"session_id"`
		Lines     []*entities.ProductionLine `json:"lines"`
	}
	decode(t, rec, &resp)
	if len(resp.Lines) != 2 {
		t.Fatalf("Expected the 2 active lines, got %d", len(resp.Lines))
	}
	return resp.SessionID
}

func TestServer_ComposeAndAdvance(t *testing.T) {
	s, backend, store := newTestServer(t)
	id := createSession(t, s)
	base := "/api/sessions/" + id

	rec := do(t, s, http.MethodPost, base+"/line", map[string]int{"line_id": 1})
	expectStatus(t, rec, http.StatusOK)
	var view dto.PoolView
	decode(t, rec, &view)
	if len(view.Candidates) != 3 {
		t.Fatalf("Expected 3 candidates, got %d", len(view.Candidates))
	}

	for _, orderID := range []int{1, 2} {
		rec = do(t, s, http.MethodPost, base+"/toggle", map[string]int{"order_id": orderID})
		expectStatus(t, rec, http.StatusOK)
	}
	var toggle dto.ToggleResult
	decode(t, rec, &toggle)
	if !toggle.Total.Equal(decimal.NewFromInt(450)) || !toggle.Remaining.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected 450 selected and 50 left, got %s / %s", toggle.Total, toggle.Remaining)
	}

	rec = do(t, s, http.MethodPost, base+"/toggle", map[string]int{"order_id": 3})
	expectStatus(t, rec, http.StatusConflict)
	var body errorBody
	decode(t, rec, &body)
	if !strings.HasPrefix(body.Error, "Capacity exceeded") {
		t.Errorf("Expected capacity message, got %q", body.Error)
	}

	rec = do(t, s, http.MethodPost, base+"/submit", nil)
	expectStatus(t, rec, http.StatusCreated)
	var submitted dto.SubmitResult
	decode(t, rec, &submitted)
	if submitted.BatchID != 21 || len(submitted.Orders) != 2 {
		t.Errorf("Expected batch 21 with 2 orders, got %+v", submitted)
	}

	rec = do(t, s, http.MethodPost, base+"/submit", nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = do(t, s, http.MethodGet, "/api/batches/planificada", nil)
	expectStatus(t, rec, http.StatusOK)
	var listing struct {
		State entities.BatchState   `json:"state"`
		Lines []*entities.LineGroup `json:"lines"`
	}
	decode(t, rec, &listing)
	if len(listing.Lines) != 2 {
		t.Fatalf("Expected planned batches on 2 lines, got %d", len(listing.Lines))
	}

	rec = do(t, s, http.MethodPost, "/api/batches/planificada/lines/2/request", nil)
	expectStatus(t, rec, http.StatusOK)
	var plan dto.TransitionPlan
	decode(t, rec, &plan)
	if plan.To != entities.StateInProgress || len(plan.BatchIDs) != 3 {
		t.Fatalf("Expected 3 batches moving to en_progreso, got %+v", plan)
	}

	rec = do(t, s, http.MethodPost, "/api/batches/planificada/lines/2/confirm", nil)
	expectStatus(t, rec, http.StatusOK)
	for _, batchID := range []entities.BatchID{10, 11, 12} {
		state, err := backend.BatchState(batchID)
		if err != nil || state != entities.StateInProgress {
			t.Errorf("Expected batch %d en_progreso, got %s (%v)", batchID, state, err)
		}
	}

	rec = do(t, s, http.MethodPost, "/api/batches/planificada/lines/2/confirm", nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	if store.Position() != 3 {
		t.Errorf("Expected rejected, submitted and transitioned events, got %d", store.Position())
	}
	rec = do(t, s, http.MethodGet, "/api/lines/2/events", nil)
	expectStatus(t, rec, http.StatusOK)
	var lineEvents struct {
		Events []events.BaseEvent `json:"events"`
	}
	decode(t, rec, &lineEvents)
	if len(lineEvents.Events) != 1 || lineEvents.Events[0].EventType != events.BatchTransitionedEvent {
		t.Errorf("Expected one transition event on line 2, got %+v", lineEvents.Events)
	}
}

func TestServer_Errors(t *testing.T) {
	s, _, _ := newTestServer(t)
	id := createSession(t, s)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"unknown session", http.MethodGet, "/api/sessions/" + "00000000-0000-0000-0000-000000000000", nil, http.StatusNotFound},
		{"malformed session", http.MethodGet, "/api/sessions/abc", nil, http.StatusNotFound},
		{"toggle without body", http.MethodPost, "/api/sessions/" + id + "/toggle", nil, http.StatusBadRequest},
		{"submit without line", http.MethodPost, "/api/sessions/" + id + "/submit", nil, http.StatusUnprocessableEntity},
		{"inactive line", http.MethodPost, "/api/sessions/" + id + "/line", map[string]int{"line_id": 3}, http.StatusUnprocessableEntity},
		{"invalid state", http.MethodGet, "/api/batches/terminada", nil, http.StatusBadRequest},
		{"terminal state", http.MethodPost, "/api/batches/completada/lines/2/request", nil, http.StatusUnprocessableEntity},
		{"nothing to move", http.MethodPost, "/api/batches/en_progreso/lines/1/request", nil, http.StatusUnprocessableEntity},
		{"bad line", http.MethodPost, "/api/batches/planificada/lines/x/request", nil, http.StatusBadRequest},
		{"cancel without plan", http.MethodDelete, "/api/batches/planificada/lines/2/request", nil, http.StatusUnprocessableEntity},
		{"confirm without plan", http.MethodPost, "/api/batches/planificada/lines/2/confirm", nil, http.StatusUnprocessableEntity},
		{"bad event position", http.MethodGet, "/api/events?from=-1", nil, http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/nope", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body)
			expectStatus(t, rec, tt.want)
			var body errorBody
			decode(t, rec, &body)
			if body.Error == "" {
				t.Error("Expected an error message")
			}
		})
	}
}

func TestServer_LogsRequestErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(&buf)

	backend := testhelpers.BuildPlantScenario()
	s := NewServer(Config{Logger: logger}, backend, backend)
	id := createSession(t, s)

	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/submit", nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	out := buf.String()
	for _, want := range []string{`"module":"api"`, `submitBatch`, `"context":"POST /api/sessions/:id/submit"`, `"status":422`, `"level":"error"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log output to contain %s, got %s", want, out)
		}
	}

	buf.Reset()
	expectStatus(t, do(t, s, http.MethodGet, "/healthz", nil), http.StatusNoContent)
	if buf.Len() != 0 {
		t.Errorf("Expected no error log for a healthy request, got %s", buf.String())
	}
}

func TestServer_CancelTransition(t *testing.T) {
	s, backend, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/batches/en_progreso/lines/3/request", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, s, http.MethodDelete, "/api/batches/en_progreso/lines/3/request", nil)
	expectStatus(t, rec, http.StatusNoContent)

	rec = do(t, s, http.MethodPost, "/api/batches/en_progreso/lines/3/confirm", nil)
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	if state, _ := backend.BatchState(20); state != entities.StateInProgress {
		t.Errorf("Expected batch 20 untouched, got %s", state)
	}
}

func TestServer_SessionLifecycle(t *testing.T) {
	s, _, _ := newTestServer(t)
	id := createSession(t, s)
	if s.Sessions().Len() != 1 {
		t.Fatalf("Expected 1 session, got %d", s.Sessions().Len())
	}

	rec := do(t, s, http.MethodPost, "/api/sessions/"+id+"/reload", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, s, http.MethodDelete, "/api/sessions/"+id, nil)
	expectStatus(t, rec, http.StatusNoContent)

	rec = do(t, s, http.MethodDelete, "/api/sessions/"+id, nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestServer_ExportAndHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/batches/planificada/export", nil)
	expectStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("Expected xlsx content type, got %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("Expected a workbook body")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(CorrelationHeader, "abc-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusNoContent)
	if got := rec.Header().Get(CorrelationHeader); got != "abc-123" {
		t.Errorf("Expected correlation id to be echoed, got %q", got)
	}

	rec = do(t, s, http.MethodGet, "/api/lines", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get(CorrelationHeader) == "" {
		t.Error("Expected a generated correlation id")
	}
}
