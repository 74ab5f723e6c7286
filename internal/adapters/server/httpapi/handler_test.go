package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hylla/arkiv/internal/adapters/server/common"
)

// stubBackupService provides deterministic backup responses for handler tests.
type stubBackupService struct {
	artifacts    []common.Artifact
	runs         []common.Run
	result       common.RunResult
	prune        []common.PruneResult
	err          error
	lastList     common.ListArtifactsRequest
	lastRuns     common.ListRunsRequest
	lastRun      common.RunBackupRequest
	lastPrune    common.PruneRequest
	runRequested bool
}

func (s *stubBackupService) ListArtifacts(_ context.Context, req common.ListArtifactsRequest) ([]common.Artifact, error) {
	s.lastList = req
	if s.err != nil {
		return nil, s.err
	}
	return append([]common.Artifact{}, s.artifacts...), nil
}

func (s *stubBackupService) ListRuns(_ context.Context, req common.ListRunsRequest) ([]common.Run, error) {
	s.lastRuns = req
	if s.err != nil {
		return nil, s.err
	}
	return append([]common.Run{}, s.runs...), nil
}

func (s *stubBackupService) RunBackup(_ context.Context, req common.RunBackupRequest) (common.RunResult, error) {
	s.lastRun = req
	s.runRequested = true
	if s.err != nil {
		return common.RunResult{}, s.err
	}
	return s.result, nil
}

func (s *stubBackupService) Prune(_ context.Context, req common.PruneRequest) ([]common.PruneResult, error) {
	s.lastPrune = req
	if s.err != nil {
		return nil, s.err
	}
	return s.prune, nil
}

// serve runs one request through a handler and returns the recorder.
func serve(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// decodeError decodes one structured error envelope.
func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return env.Error
}

// TestHandlerListArtifacts verifies query filters and the response envelope.
func TestHandlerListArtifacts(t *testing.T) {
	created := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	svc := &stubBackupService{artifacts: []common.Artifact{{
		ID: "a", Name: "clickup-backup-Eng-x.json", Format: "json", Store: "local", CreatedAt: created,
	}}}
	rec := serve(t, NewHandler(svc), http.MethodGet, "/artifacts?store=local&workspace=Eng", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got struct {
		Artifacts []common.Artifact `json:"artifacts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got.Artifacts) != 1 || got.Artifacts[0].Name != "clickup-backup-Eng-x.json" || !got.Artifacts[0].CreatedAt.Equal(created) {
		t.Fatalf("unexpected artifacts %#v", got.Artifacts)
	}
	if svc.lastList.Store != "local" || svc.lastList.Workspace != "Eng" {
		t.Fatalf("unexpected filters %#v", svc.lastList)
	}
}

// TestHandlerListRunsParsesLimit verifies the limit query parameter.
func TestHandlerListRunsParsesLimit(t *testing.T) {
	svc := &stubBackupService{runs: []common.Run{{ID: "r1", Status: "succeeded"}}}
	handler := NewHandler(svc)

	rec := serve(t, handler, http.MethodGet, "/runs?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.lastRuns.Limit != 5 {
		t.Fatalf("limit = %d, want 5", svc.lastRuns.Limit)
	}
	if !strings.Contains(rec.Body.String(), `"runs":[{"id":"r1"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = serve(t, handler, http.MethodGet, "/runs?limit=many", "")
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != "invalid_request" {
		t.Fatalf("expected invalid_request, got %d %s", rec.Code, rec.Body.String())
	}
}

// TestHandlerRunBackup verifies POST /runs decoding and the created response.
func TestHandlerRunBackup(t *testing.T) {
	svc := &stubBackupService{result: common.RunResult{RunID: "run-1", Evicted: []common.Artifact{}}}
	handler := NewHandler(svc)

	rec := serve(t, handler, http.MethodPost, "/runs", `{"workspaces":["Eng/**"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if svc.lastRun.Trigger != "api" || len(svc.lastRun.Workspaces) != 1 || svc.lastRun.Workspaces[0] != "Eng/**" {
		t.Fatalf("unexpected run request %#v", svc.lastRun)
	}
	var got common.RunResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.RunID != "run-1" {
		t.Fatalf("run_id = %q, want run-1", got.RunID)
	}

	// An empty body runs every configured workspace.
	rec = serve(t, handler, http.MethodPost, "/runs", "")
	if rec.Code != http.StatusCreated || len(svc.lastRun.Workspaces) != 0 {
		t.Fatalf("expected empty-body run, got %d %#v", rec.Code, svc.lastRun)
	}
}

// TestHandlerRunBackupRejectsMalformedBodies verifies fail-closed decoding.
func TestHandlerRunBackupRejectsMalformedBodies(t *testing.T) {
	for _, body := range []string{`{"workspace":"Eng"}`, `{"workspaces":[]}{}`, `[`} {
		svc := &stubBackupService{}
		rec := serve(t, NewHandler(svc), http.MethodPost, "/runs", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want %d", body, rec.Code, http.StatusBadRequest)
		}
		if svc.runRequested {
			t.Fatalf("body %q: expected run not to start", body)
		}
	}
}

// TestHandlerErrorMapping verifies structured status mapping for service errors.
func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "busy", err: errors.Join(common.ErrRunInProgress, errors.New("held")), wantStatus: http.StatusConflict, wantCode: "run_in_progress"},
		{name: "unknown store", err: common.ErrUnknownStore, wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "invalid", err: common.ErrInvalidRequest, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "unavailable", err: common.ErrBackupUnavailable, wantStatus: http.StatusServiceUnavailable, wantCode: "service_unavailable"},
		{name: "internal", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, NewHandler(&stubBackupService{err: tt.err}), http.MethodPost, "/runs", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decodeError(t, rec); got.Code != tt.wantCode {
				t.Fatalf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

// TestHandlerPrune verifies POST /prune passes the dry-run flag.
func TestHandlerPrune(t *testing.T) {
	svc := &stubBackupService{prune: []common.PruneResult{{Store: "local", DryRun: true, Deleted: []common.Artifact{}, Failed: []common.Artifact{}}}}
	rec := serve(t, NewHandler(svc), http.MethodPost, "/prune", `{"dry_run":true}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !svc.lastPrune.DryRun {
		t.Fatal("expected dry_run to be decoded")
	}
	if !strings.Contains(rec.Body.String(), `"stores":[{"store":"local"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

// TestHandlerRoutingErrors verifies unknown paths and methods.
func TestHandlerRoutingErrors(t *testing.T) {
	handler := NewHandler(&stubBackupService{})

	rec := serve(t, handler, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	rec = serve(t, handler, http.MethodDelete, "/runs", "")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET, POST" {
		t.Fatalf("unexpected 405 response %d %q", rec.Code, rec.Header().Get("Allow"))
	}
	rec = serve(t, handler, http.MethodPost, "/artifacts", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

// TestHandlerWithoutService verifies the unavailable response.
func TestHandlerWithoutService(t *testing.T) {
	rec := serve(t, NewHandler(nil), http.MethodGet, "/artifacts", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
