package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"genaid/internal/manager"
	"genaid/pkg/types"
)

// stubService implements Service with scripted behavior.
type stubService struct {
	models   []types.Model
	status   types.StatusResponse
	ready    bool
	genErr   error
	unloaded []string
	lines    []string
}

func (s *stubService) ListModels() []types.Model      { return s.models }
func (s *stubService) Status() types.StatusResponse   { return s.status }
func (s *stubService) Ready() bool                    { return s.ready }
func (s *stubService) Unload(modelID string) error {
	if modelID == "gone" {
		return manager.ErrModelNotFound(modelID)
	}
	s.unloaded = append(s.unloaded, modelID)
	return nil
}
func (s *stubService) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error {
	if s.genErr != nil {
		return s.genErr
	}
	for _, l := range s.lines {
		io.WriteString(w, l+"\n")
		if flush != nil {
			flush()
		}
	}
	return nil
}

func TestModelsEndpoint(t *testing.T) {
	svc := &stubService{models: []types.Model{{ID: "m1", Kind: types.KindGraph}}}
	srv := httptest.NewServer(NewMux(svc))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/models")
	if err != nil {
		t.Fatalf("GET /models: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var mr types.ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(mr.Models) != 1 || mr.Models[0].ID != "m1" {
		t.Fatalf("unexpected body %+v", mr)
	}
}

func TestStatusEndpoint(t *testing.T) {
	svc := &stubService{status: types.StatusResponse{State: "ready", BudgetMB: 1024}}
	srv := httptest.NewServer(NewMux(svc))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	var sr types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sr.State != "ready" || sr.BudgetMB != 1024 {
		t.Fatalf("unexpected body %+v", sr)
	}
}

func TestGenerateRequiresJSON(t *testing.T) {
	srv := httptest.NewServer(NewMux(&stubService{}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/generate", "text/plain", strings.NewReader("hi"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status %d, want 415", resp.StatusCode)
	}
}

func TestGenerateRequiresPrompt(t *testing.T) {
	srv := httptest.NewServer(NewMux(&stubService{}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/generate", "application/json", strings.NewReader(`{"model":"m1"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	var er types.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if er.Code != 400 {
		t.Fatalf("error payload %+v", er)
	}
}

func TestGenerateStreamsNDJSON(t *testing.T) {
	svc := &stubService{lines: []string{`{"token":"a"}`, `{"done":true,"content":"a"}`}}
	srv := httptest.NewServer(NewMux(svc))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/generate", "application/json", strings.NewReader(`{"prompt":"hi","stream":true}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); got != "application/x-ndjson" {
		t.Fatalf("Content-Type %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), body)
	}
}

func TestGenerateErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{manager.ErrModelNotFound("m1"), http.StatusNotFound},
		{manager.ErrDependencyUnavailable("engine missing"), http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := &stubService{genErr: tc.err}
		srv := httptest.NewServer(NewMux(svc))
		resp, err := http.Post(srv.URL+"/generate", "application/json", strings.NewReader(`{"prompt":"hi"}`))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
		srv.Close()
		if resp.StatusCode != tc.want {
			t.Fatalf("err %v mapped to %d, want %d", tc.err, resp.StatusCode, tc.want)
		}
	}
}

func TestUnloadEndpoint(t *testing.T) {
	svc := &stubService{}
	srv := httptest.NewServer(NewMux(svc))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/models/m1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status %d, want 204", resp.StatusCode)
	}
	if len(svc.unloaded) != 1 || svc.unloaded[0] != "m1" {
		t.Fatalf("unload not forwarded: %v", svc.unloaded)
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/models/gone", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	svc := &stubService{}
	srv := httptest.NewServer(NewMux(svc))
	defer srv.Close()

	resp, _ := http.Get(srv.URL + "/healthz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status %d", resp.StatusCode)
	}
	resp, _ = http.Get(srv.URL + "/readyz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("/readyz status %d before ready", resp.StatusCode)
	}
	svc.ready = true
	resp, _ = http.Get(srv.URL + "/readyz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz status %d when ready", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewMux(&stubService{}))
	defer srv.Close()

	// Prime the counters with one observed request.
	warm, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	warm.Body.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "genaid_http_requests_total") {
		t.Fatal("request counter not exported")
	}
}

func TestCORSOptIn(t *testing.T) {
	SetCORSOptions(true, []string{"http://example.com"}, []string{"GET"}, nil)
	defer SetCORSOptions(false, nil, nil, nil)
	srv := httptest.NewServer(NewMux(&stubService{}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/models", nil)
	req.Header.Set("Origin", "http://example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("Allow-Origin %q", got)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	if statusForError(manager.ErrModelNotFound("x")) != http.StatusNotFound {
		t.Fatal("model-not-found mapping")
	}
	if statusForError(manager.ErrDependencyUnavailable("x")) != http.StatusServiceUnavailable {
		t.Fatal("dependency mapping")
	}
}
