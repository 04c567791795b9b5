package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docsift/internal/config"
	"github.com/dgallion1/docsift/internal/export"
	"github.com/dgallion1/docsift/internal/pipeline"
)

const guideMD = `# Solar Power

Solar panels convert sunlight into electricity for rooftops and homes across the region.

# Wind Energy

Wind turbines generate electricity from coastal breezes and steady offshore winds.
`

func testConfig() config.Config {
	return config.Config{
		WorkerCount:          1,
		MaxQueueSize:         4,
		MaxConcurrentExtract: 2,
		MaxUploadBytes:       1 << 20,
		MaxFilesPerRequest:   5,
		JobTTL:               time.Hour,
		CleanupInterval:      time.Minute,
		TopSections:          15,
		RefinePool:           20,
		TopSubsections:       10,
		LatentComponents:     100,
		MaxFeatures:          5000,
		RandomSeed:           42,
	}
}

func newTestServer(t *testing.T, cfg config.Config, start bool) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.NewOrchestrator(cfg, pipeline.NewService(cfg, nil, nil, log), log)
	if start {
		orch.Start(context.Background())
		t.Cleanup(orch.Stop)
	}
	return NewServer(orch, export.New(log), log, cfg)
}

type upload struct {
	field, name, body string
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(f.body))
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(), false)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("expected ok, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAnalyze_Validation(t *testing.T) {
	s := newTestServer(t, testConfig(), false)
	md := upload{"files", "guide.md", guideMD}
	tests := []struct {
		name   string
		fields map[string]string
		files  []upload
		want   string
	}{
		{"missing service", nil, []upload{md}, "service type and files are required"},
		{"missing files", map[string]string{"service": "structure"}, nil, "service type and files are required"},
		{"structure with two files", map[string]string{"service": "structure"}, []upload{md, md}, "exactly one file"},
		{"persona without task", map[string]string{"service": "persona", "persona": "p"}, []upload{md}, "persona and jobTask are required"},
		{"unknown service", map[string]string{"service": "summarize"}, []upload{md}, "invalid service type"},
		{"unsupported file", map[string]string{"service": "structure"}, []upload{{"files", "data.csv", "a,b"}}, "unsupported file type: .csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, multipartRequest(t, "/api/analyze", tt.fields, tt.files...))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if msg, _ := decode(t, rec)["error"].(string); !strings.Contains(msg, tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, msg)
			}
		})
	}
}

func TestAnalyze_Structure(t *testing.T) {
	s := newTestServer(t, testConfig(), false)
	rec := serve(s, multipartRequest(t, "/api/analyze", map[string]string{"service": "structure"}, upload{"files", "guide.md", guideMD}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if _, ok := out["title"].(string); !ok {
		t.Errorf("expected title, got %v", out)
	}
	if _, ok := out["outline"].([]any); !ok {
		t.Errorf("expected outline array, got %v", out["outline"])
	}
}

func TestAnalyze_Persona(t *testing.T) {
	s := newTestServer(t, testConfig(), false)
	fields := map[string]string{"service": "persona", "persona": "PhD Researcher", "jobTask": "literature review"}
	rec := serve(s, multipartRequest(t, "/api/analyze", fields, upload{"files", "guide.md", guideMD}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res pipeline.PersonaResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Metadata.Persona != "PhD Researcher" || res.Metadata.JobToBeDone != "literature review" {
		t.Errorf("unexpected metadata %+v", res.Metadata)
	}
	if len(res.ExtractedSections) != 2 || res.ExtractedSections[0].ImportanceRank != 1 {
		t.Errorf("unexpected sections %+v", res.ExtractedSections)
	}
}

func TestStructure_SingleFile(t *testing.T) {
	s := newTestServer(t, testConfig(), false)
	rec := serve(s, multipartRequest(t, "/api/structure", nil, upload{"file", "broken.pdf", "not a pdf"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if out := decode(t, rec); out["title"] != "Unknown Document" {
		t.Errorf("expected unknown result, got %v", out)
	}

	rec = serve(s, multipartRequest(t, "/api/structure", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without file, got %d", rec.Code)
	}
}

func jsonPersonaBody(content string) string {
	enc := base64.StdEncoding.EncodeToString([]byte(content))
	return `{"persona":{"role":"Installer"},"job_to_be_done":{"task":"pick panels"},"documents":[{"filename":"guide.md","content":"` + enc + `"}]}`
}

func TestPersona_JSONBody(t *testing.T) {
	s := newTestServer(t, testConfig(), false)
	req := httptest.NewRequest(http.MethodPost, "/api/persona", strings.NewReader(jsonPersonaBody(guideMD)))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	md, _ := out["metadata"].(map[string]any)
	if md["persona"] != "Installer" {
		t.Errorf("unexpected metadata %v", md)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/persona", strings.NewReader(`{"persona":{"role":"r"},"job_to_be_done":{"task":"t"},"documents":["guide.md"]}`))
	req.Header.Set("Content-Type", "application/json")
	if rec := serve(s, req); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for path-only documents, got %d", rec.Code)
	}
}

func TestPersona_XLSX(t *testing.T) {
	s := newTestServer(t, testConfig(), false)
	fields := map[string]string{"persona": "Installer", "job": "pick panels"}
	rec := serve(s, multipartRequest(t, "/api/persona?format=xlsx", fields, upload{"files", "guide.md", guideMD}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("expected xlsx content type, got %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("expected zip container")
	}
}

func TestAuth(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = "secret"
	s := newTestServer(t, cfg, false)

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/stats", nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if rec := serve(s, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rec.Code)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if rec := serve(s, req); rec.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", rec.Code)
	}
	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
		t.Errorf("expected public health, got %d", rec.Code)
	}
}

func TestJobs_Lifecycle(t *testing.T) {
	s := newTestServer(t, testConfig(), true)
	fields := map[string]string{"persona": "Planner", "job": "energy plan"}
	rec := serve(s, multipartRequest(t, "/api/persona/jobs", fields, upload{"files", "guide.md", guideMD}))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	id, _ := out["job_id"].(string)
	if id == "" || out["poll_url"] != "/api/persona/jobs/"+id {
		t.Fatalf("unexpected submit response %v", out)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/persona/jobs/"+id, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 status, got %d", rec.Code)
		}
		if decode(t, rec)["status"] == string(pipeline.StatusCompleted) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not complete: %s", rec.Body.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/persona/jobs/"+id+"/result", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 result, got %d", rec.Code)
	}
	if md, _ := decode(t, rec)["metadata"].(map[string]any); md["persona"] != "Planner" {
		t.Errorf("unexpected result metadata %v", md)
	}

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	stats := decode(t, rec)
	if jobs, _ := stats["jobs"].(map[string]any); jobs["completed"] != float64(1) {
		t.Errorf("expected one completed job, got %v", stats["jobs"])
	}

	rec = serve(s, httptest.NewRequest(http.MethodDelete, "/api/persona/jobs/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 delete, got %d", rec.Code)
	}
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/persona/jobs/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestJobs_ResultBeforeCompletion(t *testing.T) {
	s := newTestServer(t, testConfig(), false)
	fields := map[string]string{"persona": "Planner", "job": "energy plan"}
	rec := serve(s, multipartRequest(t, "/api/persona/jobs", fields, upload{"files", "guide.md", guideMD}))
	id, _ := decode(t, rec)["job_id"].(string)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/persona/jobs/"+id+"/result", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if out := decode(t, rec); out["status"] != string(pipeline.StatusQueued) {
		t.Errorf("expected queued status, got %v", out)
	}

	if rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/persona/jobs/nope", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
