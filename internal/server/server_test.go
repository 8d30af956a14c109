package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mid "github.com/bio-nexus/backend/internal/server/middleware"
	"github.com/bio-nexus/backend/pkg/agent"
	"github.com/bio-nexus/backend/pkg/embed"
	"github.com/bio-nexus/backend/pkg/index"
	"github.com/bio-nexus/backend/pkg/query"
	"github.com/bio-nexus/backend/pkg/retrieval"
	"github.com/bio-nexus/backend/pkg/store/memory"

	"github.com/labstack/echo/v4"
)

const paperText = `Microgravity Effects on Murine Bone Density
John A. Smith, Maria Garcia
2021

Abstract:
Microgravity exposure causes bone loss in mice. Smith (2019) reported similar trends in rats flown on the station.

Methods:
Mice were housed on the International Space Station for thirty days and bone density was measured by micro computed tomography.

Results:
Microgravity reduced bone density by twelve percent compared with ground controls kept in identical habitats.
`

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	s := memory.New()
	classifier := agent.NewClassifier(nil, time.Second)
	retriever := retrieval.NewRetriever(retrieval.NewRetrieverParams{Search: s, Classifier: classifier})
	indexer := index.NewIndexer(index.NewIndexerParams{
		Store:    s,
		Embedder: embed.NewGenerator(embed.NewGeneratorParams{Truncator: embed.CharTruncator{}, Dimension: 8}),
	})
	return New(&mid.App{
		Indexer:    indexer,
		Papers:     s,
		Retriever:  retriever,
		Classifier: classifier,
		Query: query.NewService(query.NewServiceParams{
			Store:        s,
			Retriever:    retriever,
			StageTimeout: time.Second,
		}),
		MaxFileSize: 1 << 20,
	})
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("expected JSON body, got %q: %v", rec.Body.String(), err)
	}
}

func upload(t *testing.T, e *echo.Echo, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("source", "test"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		_, _ = part.Write([]byte(content))
	}
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/papers", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type uploadResponse struct {
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
	Files   []struct {
		FileName string `json:"file_name"`
		Result   *struct {
			PaperID string `json:"paper_id"`
		} `json:"result"`
		Error string `json:"error"`
	} `json:"files"`
}

func uploadPaper(t *testing.T, e *echo.Echo) string {
	t.Helper()
	rec := upload(t, e, map[string]string{"bone.txt": paperText})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var res uploadResponse
	decode(t, rec, &res)
	if len(res.Files) != 1 || res.Files[0].Result == nil {
		t.Fatalf("expected one indexed file, got %+v", res)
	}
	return res.Files[0].Result.PaperID
}

func TestHealth(t *testing.T) {
	e := newTestServer(t)
	rec := doJSON(t, e, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("expected 200 OK, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestUploadPapers_PerFileResults(t *testing.T) {
	e := newTestServer(t)

	rec := upload(t, e, map[string]string{
		"bone.txt":  paperText,
		"empty.txt": "",
		"image.png": "not a paper",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var res uploadResponse
	decode(t, rec, &res)
	if res.Indexed != 1 || res.Failed != 2 {
		t.Fatalf("expected 1 indexed and 2 failed, got %+v", res)
	}

	rec = upload(t, e, map[string]string{"again.txt": paperText})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a duplicate upload, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUploadPapers_NoFiles(t *testing.T) {
	e := newTestServer(t)
	rec := upload(t, e, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPapers_ListGetDelete(t *testing.T) {
	e := newTestServer(t)
	id := uploadPaper(t, e)

	rec := doJSON(t, e, http.MethodGet, "/api/papers?limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list struct {
		Total  int `json:"total"`
		Papers []struct {
			ID       string `json:"id"`
			FullText string `json:"full_text"`
		} `json:"papers"`
	}
	decode(t, rec, &list)
	if list.Total != 1 || len(list.Papers) != 1 || list.Papers[0].ID != id {
		t.Fatalf("expected the uploaded paper, got %+v", list)
	}
	if list.Papers[0].FullText != "" {
		t.Fatal("expected full text to be omitted from listings")
	}

	rec = doJSON(t, e, http.MethodGet, "/api/papers/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var one struct {
		Chunks int `json:"chunks"`
	}
	decode(t, rec, &one)
	if one.Chunks == 0 {
		t.Fatal("expected chunks for the uploaded paper")
	}

	if rec := doJSON(t, e, http.MethodDelete, "/api/papers/"+id, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodDelete, "/api/papers/"+id, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodGet, "/api/papers/"+id, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	e := newTestServer(t)
	id := uploadPaper(t, e)

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{"missing query", map[string]any{"query": ""}, http.StatusBadRequest},
		{"unknown strategy", map[string]any{"query": "bone", "strategy": "psychic_search"}, http.StatusBadRequest},
		{"lexical", map[string]any{"query": "bone density", "strategy": "lexical_search"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, e, http.MethodPost, "/api/search", tt.body)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
		})
	}

	rec := doJSON(t, e, http.MethodPost, "/api/search", map[string]any{"query": "bone density", "strategy": "lexical_search"})
	var res retrieval.Response
	decode(t, rec, &res)
	if len(res.Results) == 0 || res.Results[0].PaperID != id || res.Results[0].Method != retrieval.MethodLexical {
		t.Fatalf("expected a lexical hit on %s, got %+v", id, res.Results)
	}
}

func TestClassify_DegradesWithoutProvider(t *testing.T) {
	e := newTestServer(t)
	rec := doJSON(t, e, http.MethodPost, "/api/classify", map[string]any{"query": "How does microgravity affect bone?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res struct {
		Degraded       bool                 `json:"degraded"`
		Classification agent.Classification `json:"classification"`
	}
	decode(t, rec, &res)
	if !res.Degraded || res.Classification.Strategy != agent.StrategyHybrid {
		t.Fatalf("expected degraded hybrid classification, got %+v", res)
	}
}

func TestSessions_AskAndTurns(t *testing.T) {
	e := newTestServer(t)
	uploadPaper(t, e)

	rec := doJSON(t, e, http.MethodPost, "/api/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	decode(t, rec, &created)
	sid := created.Session.ID

	rec = doJSON(t, e, http.MethodPost, "/api/sessions/"+sid+"/ask", map[string]any{"question": "What happens to bone density in microgravity?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var answer query.Answer
	decode(t, rec, &answer)
	if !answer.Degraded || answer.Answer == "" {
		t.Fatalf("expected a degraded answer without a provider, got %+v", answer)
	}
	if len(answer.Sources) == 0 || !strings.Contains(answer.Answer, answer.Sources[0].Title) {
		t.Fatalf("expected the excerpt listing to name its sources, got %+v", answer)
	}

	rec = doJSON(t, e, http.MethodGet, "/api/sessions/"+sid+"/turns", nil)
	var turns struct {
		Turns []struct {
			Role string `json:"role"`
		} `json:"turns"`
	}
	decode(t, rec, &turns)
	if len(turns.Turns) != 2 || turns.Turns[0].Role != "user" || turns.Turns[1].Role != "assistant" {
		t.Fatalf("expected user and assistant turns, got %+v", turns.Turns)
	}

	if rec := doJSON(t, e, http.MethodPost, "/api/sessions/missing/ask", map[string]any{"question": "q"}); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown session, got %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodPost, "/api/sessions/"+sid+"/ask", map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing question, got %d", rec.Code)
	}
}

func TestRiskAnalysis(t *testing.T) {
	e := newTestServer(t)
	uploadPaper(t, e)

	if rec := doJSON(t, e, http.MethodPost, "/api/risk", map[string]any{"destination": "Mars", "crew_size": 4}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a duration, got %d", rec.Code)
	}

	rec := doJSON(t, e, http.MethodPost, "/api/risk", map[string]any{
		"name":          "Ares",
		"duration_days": 900,
		"destination":   "Mars",
		"crew_size":     4,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, e, http.MethodGet, "/api/risk", nil)
	var list struct {
		Analyses []struct {
			ID string `json:"id"`
		} `json:"analyses"`
	}
	decode(t, rec, &list)
	if len(list.Analyses) != 1 {
		t.Fatalf("expected one stored analysis, got %d", len(list.Analyses))
	}
}

func TestGraphRoutes_Unavailable(t *testing.T) {
	e := newTestServer(t)
	for _, path := range []string{"/api/graph/stats", "/api/graph/related?q=bone"} {
		if rec := doJSON(t, e, http.MethodGet, path, nil); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503 for %s, got %d", path, rec.Code)
		}
	}
	if rec := doJSON(t, e, http.MethodGet, "/api/graph/related", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without q, got %d", rec.Code)
	}
}

func TestSuggestions(t *testing.T) {
	e := newTestServer(t)
	rec := doJSON(t, e, http.MethodGet, "/api/suggestions", nil)
	var res struct {
		Suggestions []string `json:"suggestions"`
	}
	decode(t, rec, &res)
	if rec.Code != http.StatusOK || len(res.Suggestions) == 0 {
		t.Fatalf("expected starter questions, got %d %+v", rec.Code, res)
	}
}
