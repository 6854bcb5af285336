package public

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/greetforge/greetforge/internal/config"
	"github.com/greetforge/greetforge/internal/db"
	"github.com/greetforge/greetforge/internal/imagestore"
	"github.com/greetforge/greetforge/internal/models"
	"github.com/greetforge/greetforge/internal/pipeline"
	"github.com/greetforge/greetforge/internal/quota"
	"github.com/greetforge/greetforge/internal/store"
	"github.com/greetforge/greetforge/internal/upstream"
)

type stubEnhancer struct{ err error }

func (s *stubEnhancer) Enhance(_ context.Context, p string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return p, nil
}

type stubGenerator struct{ err error }

func (s *stubGenerator) Generate(_ context.Context, _ upstream.ImageRequest) (upstream.ImageResult, error) {
	if s.err != nil {
		return upstream.ImageResult{}, s.err
	}
	return upstream.ImageResult{Data: []byte("png"), MimeType: "image/png"}, nil
}

type fixture struct {
	engine *gin.Engine
	store  *store.Store
	images *imagestore.Storage
}

func newFixture(t *testing.T, limit int, enhancer pipeline.Enhancer, generator pipeline.Generator) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	images, err := imagestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("imagestore: %v", err)
	}

	st := store.New(conn)
	quotas := quota.New(conn, func() map[string]int { return map[string]int{"acme": limit} })
	cfg := &config.Config{OpenAIKey: "openai-key", GeminiKey: "gemini-key"}

	engine := gin.New()
	RegisterPublicRoutes(engine, Deps{
		Config:   cfg,
		DB:       conn,
		Store:    st,
		Pipeline: pipeline.New(st, quotas, enhancer, generator, images),
		Images:   images,
	})
	return &fixture{engine: engine, store: st, images: images}
}

func postJSON(t *testing.T, engine *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func generateBody() map[string]any {
	return map[string]any{
		"mode":      models.ModeStaff,
		"client":    "acme",
		"userName":  "Jordan",
		"userEmail": "jordan@acme.test",
		"staff":     "the support team",
		"cardStyle": "watercolor",
	}
}

func TestGenerateSuccess(t *testing.T) {
	f := newFixture(t, 5, &stubEnhancer{}, &stubGenerator{})

	recorder := postJSON(t, f.engine, "/api/generate", generateBody())
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if body["success"] != true {
		t.Fatalf("got body %v", body)
	}
	url, ok := body["url"].(string)
	if !ok || url == "" {
		t.Fatalf("missing url in %v", body)
	}
	if share, ok := body["shareUrl"].(string); !ok || share == "" {
		t.Fatalf("missing shareUrl in %v", body)
	}
	if enhanced, ok := body["enhancedPrompt"].(string); !ok || enhanced == "" {
		t.Fatalf("missing enhancedPrompt in %v", body)
	}
}

func TestGenerateMissingIdentity(t *testing.T) {
	f := newFixture(t, 5, &stubEnhancer{}, &stubGenerator{})

	body := generateBody()
	delete(body, "userEmail")
	recorder := postJSON(t, f.engine, "/api/generate", body)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", recorder.Code)
	}
}

func TestGenerateInvalidEmail(t *testing.T) {
	f := newFixture(t, 5, &stubEnhancer{}, &stubGenerator{})

	body := generateBody()
	body["userEmail"] = "not-an-email"
	recorder := postJSON(t, f.engine, "/api/generate", body)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", recorder.Code)
	}
	if decodeBody(t, recorder)["error"] != "Invalid email format" {
		t.Fatalf("got body %s", recorder.Body.String())
	}
}

func TestGenerateMissingModeFields(t *testing.T) {
	f := newFixture(t, 5, &stubEnhancer{}, &stubGenerator{})

	body := generateBody()
	delete(body, "staff")
	recorder := postJSON(t, f.engine, "/api/generate", body)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", recorder.Code)
	}
	if decodeBody(t, recorder)["error"] != "Missing staff or card style" {
		t.Fatalf("got body %s", recorder.Body.String())
	}
}

func TestGenerateQuotaExhausted(t *testing.T) {
	f := newFixture(t, 1, &stubEnhancer{}, &stubGenerator{})

	if recorder := postJSON(t, f.engine, "/api/generate", generateBody()); recorder.Code != http.StatusOK {
		t.Fatalf("first request: status %d", recorder.Code)
	}

	recorder := postJSON(t, f.engine, "/api/generate", generateBody())
	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d", recorder.Code)
	}
	body := decodeBody(t, recorder)
	if body["limitReached"] != true {
		t.Fatalf("got body %v", body)
	}
	if body["currentCount"].(float64) != 1 || body["limit"].(float64) != 1 {
		t.Fatalf("got counts %v", body)
	}
}

func TestGenerateContentPolicyBlocked(t *testing.T) {
	blocked := &upstream.Error{Kind: upstream.KindContentPolicy, Provider: "gemini", Message: "blocked: SAFETY"}
	f := newFixture(t, 5, &stubEnhancer{}, &stubGenerator{err: blocked})

	recorder := postJSON(t, f.engine, "/api/generate", generateBody())
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d", recorder.Code)
	}
	if decodeBody(t, recorder)["error"] != "Content blocked by safety filters. Please try a different prompt." {
		t.Fatalf("got body %s", recorder.Body.String())
	}
}

func TestGenerateRetryableMapsTo503(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewGenerateHandler(&config.Config{}, nil)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	handler.writeError(c, generateRequest{Client: "acme"}, &upstream.Error{
		Kind:     upstream.KindRateLimited,
		Provider: "gemini",
		Message:  "quota",
	})

	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d", recorder.Code)
	}
	if decodeBody(t, recorder)["retryable"] != true {
		t.Fatalf("got body %s", recorder.Body.String())
	}
}

func TestGenerateMissingAPIKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	handler := NewGenerateHandler(&config.Config{}, nil)
	engine.POST("/api/generate", handler.Generate)

	recorder := postJSON(t, engine, "/api/generate", generateBody())
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d", recorder.Code)
	}
	if decodeBody(t, recorder)["error"] != "OpenAI API key not configured" {
		t.Fatalf("got body %s", recorder.Body.String())
	}
}

func TestUploadAndShareFlow(t *testing.T) {
	f := newFixture(t, 5, &stubEnhancer{}, &stubGenerator{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="image"; filename="me.png"`)
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte("photo-bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-image", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	recorder := httptest.NewRecorder()
	f.engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("upload: status %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if body["description"] != "person from uploaded photo" {
		t.Fatalf("got body %v", body)
	}
	if body["imagePath"] == "" {
		t.Fatalf("missing imagePath in %v", body)
	}
}

func TestShareNotFound(t *testing.T) {
	f := newFixture(t, 5, &stubEnhancer{}, &stubGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/api/share/greeting-card-acme-1", nil)
	recorder := httptest.NewRecorder()
	f.engine.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("got status %d", recorder.Code)
	}
}

func TestShareResolvesGeneratedCard(t *testing.T) {
	f := newFixture(t, 5, &stubEnhancer{}, &stubGenerator{})

	if recorder := postJSON(t, f.engine, "/api/generate", generateBody()); recorder.Code != http.StatusOK {
		t.Fatalf("generate: status %d", recorder.Code)
	}
	entries, err := f.images.ListGenerated()
	if err != nil || len(entries) != 1 {
		t.Fatalf("list generated: %v (%d entries)", err, len(entries))
	}
	shareID := entries[0].Filename[:len(entries[0].Filename)-len(".png")]

	req := httptest.NewRequest(http.MethodGet, "/api/share/"+shareID, nil)
	recorder := httptest.NewRecorder()
	f.engine.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if body["client"] != "acme" {
		t.Fatalf("got body %v", body)
	}
	if _, ok := body["overlayData"]; !ok {
		t.Fatalf("missing overlayData in %v", body)
	}
}

func TestLibraryListsCards(t *testing.T) {
	f := newFixture(t, 5, &stubEnhancer{}, &stubGenerator{})

	if recorder := postJSON(t, f.engine, "/api/generate", generateBody()); recorder.Code != http.StatusOK {
		t.Fatalf("generate: status %d", recorder.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
	recorder := httptest.NewRecorder()
	f.engine.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d", recorder.Code)
	}
	body := decodeBody(t, recorder)
	if body["total"].(float64) != 1 {
		t.Fatalf("got body %v", body)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, 5, &stubEnhancer{}, &stubGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	f.engine.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d", recorder.Code)
	}
}
