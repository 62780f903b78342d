package app

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelf-scan/api/internal/config"
	"shelf-scan/api/internal/detect"
)

type scriptedEngine struct{ reply string }

func (e scriptedEngine) Name() string     { return "scripted" }
func (e scriptedEngine) GetModel() string { return "scripted-1" }
func (e scriptedEngine) Analyze(context.Context, string, []byte, string) (string, error) {
	return e.reply, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:           "0",
		VisionProvider: config.ProviderOllama,
		OllamaURL:      "http://ollama.test:11434",
		OllamaModel:    "llava",
		DatabaseURL:    filepath.Join(t.TempDir(), "products.db"),
		StaticDir:      filepath.Join(t.TempDir(), "no-frontend"),
		CORSOrigins:    []string{"*"},
		HistoryLimit:   50,
		MaxUploadBytes: 1 << 20,
		ImageMaxSide:   2048,
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	cfg := testConfig(t)
	cfg.VisionProvider = config.ProviderGemini
	_, err := New(context.Background(), cfg, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestNew_RegistersConfiguredEngines(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	cfg := testConfig(t)
	cfg.GeminiAPIKey = "key"
	cfg.GeminiModel = "gemini-test"

	a, err := New(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Equal(t, []string{"gemini", "ollama"}, a.Engines.Names())
	assert.Equal(t, "ollama", a.Detector.Engine().Name())
	assert.Nil(t, a.Service.Archive)
}

func TestApp_DetectThenHistory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, _ := logtest.NewNullLogger()
	a, err := New(context.Background(), testConfig(t), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	a.Service.Detector = detect.New(scriptedEngine{
		reply: "```json\n[{\"product_name\":\"Lays\",\"percentage\":30},{\"product_name\":\"Kurkure\",\"percentage\":30},{\"product_name\":\"Pepsi\",\"percentage\":30}]\n```",
	}, detect.WithLogger(log), detect.WithMetrics(a.Metrics))
	router := a.Router()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "shelf.jpg")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("not really a jpeg"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/detect", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var det struct {
		Success   bool   `json:"success"`
		ImageName string `json:"image_name"`
		Products  []struct {
			Name       string  `json:"product_name"`
			Percentage float64 `json:"percentage"`
		} `json:"products"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &det))
	assert.True(t, det.Success)
	assert.Equal(t, "shelf.jpg", det.ImageName)
	require.Len(t, det.Products, 3)
	for _, p := range det.Products {
		assert.InDelta(t, 33.3, p.Percentage, 1e-9)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Success bool `json:"success"`
		Data    []struct {
			ImageName string `json:"image_name"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist.Data, 1)
	assert.Equal(t, "shelf.jpg", hist.Data[0].ImageName)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `shelfscan_detections_total{engine="scripted",outcome="ok"} 1`)
}

func TestTelegram_DisabledWithoutToken(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	a, err := New(context.Background(), testConfig(t), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	r, p, err := a.Telegram()
	assert.NoError(t, err)
	assert.Nil(t, r)
	assert.Nil(t, p)
}
