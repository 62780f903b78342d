package handle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelf-scan/api/internal/product"
	"shelf-scan/api/internal/store"
)

type fakeScanner struct {
	gotName  string
	gotImage []byte
	rec      store.Record
	scanErr  error
	history  []store.Record
	histErr  error
	pingErr  error
}

func (f *fakeScanner) Scan(ctx context.Context, name string, image []byte) (store.Record, error) {
	f.gotName, f.gotImage = name, image
	if f.scanErr != nil {
		return store.Record{}, f.scanErr
	}
	r := f.rec
	r.ImageName = name
	return r, nil
}

func (f *fakeScanner) History(ctx context.Context) ([]store.Record, error) { return f.history, f.histErr }
func (f *fakeScanner) Ping(ctx context.Context) error                       { return f.pingErr }

func newEngine(t *testing.T, s Scanner, maxUpload int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, _ := logtest.NewNullLogger()
	h := New(s, maxUpload, log)
	r := gin.New()
	r.POST("/api/detect", h.Detect)
	r.GET("/api/history", h.History)
	r.GET("/healthz", h.Healthz)
	return r
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var ts = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func TestDetect_OK(t *testing.T) {
	s := &fakeScanner{rec: store.Record{
		ID:         7,
		UploadTime: ts,
		Products:   []product.DetectedProduct{{Name: "Lays", Percentage: 33.3}, {Name: "Pepsi", Percentage: 66.7}},
	}}
	r := newEngine(t, s, 0)

	body, ct := multipartBody(t, "file", "shelf.jpg", []byte("img-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/detect", body)
	req.Header.Set("Content-Type", ct)
	w := do(r, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "shelf.jpg", s.gotName)
	assert.Equal(t, []byte("img-bytes"), s.gotImage)
	assert.JSONEq(t, `{
		"success": true,
		"image_name": "shelf.jpg",
		"products": [{"product_name":"Lays","percentage":33.3},{"product_name":"Pepsi","percentage":66.7}],
		"upload_time": "2026-10-17T09:30:00Z"
	}`, w.Body.String())
}

func TestDetect_EmptyProductsIsArray(t *testing.T) {
	r := newEngine(t, &fakeScanner{rec: store.Record{UploadTime: ts}}, 0)
	body, ct := multipartBody(t, "file", "blank.png", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/detect", body)
	req.Header.Set("Content-Type", ct)
	w := do(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []any{}, resp["products"])
}

func TestDetect_MissingFile(t *testing.T) {
	s := &fakeScanner{}
	r := newEngine(t, s, 0)

	body, ct := multipartBody(t, "image", "shelf.jpg", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/detect", body)
	req.Header.Set("Content-Type", ct)
	w := do(r, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"detail"`)
	assert.Nil(t, s.gotImage)
}

func TestDetect_NotMultipart(t *testing.T) {
	r := newEngine(t, &fakeScanner{}, 0)
	req := httptest.NewRequest(http.MethodPost, "/api/detect", bytes.NewBufferString(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, do(r, req).Code)
}

func TestDetect_StoreFailureIs500WithDetail(t *testing.T) {
	r := newEngine(t, &fakeScanner{scanErr: errors.New("save detection: database is locked")}, 0)
	body, ct := multipartBody(t, "file", "a.jpg", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/detect", body)
	req.Header.Set("Content-Type", ct)
	w := do(r, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"save detection: database is locked"}`, w.Body.String())
}

func TestHistory_OK(t *testing.T) {
	s := &fakeScanner{history: []store.Record{
		{ID: 2, ImageName: "b.jpg", UploadTime: ts, Products: []product.DetectedProduct{{Name: "Kurkure", Percentage: 100}}, ImageURL: "https://cdn/b.jpg"},
		{ID: 1, ImageName: "a.jpg", UploadTime: ts.Add(-time.Hour)},
	}}
	w := do(newEngine(t, s, 0), httptest.NewRequest(http.MethodGet, "/api/history", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[
		{"image_name":"b.jpg","upload_time":"2026-10-17T09:30:00Z","products":[{"product_name":"Kurkure","percentage":100}],"image_url":"https://cdn/b.jpg"},
		{"image_name":"a.jpg","upload_time":"2026-10-17T08:30:00Z","products":[]}
	]}`, w.Body.String())
}

func TestHistory_EmptyIsArray(t *testing.T) {
	w := do(newEngine(t, &fakeScanner{}, 0), httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}

func TestHistory_Error(t *testing.T) {
	w := do(newEngine(t, &fakeScanner{histErr: errors.New("load history: no such table")}, 0),
		httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"load history: no such table"}`, w.Body.String())
}

func TestHealthz(t *testing.T) {
	w := do(newEngine(t, &fakeScanner{}, 0), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = do(newEngine(t, &fakeScanner{pingErr: errors.New("down")}, 0), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNew_DefaultLogger(t *testing.T) {
	h := New(&fakeScanner{}, 0, nil)
	assert.Equal(t, logrus.StandardLogger(), h.log)
}
