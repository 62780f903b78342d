package scan

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelf-scan/api/internal/metrics"
	"shelf-scan/api/internal/product"
	"shelf-scan/api/internal/store"
)

type stubDetector struct {
	out   []product.DetectedProduct
	calls int
}

func (d *stubDetector) Detect(ctx context.Context, image []byte) []product.DetectedProduct {
	d.calls++
	return product.Clone(d.out)
}

type stubArchive struct {
	url  string
	err  error
	name string
	mime string
}

func (a *stubArchive) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	a.name, a.mime = name, contentType
	return a.url, a.err
}

type brokenRepo struct{ err error }

func (r brokenRepo) Insert(context.Context, string, []product.DetectedProduct, string) (store.Record, error) {
	return store.Record{}, r.err
}
func (r brokenRepo) Recent(context.Context, int) ([]store.Record, error) { return nil, r.err }
func (r brokenRepo) Ping(context.Context) error                            { return r.err }

func sqliteRepo(t *testing.T) *store.DetectionRepo {
	t.Helper()
	db, dialect, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "products.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := store.NewDetectionRepo(db, dialect)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func quietLogger() (*logrus.Logger, *logtest.Hook) {
	return logtest.NewNullLogger()
}

func TestScan_PersistsDetectedProducts(t *testing.T) {
	log, _ := quietLogger()
	det := &stubDetector{out: []product.DetectedProduct{{Name: "Lays", Percentage: 60}, {Name: "Pepsi", Percentage: 40}}}
	m := metrics.New(prometheus.NewRegistry())
	svc := &Service{Detector: det, Repo: sqliteRepo(t), Log: log, Metrics: m}

	rec, err := svc.Scan(WithSource(context.Background(), "http"), " shelf.jpg ", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "shelf.jpg", rec.ImageName)
	assert.Equal(t, det.out, rec.Products)
	assert.Empty(t, rec.ImageURL)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Stored.WithLabelValues("http", "ok")))

	hist, err := svc.History(context.Background())
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, rec.ID, hist[0].ID)
}

func TestScan_EmptyDetectionIsStillStored(t *testing.T) {
	log, _ := quietLogger()
	svc := &Service{Detector: &stubDetector{out: []product.DetectedProduct{}}, Repo: sqliteRepo(t), Log: log}

	rec, err := svc.Scan(context.Background(), "", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "upload", rec.ImageName)
	assert.NotNil(t, rec.Products)
	assert.Empty(t, rec.Products)
}

func TestScan_ArchiveURLStored(t *testing.T) {
	log, _ := quietLogger()
	arc := &stubArchive{url: "https://cdn.example.com/detections/abc-shelf.png"}
	svc := &Service{Detector: &stubDetector{}, Repo: sqliteRepo(t), Archive: arc, Log: log}

	png := []byte("\x89PNG\r\n\x1a\nrest")
	rec, err := svc.Scan(context.Background(), "shelf.png", png)
	require.NoError(t, err)
	assert.Equal(t, arc.url, rec.ImageURL)
	assert.Equal(t, "shelf.png", arc.name)
	assert.Equal(t, "image/png", arc.mime)

	hist, err := svc.History(context.Background())
	require.NoError(t, err)
	assert.Equal(t, arc.url, hist[0].ImageURL)
}

func TestScan_ArchiveFailureIsSoft(t *testing.T) {
	log, hook := quietLogger()
	svc := &Service{
		Detector: &stubDetector{out: []product.DetectedProduct{{Name: "x", Percentage: 100}}},
		Repo:     sqliteRepo(t),
		Archive:  &stubArchive{err: errors.New("bucket gone")},
		Log:      log,
	}

	rec, err := svc.Scan(context.Background(), "a.jpg", []byte("img"))
	require.NoError(t, err)
	assert.Empty(t, rec.ImageURL)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "archive upload failed" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestScan_PersistFailureIsReturned(t *testing.T) {
	log, hook := quietLogger()
	m := metrics.New(prometheus.NewRegistry())
	det := &stubDetector{}
	svc := &Service{Detector: det, Repo: brokenRepo{err: errors.New("disk full")}, Log: log, Metrics: m}

	_, err := svc.Scan(WithSource(context.Background(), "telegram"), "a.jpg", []byte("img"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, det.calls)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Stored.WithLabelValues("telegram", "error")))
}

func TestHistory_Limit(t *testing.T) {
	log, _ := quietLogger()
	svc := &Service{Detector: &stubDetector{}, Repo: sqliteRepo(t), HistoryLimit: 3, Log: log}
	for i := 0; i < 5; i++ {
		_, err := svc.Scan(context.Background(), "a.jpg", []byte("img"))
		require.NoError(t, err)
	}
	hist, err := svc.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, hist, 3)
}

type limitRepo struct {
	brokenRepo
	asked []int
}

func (r *limitRepo) Recent(_ context.Context, limit int) ([]store.Record, error) {
	r.asked = append(r.asked, limit)
	return []store.Record{}, nil
}

func TestHistory_LimitIsCapped(t *testing.T) {
	for _, tt := range []struct {
		configured, want int
	}{
		{0, DefaultHistoryLimit},
		{-1, DefaultHistoryLimit},
		{10, 10},
		{50, 50},
		{100, DefaultHistoryLimit},
		{200, DefaultHistoryLimit},
	} {
		repo := &limitRepo{}
		svc := &Service{Repo: repo, HistoryLimit: tt.configured}
		_, err := svc.History(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int{tt.want}, repo.asked, "HistoryLimit=%d", tt.configured)
	}
}

func TestHistory_Error(t *testing.T) {
	svc := &Service{Repo: brokenRepo{err: errors.New("locked")}}
	_, err := svc.History(context.Background())
	assert.ErrorContains(t, err, "locked")
	assert.Error(t, svc.Ping(context.Background()))
}

func TestSourceFrom(t *testing.T) {
	assert.Equal(t, "unknown", sourceFrom(context.Background()))
	assert.Equal(t, "cli", sourceFrom(WithSource(context.Background(), "cli")))
}
