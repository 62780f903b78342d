package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"shelf-scan/api/internal/metrics"
	"shelf-scan/api/internal/product"
	"shelf-scan/api/internal/store"
	"shelf-scan/api/internal/util"
)

const DefaultHistoryLimit = 50

type Detector interface {
	Detect(ctx context.Context, image []byte) []product.DetectedProduct
}

type Repository interface {
	Insert(ctx context.Context, imageName string, products []product.DetectedProduct, imageURL string) (store.Record, error)
	Recent(ctx context.Context, limit int) ([]store.Record, error)
	Ping(ctx context.Context) error
}

// Archiver хранит исходники снимков; nil значит архив выключен.
type Archiver interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Service связывает детектор, архив и хранилище.
type Service struct {
	Detector     Detector
	Repo         Repository
	Archive      Archiver
	HistoryLimit int
	Log          logrus.FieldLogger
	Metrics      *metrics.Metrics
}

type sourceKey struct{}

// WithSource tags ctx with the intake channel (http, telegram, cli) for metrics and logs.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "unknown"
}

func (s *Service) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// Scan detects products on image and appends the result to history.
// Detection never fails; only persistence errors are returned.
func (s *Service) Scan(ctx context.Context, imageName string, image []byte) (store.Record, error) {
	imageName = strings.TrimSpace(imageName)
	if imageName == "" {
		imageName = "upload"
	}
	source := sourceFrom(ctx)
	log := s.logger().WithFields(logrus.Fields{"image": imageName, "source": source, "bytes": len(image)})

	products := s.Detector.Detect(ctx, image)

	var imageURL string
	if s.Archive != nil {
		url, err := s.Archive.Put(ctx, imageName, image, util.PickMIME("", image))
		if err != nil {
			// без архива детекция всё равно сохраняется
			log.WithError(err).Warn("archive upload failed")
		} else {
			imageURL = url
		}
	}

	rec, err := s.Repo.Insert(ctx, imageName, products, imageURL)
	s.Metrics.ObserveStore(source, err)
	if err != nil {
		log.WithError(err).Error("persist detection failed")
		return store.Record{}, fmt.Errorf("save detection: %w", err)
	}
	log.WithFields(logrus.Fields{"id": rec.ID, "products": len(rec.Products)}).Info("detection stored")
	return rec, nil
}

// History returns the newest records, newest first. HistoryLimit only
// shrinks the page: it never goes above DefaultHistoryLimit.
func (s *Service) History(ctx context.Context) ([]store.Record, error) {
	limit := s.HistoryLimit
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	recs, err := s.Repo.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return recs, nil
}

func (s *Service) Ping(ctx context.Context) error { return s.Repo.Ping(ctx) }
