package handle

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shelf-scan/api/internal/store"
)

// Scanner: то, что нужно HTTP-слою от scan.Service.
type Scanner interface {
	Scan(ctx context.Context, imageName string, image []byte) (store.Record, error)
	History(ctx context.Context) ([]store.Record, error)
	Ping(ctx context.Context) error
}

type Handle struct {
	svc       Scanner
	maxUpload int64
	log       logrus.FieldLogger
}

func New(svc Scanner, maxUpload int64, log logrus.FieldLogger) *Handle {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handle{svc: svc, maxUpload: maxUpload, log: log}
}

// errorDetail matches the {"detail": "..."} error body clients already parse.
func errorDetail(c *gin.Context, code int, detail string) {
	c.AbortWithStatusJSON(code, gin.H{"detail": detail})
}

func (h *Handle) Healthz(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		h.log.WithError(err).Warn("healthz: store ping failed")
		c.String(http.StatusServiceUnavailable, "store unavailable")
		return
	}
	c.String(http.StatusOK, "ok")
}
