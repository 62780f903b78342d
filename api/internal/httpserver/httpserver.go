package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"shelf-scan/api/internal/handle"
)

type Options struct {
	CORSOrigins    []string
	StaticDir      string
	MaxUploadBytes int64
	Gatherer       prometheus.Gatherer
	Log            logrus.FieldLogger
}

// NewRouter собирает gin-движок со всеми маршрутами API.
func NewRouter(h *handle.Handle, opts Options) *gin.Engine {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, err any) {
		log.WithField("panic", err).Error("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprint(err)})
	}), RequestID(), AccessLog(log))
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	if opts.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = opts.MaxUploadBytes
	}

	r.GET("/healthz", h.Healthz)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{
			ErrorHandling: promhttp.HTTPErrorOnError,
		})))
	}

	api := r.Group("/api")
	{
		api.POST("/detect", h.Detect)
		api.GET("/history", h.History)
	}

	r.NoRoute(staticOrNotFound(opts.StaticDir))
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	var list []string
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			list = append(list, o)
		}
	}
	if len(list) == 0 || (len(list) == 1 && list[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = list
		cfg.AllowCredentials = true
	}
	return cfg
}

// staticOrNotFound отдаёт фронтенд из dir, если каталог есть.
func staticOrNotFound(dir string) gin.HandlerFunc {
	var files http.Handler
	if dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			files = http.FileServer(http.Dir(dir))
		}
	}
	return func(c *gin.Context) {
		m := c.Request.Method
		if files == nil || (m != http.MethodGet && m != http.MethodHead) || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}

// Run serves handler on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, log logrus.FieldLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("http: listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	log.Info("http: shutting down")
	if err := srv.Shutdown(shCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
