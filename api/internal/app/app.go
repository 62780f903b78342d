package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"shelf-scan/api/internal/archive"
	"shelf-scan/api/internal/config"
	"shelf-scan/api/internal/detect"
	"shelf-scan/api/internal/handle"
	"shelf-scan/api/internal/httpserver"
	"shelf-scan/api/internal/metrics"
	"shelf-scan/api/internal/scan"
	"shelf-scan/api/internal/store"
	"shelf-scan/api/internal/telegram"
	"shelf-scan/api/internal/util"
	"shelf-scan/api/internal/vision"
	"shelf-scan/api/internal/vision/gemini"
	"shelf-scan/api/internal/vision/ollama"
)

// App держит всё, что собирается из конфига: БД, движок, сервис.
type App struct {
	Config   *config.Config
	Log      logrus.FieldLogger
	DB       *sql.DB
	Repo     *store.DetectionRepo
	Engines  *vision.Engines
	Detector *detect.Detector
	Service  *scan.Service
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// New wires the application from cfg. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	engines, err := buildEngines(cfg)
	if err != nil {
		return nil, err
	}
	engine, err := engines.GetEngine(cfg.VisionProvider)
	if err != nil {
		return nil, err
	}

	prompt, err := util.LoadPrompt(cfg.PromptFile, detect.DefaultPrompt)
	if err != nil {
		return nil, fmt.Errorf("prompt: %w", err)
	}

	opts := []detect.Option{
		detect.WithPrompt(prompt),
		detect.WithMaxSide(cfg.ImageMaxSide),
		detect.WithTimeout(cfg.ModelTimeout),
		detect.WithLogger(log),
		detect.WithMetrics(m),
	}
	if cfg.DetectCacheTTL > 0 {
		opts = append(opts, detect.WithCache(cfg.DetectCacheTTL))
	}
	detector := detect.New(engine, opts...)

	db, dialect, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.WithField("db", store.SafeDSNSummary(cfg.DatabaseURL)).Info("db connected")

	repo := store.NewDetectionRepo(db, dialect)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	svc := &scan.Service{
		Detector:     detector,
		Repo:         repo,
		HistoryLimit: cfg.HistoryLimit,
		Log:          log,
		Metrics:      m,
	}
	if cfg.Archive.Enabled() {
		arc, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		svc.Archive = arc
		log.WithField("bucket", cfg.Archive.Bucket).Info("image archive enabled")
	}

	log.WithFields(logrus.Fields{"engine": engine.Name(), "model": engine.GetModel()}).Info("vision engine ready")
	return &App{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Repo:     repo,
		Engines:  engines,
		Detector: detector,
		Service:  svc,
		Registry: reg,
		Metrics:  m,
	}, nil
}

func buildEngines(cfg *config.Config) (*vision.Engines, error) {
	engines := vision.NewEngines()
	if cfg.GeminiAPIKey != "" {
		engines.Register(gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel))
	}
	if cfg.OllamaURL != "" {
		eng, err := ollama.New(cfg.OllamaURL, cfg.OllamaModel, &http.Client{Timeout: 5 * time.Minute})
		if err != nil {
			return nil, fmt.Errorf("ollama: %w", err)
		}
		engines.Register(eng)
	}
	return engines, nil
}

// Router returns the HTTP handler for the API, metrics and frontend.
func (a *App) Router() *gin.Engine {
	h := handle.New(a.Service, a.Config.MaxUploadBytes, a.Log)
	return httpserver.NewRouter(h, httpserver.Options{
		CORSOrigins:    a.Config.CORSOrigins,
		StaticDir:      a.Config.StaticDir,
		MaxUploadBytes: a.Config.MaxUploadBytes,
		Gatherer:       a.Registry,
		Log:            a.Log,
	})
}

// Telegram builds the bot router and poller; nil, nil when no token is set.
func (a *App) Telegram() (*telegram.Router, *telegram.Poller, error) {
	if a.Config.TelegramBotToken == "" {
		return nil, nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(a.Config.TelegramBotToken)
	if err != nil {
		return nil, nil, fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = false
	a.Log.WithField("bot", bot.Self.UserName).Info("telegram bot authorized")

	r := &telegram.Router{
		Bot:         bot,
		Scanner:     a.Service,
		Log:         a.Log,
		MaxDownload: a.Config.MaxUploadBytes,
	}
	return r, &telegram.Poller{Bot: bot, Log: a.Log}, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
