package detect

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"shelf-scan/api/internal/imageprep"
	"shelf-scan/api/internal/metrics"
	"shelf-scan/api/internal/product"
	"shelf-scan/api/internal/util"
	"shelf-scan/api/internal/vision"
)

// Detector turns an image into a normalized product breakdown. It never
// fails: model and parsing problems degrade to an empty result and are logged.
type Detector struct {
	engine  vision.Engine
	prompt  string
	maxSide int
	timeout time.Duration
	cache   *cache.Cache
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

type Option func(*Detector)

func WithPrompt(p string) Option {
	return func(d *Detector) {
		if p != "" {
			d.prompt = p
		}
	}
}

// WithMaxSide downscales uploads so the longest side is at most n pixels.
func WithMaxSide(n int) Option { return func(d *Detector) { d.maxSide = n } }

// WithTimeout bounds each model call. Zero means no bound.
func WithTimeout(t time.Duration) Option { return func(d *Detector) { d.timeout = t } }

// WithCache reuses non-empty results for identical images for ttl.
// Zero disables caching.
func WithCache(ttl time.Duration) Option {
	return func(d *Detector) {
		if ttl > 0 {
			d.cache = cache.New(ttl, 2*ttl)
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(d *Detector) { d.metrics = m } }

func New(engine vision.Engine, opts ...Option) *Detector {
	d := &Detector{
		engine: engine,
		prompt: DefaultPrompt,
		log:    logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Detector) Engine() vision.Engine { return d.engine }

// Detect sends the image to the vision engine and returns the normalized
// product list. The result is never nil.
func (d *Detector) Detect(ctx context.Context, image []byte) []product.DetectedProduct {
	name := d.engine.Name()
	log := d.log.WithFields(logrus.Fields{"engine": name, "model": d.engine.GetModel()})

	data, mime := imageprep.Prepare(image, d.maxSide)
	if w, h, err := imageprep.Dimensions(data); err == nil {
		log = log.WithFields(logrus.Fields{"width": w, "height": h})
	}

	var key string
	if d.cache != nil {
		key = util.SHA256Hex(data, []byte(name), []byte(d.engine.GetModel()))
		if v, ok := d.cache.Get(key); ok {
			d.metrics.ObserveDetection(name, metrics.OutcomeCached)
			log.Debug("detection served from cache")
			return product.Clone(v.([]product.DetectedProduct))
		}
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	started := time.Now()
	raw, err := d.engine.Analyze(ctx, d.prompt, data, mime)
	d.metrics.ObserveModelCall(name, time.Since(started))
	if err != nil {
		d.metrics.ObserveDetection(name, metrics.OutcomeEngineError)
		log.WithError(err).Error("vision model call failed")
		return []product.DetectedProduct{}
	}
	log.WithField("raw", raw).Debug("vision model raw response")

	products, err := ParseReply(raw)
	if err != nil {
		d.metrics.ObserveDetection(name, metrics.OutcomeUnparseable)
		entry := log.WithError(err)
		if errors.Is(err, ErrNotJSON) || errors.Is(err, ErrNotArray) {
			entry = entry.WithField("reply", truncate(raw, 500))
		}
		entry.Warn("could not parse vision model reply")
		return []product.DetectedProduct{}
	}

	if product.NeedsRescale(products) {
		d.metrics.ObserveRescale()
		log.Infof("normalized percentages from %.1f%% to 100%%", product.Total(products))
	} else if total := product.Total(products); len(products) > 0 && total != 0 && math.Abs(total-100) > product.Tolerance {
		// значения на сетке 0.1, отклонение в пределах округления
		log.Debugf("percentages sum to %.1f%%, kept as already rounded", total)
	}
	products = product.Normalize(products)

	if len(products) == 0 {
		d.metrics.ObserveDetection(name, metrics.OutcomeEmpty)
		return products
	}
	d.metrics.ObserveDetection(name, metrics.OutcomeOK)
	if d.cache != nil {
		d.cache.SetDefault(key, product.Clone(products))
	}
	return products
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
