package telegram

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 от Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

// Poller: устойчивый long-polling с backoff, без log.Fatal.
type Poller struct {
	Bot       BotAPI
	Log       logrus.FieldLogger
	Timeout   int // секунды long-poll
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Idle      time.Duration
}

func (p *Poller) defaults() {
	if p.Log == nil {
		p.Log = logrus.StandardLogger()
	}
	if p.Timeout == 0 {
		p.Timeout = 30
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = 1 * time.Second
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = 15 * time.Second
	}
	if p.Idle == 0 {
		p.Idle = 200 * time.Millisecond
	}
}

// Run polls until ctx is done. Updates are handled one at a time, in order.
func (p *Poller) Run(ctx context.Context, handle func(context.Context, tgbotapi.Update)) {
	p.defaults()
	offset := 0
	for {
		if ctx.Err() != nil {
			p.Log.Info("telegram polling: context cancelled")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = p.Timeout

		updates, err := p.Bot.GetUpdates(u)
		if err != nil {
			d := retryDelayFromError(err)
			d = max(d, p.BaseDelay)
			d = min(d, p.MaxDelay)
			p.Log.WithError(err).WithField("retry_in", d.String()).Warn("telegram polling error")
			if !sleep(ctx, d) {
				return
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(ctx, upd)
		}

		if len(updates) == 0 && !sleep(ctx, p.Idle) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
