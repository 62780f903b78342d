package telegram

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"shelf-scan/api/internal/store"
)

// BotAPI: подмножество *tgbotapi.BotAPI, которое использует роутер.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

type Scanner interface {
	Scan(ctx context.Context, imageName string, image []byte) (store.Record, error)
	History(ctx context.Context) ([]store.Record, error)
	Ping(ctx context.Context) error
}

type Router struct {
	Bot     BotAPI
	Scanner Scanner
	HTTP    *http.Client
	Log     logrus.FieldLogger

	// MaxDownload ограничивает размер скачиваемого файла, 0 значит без лимита.
	MaxDownload int64
}

const historyInChat = 5

func (r *Router) logger() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

func (r *Router) httpClient() *http.Client {
	if r.HTTP == nil {
		return &http.Client{Timeout: 60 * time.Second}
	}
	return r.HTTP
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.IsCommand() {
		r.HandleCommand(ctx, msg)
		return
	}
	if fileID, ok := imageFileID(msg); ok {
		r.acceptImage(ctx, msg, fileID)
		return
	}
	if msg.Text != "" {
		r.send(msg.Chat.ID, "Send me a photo of a shelf and I will estimate the share of each product.")
	}
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, "Send a shelf photo and I will list the visible products with their share of the shelf.\nCommands: /history, /health")
	case "history":
		recs, err := r.Scanner.History(ctx)
		if err != nil {
			r.logger().WithError(err).Error("telegram: history")
			r.send(cid, "Could not load history: "+err.Error())
			return
		}
		r.send(cid, formatHistory(recs, historyInChat))
	case "health":
		if err := r.Scanner.Ping(ctx); err != nil {
			r.send(cid, "❌ store: "+err.Error())
			return
		}
		r.send(cid, "✅ OK")
	default:
		r.send(cid, "Unknown command")
	}
}

func (r *Router) send(chatID int64, text string) {
	if len(text) > 3900 {
		text = text[:3900] + "…"
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		r.logger().WithError(err).WithField("chat", chatID).Warn("telegram: send failed")
	}
}
