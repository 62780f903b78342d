package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"shelf-scan/api/internal/scan"
)

// imageFileID выбирает самое крупное фото или документ-картинку.
func imageFileID(msg *tgbotapi.Message) (string, bool) {
	if n := len(msg.Photo); n > 0 {
		best := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.Width*p.Height > best.Width*best.Height {
				best = p
			}
		}
		return best.FileID, true
	}
	if d := msg.Document; d != nil && strings.HasPrefix(strings.ToLower(d.MimeType), "image/") {
		return d.FileID, true
	}
	return "", false
}

func imageName(msg *tgbotapi.Message) string {
	return fmt.Sprintf("telegram_%d_%d.jpg", msg.Chat.ID, msg.MessageID)
}

func (r *Router) acceptImage(ctx context.Context, msg *tgbotapi.Message, fileID string) {
	cid := msg.Chat.ID
	log := r.logger().WithField("chat", cid)

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		log.WithError(err).Error("telegram: get file")
		r.send(cid, "Could not fetch the photo: "+err.Error())
		return
	}
	data, err := r.download(ctx, url)
	if err != nil {
		log.WithError(err).Error("telegram: download")
		r.send(cid, "Could not download the photo: "+err.Error())
		return
	}

	rec, err := r.Scanner.Scan(scan.WithSource(ctx, "telegram"), imageName(msg), data)
	if err != nil {
		r.send(cid, "Detection failed: "+err.Error())
		return
	}
	r.send(cid, formatProducts(rec.Products))
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	var body io.Reader = resp.Body
	if r.MaxDownload > 0 {
		body = io.LimitReader(resp.Body, r.MaxDownload+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if r.MaxDownload > 0 && int64(len(data)) > r.MaxDownload {
		return nil, fmt.Errorf("file exceeds %d bytes", r.MaxDownload)
	}
	return data, nil
}
