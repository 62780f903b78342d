package handle

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shelf-scan/api/internal/product"
	"shelf-scan/api/internal/scan"
)

type DetectResponse struct {
	Success    bool                      `json:"success"`
	ImageName  string                    `json:"image_name"`
	Products   []product.DetectedProduct `json:"products"`
	UploadTime time.Time                 `json:"upload_time"`
}

// Detect принимает multipart-поле "file", прогоняет через детектор и сохраняет.
func (h *Handle) Detect(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			errorDetail(c, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		errorDetail(c, http.StatusUnprocessableEntity, "field 'file' is required")
		return
	}

	f, err := fh.Open()
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := scan.WithSource(c.Request.Context(), "http")
	rec, err := h.svc.Scan(ctx, fh.Filename, data)
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, DetectResponse{
		Success:    true,
		ImageName:  rec.ImageName,
		Products:   nonNil(rec.Products),
		UploadTime: rec.UploadTime,
	})
}

func nonNil(p []product.DetectedProduct) []product.DetectedProduct {
	if p == nil {
		return []product.DetectedProduct{}
	}
	return p
}
