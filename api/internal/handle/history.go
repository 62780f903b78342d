package handle

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shelf-scan/api/internal/product"
)

type HistoryItem struct {
	ImageName  string                    `json:"image_name"`
	UploadTime time.Time                 `json:"upload_time"`
	Products   []product.DetectedProduct `json:"products"`
	ImageURL   string                    `json:"image_url,omitempty"`
}

type HistoryResponse struct {
	Success bool          `json:"success"`
	Data    []HistoryItem `json:"data"`
}

func (h *Handle) History(c *gin.Context) {
	recs, err := h.svc.History(c.Request.Context())
	if err != nil {
		errorDetail(c, http.StatusInternalServerError, err.Error())
		return
	}
	items := make([]HistoryItem, 0, len(recs))
	for _, r := range recs {
		items = append(items, HistoryItem{
			ImageName:  r.ImageName,
			UploadTime: r.UploadTime,
			Products:   nonNil(r.Products),
			ImageURL:   r.ImageURL,
		})
	}
	c.JSON(http.StatusOK, HistoryResponse{Success: true, Data: items})
}
