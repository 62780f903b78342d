package telegram

import (
	"fmt"
	"sort"
	"strings"

	"shelf-scan/api/internal/product"
	"shelf-scan/api/internal/store"
)

// formatProducts: по убыванию доли, "1. Name — 33.3%".
func formatProducts(products []product.DetectedProduct) string {
	if len(products) == 0 {
		return "No products recognized on this photo."
	}
	ranked := product.Clone(products)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Percentage > ranked[j].Percentage })

	var b strings.Builder
	b.WriteString("🛒 Shelf share:\n")
	for i, p := range ranked {
		fmt.Fprintf(&b, "%d. %s — %.1f%%\n", i+1, p.Name, float64(p.Percentage))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatHistory(recs []store.Record, limit int) string {
	if len(recs) == 0 {
		return "History is empty."
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	var b strings.Builder
	for i, r := range recs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s · %s · %d products", r.UploadTime.UTC().Format("2006-01-02 15:04"), r.ImageName, len(r.Products))
		if len(r.Products) > 0 {
			top := r.Products[0]
			for _, p := range r.Products[1:] {
				if p.Percentage > top.Percentage {
					top = p
				}
			}
			fmt.Fprintf(&b, ", top: %s %.1f%%", top.Name, float64(top.Percentage))
		}
	}
	return b.String()
}
