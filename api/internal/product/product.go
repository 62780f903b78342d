package product

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DetectedProduct is one entry of a shelf breakdown as returned by the vision model.
type DetectedProduct struct {
	Name       string  `json:"product_name"`
	Percentage Percent `json:"percentage"`
}

func (p *DetectedProduct) UnmarshalJSON(b []byte) error {
	type raw DetectedProduct
	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	r.Name = strings.TrimSpace(r.Name)
	*p = DetectedProduct(r)
	return nil
}

// Percent is a share of the visible shelf space, 0..100.
//
// Models are loose about types here, so decoding accepts a number,
// a numeric string ("15.5", "15.5%") or null. Missing and null mean 0.
type Percent float64

func (p *Percent) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*p = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if s == "" {
			*p = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !finite(f) {
			return fmt.Errorf("percentage %q is not a number", s)
		}
		*p = Percent(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if !finite(f) {
		return fmt.Errorf("percentage %s is not a finite number", b)
	}
	*p = Percent(f)
	return nil
}

// ParseFloat понимает "NaN" и "Inf", а JSON их потом не сериализует.
func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Clone returns a copy that does not share the backing array with products.
func Clone(products []DetectedProduct) []DetectedProduct {
	if products == nil {
		return nil
	}
	out := make([]DetectedProduct, len(products))
	copy(out, products)
	return out
}
