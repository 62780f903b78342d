package detect

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"shelf-scan/api/internal/product"
	"shelf-scan/api/internal/util"
)

var (
	ErrNotJSON  = errors.New("model reply is not JSON")
	ErrNotArray = errors.New("model reply is not a JSON array")
)

// ParseReply extracts the product array from a model reply, tolerating a
// surrounding code fence. It does not normalize.
func ParseReply(text string) ([]product.DetectedProduct, error) {
	clean := []byte(util.StripCodeFences(text))
	if !json.Valid(clean) {
		return nil, ErrNotJSON
	}
	if len(clean) == 0 || clean[0] != '[' {
		return nil, ErrNotArray
	}
	var out []product.DetectedProduct
	dec := json.NewDecoder(bytes.NewReader(clean))
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	if out == nil {
		out = []product.DetectedProduct{}
	}
	return out, nil
}
