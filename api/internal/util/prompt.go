package util

import (
	"fmt"
	"os"
	"strings"
)

// LoadPrompt читает промпт из файла, если путь задан; иначе возвращает встроенный.
func LoadPrompt(path, builtin string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return builtin, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", path, err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", fmt.Errorf("prompt %s is empty", path)
	}
	return s, nil
}
