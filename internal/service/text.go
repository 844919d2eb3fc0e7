package service

import (
	"strings"

	"github.com/k3a/html2text"
)

// plainText reduces free-text input to plain text: markup is stripped,
// entities decoded and the result trimmed.
func plainText(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.ContainsAny(raw, "<&") {
		return raw
	}
	return strings.TrimSpace(html2text.HTML2TextWithOptions(raw, html2text.WithUnixLineBreaks(), html2text.WithListSupport()))
}
