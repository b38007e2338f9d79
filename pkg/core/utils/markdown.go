package utils

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/text"
)

// CleanMarkdown strips a wrapping code fence from model output. Models
// often return the whole document inside ```markdown fences.
func CleanMarkdown(input string) string {
	out := strings.TrimSpace(input)
	if !strings.HasPrefix(out, "```") {
		return out
	}
	if idx := strings.Index(out, "\n"); idx >= 0 {
		out = out[idx+1:]
	} else {
		out = strings.TrimPrefix(out, "```")
	}
	out = strings.TrimSpace(out)
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}

// ValidateMarkdown checks that the input parses to a non-empty markdown
// document.
func ValidateMarkdown(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("MARKDOWN_EMPTY: no content to validate")
	}
	root := goldmark.DefaultParser().Parse(text.NewReader([]byte(content)))
	if root == nil || !root.HasChildren() {
		return fmt.Errorf("MARKDOWN_PARSE_ERROR: no block nodes found")
	}
	return nil
}
