package ticketfile

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
)

// RenderSummaryHTML renders a ticket body to HTML for surfaces that display
// rich ticket summaries (the web mirror). Chat adapters send plain text
// chunks instead and never call this.
func RenderSummaryHTML(body string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("render ticket body: %w", err)
	}
	return buf.String(), nil
}
