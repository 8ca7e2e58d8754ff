// internal/feeds/text.go

package feeds

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const ellipsis = "..."

// Truncate trims text to at most maxLength characters, ending with "..."
// when something was cut.
func Truncate(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	if maxLength <= len(ellipsis) {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-len(ellipsis)]) + ellipsis
}

// Collapse replaces every whitespace run with a single space.
func Collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// StripHTML returns the visible text of an HTML fragment.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return Collapse(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return Collapse(fragment)
	}
	return Collapse(doc.Text())
}

// HTMLToMarkdown converts an HTML fragment into Discord-friendly markdown,
// falling back to plain text.
func HTMLToMarkdown(fragment string) string {
	converter := md.NewConverter("", true, nil)
	out, err := converter.ConvertString(fragment)
	if err != nil {
		return StripHTML(fragment)
	}
	return strings.TrimSpace(out)
}
