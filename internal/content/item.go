package content

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Type distinguishes inline text sources from remote references.
type Type string

const (
	TypeText Type = "text"
	TypeURL  Type = "url"
)

// Item is one unit of content handed to the notebook provider. It has no
// identity beyond its position in a batch.
type Item struct {
	Type    Type   `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Text builds an inline text item with NFC-normalised title and body.
func Text(title, body string) Item {
	return Item{Type: TypeText, Title: Normalize(title), Content: Normalize(body)}
}

// Link builds a remote reference item.
func Link(title, url string) Item {
	return Item{Type: TypeURL, Title: Normalize(title), URL: strings.TrimSpace(url)}
}

// Normalize composes text to NFC and trims surrounding whitespace so the same
// article fetched through different paths yields identical bytes.
func Normalize(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// Titles lists item titles in order, for logs and notebook summaries.
func Titles(items []Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Title
	}
	return out
}
