package workitem

import "strings"

// Item is one unit of text slated for generation. Indices are dense,
// zero-based and assigned at derivation time; a new derivation fully
// replaces the previous item set and restarts numbering.
type Item struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// DeriveFromText splits a free-form block on line breaks, trims each
// line and drops empty ones, preserving original order. One surviving
// line is a singleton derivation, two or more a batch derivation.
func DeriveFromText(block string) []Item {
	var items []Item
	for _, line := range strings.Split(block, "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		items = append(items, Item{Index: len(items), Text: text})
	}
	return items
}

// DeriveFromChunks numbers pre-chunked strings in the order the
// extraction collaborator produced them. No further splitting happens.
func DeriveFromChunks(chunks []string) []Item {
	items := make([]Item, 0, len(chunks))
	for _, chunk := range chunks {
		items = append(items, Item{Index: len(items), Text: chunk})
	}
	return items
}

// Texts returns the item texts in item order.
func Texts(items []Item) []string {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}
	return texts
}
