package content

import "testing"

func TestTextNormalizesToNFC(t *testing.T) {
	// "e" followed by a combining acute accent.
	item := Text("  Cafe\u0301  ", "re\u0301sume\u0301")
	if item.Type != TypeText {
		t.Fatalf("unexpected type %q", item.Type)
	}
	if item.Title != "Caf\u00e9" {
		t.Fatalf("title not normalised: %q", item.Title)
	}
	if item.Content != "r\u00e9sum\u00e9" {
		t.Fatalf("content not normalised: %q", item.Content)
	}
}

func TestLink(t *testing.T) {
	item := Link("Story", " https://example.com/a ")
	if item.Type != TypeURL || item.URL != "https://example.com/a" || item.Content != "" {
		t.Fatalf("unexpected link item %+v", item)
	}
	if got := Titles([]Item{item, Text("b", "c")}); len(got) != 2 || got[0] != "Story" || got[1] != "b" {
		t.Fatalf("unexpected titles %v", got)
	}
}
