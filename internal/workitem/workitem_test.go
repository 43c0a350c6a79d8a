package workitem

import "testing"

func TestDeriveFromText(t *testing.T) {
	items := DeriveFromText("  Hello  \n\n\tWorld\n   \n")
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Index != 0 || items[0].Text != "Hello" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].Index != 1 || items[1].Text != "World" {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

func TestDeriveFromTextSingleton(t *testing.T) {
	items := DeriveFromText("\n  Bonjour \n\n")
	if len(items) != 1 {
		t.Fatalf("expected singleton derivation, got %d items", len(items))
	}
	if items[0].Index != 0 || items[0].Text != "Bonjour" {
		t.Fatalf("unexpected item: %+v", items[0])
	}
}

func TestDeriveFromTextEmptyBlock(t *testing.T) {
	if items := DeriveFromText(" \n\t\n"); len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestDeriveFromTextIndicesAreDense(t *testing.T) {
	items := DeriveFromText("a\n\nb\n\nc\nd")
	for i, item := range items {
		if item.Index != i {
			t.Fatalf("expected dense indices, item %d has index %d", i, item.Index)
		}
	}
}

func TestDeriveFromChunksKeepsOrder(t *testing.T) {
	items := DeriveFromChunks([]string{"first chunk", "", "third chunk"})
	if len(items) != 3 {
		t.Fatalf("expected chunks to pass through unsplit, got %d", len(items))
	}
	// Chunk content is the extractor's responsibility; even empty
	// chunks keep their slot so indices stay aligned.
	if items[1].Index != 1 || items[1].Text != "" {
		t.Fatalf("unexpected middle item: %+v", items[1])
	}
}

func TestTexts(t *testing.T) {
	items := DeriveFromText("one\ntwo")
	texts := Texts(items)
	if len(texts) != 2 || texts[0] != "one" || texts[1] != "two" {
		t.Fatalf("unexpected texts: %v", texts)
	}
}
