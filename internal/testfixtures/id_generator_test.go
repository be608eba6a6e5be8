package testfixtures

import "testing"

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("")

	if last := gen.Last(); last != "" {
		t.Fatalf("expected no identifier before the first call, got %q", last)
	}
	first := gen.Next()
	second := gen.Next()

	if first != "evt-1" || second != "evt-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if last := gen.Last(); last != second {
		t.Fatalf("expected Last to report %q, got %q", second, last)
	}
}

func TestIDGeneratorCanReset(t *testing.T) {
	gen := NewIDGenerator("series")
	_ = gen.Next()
	gen.Reset()

	if next := gen.Next(); next != "series-1" {
		t.Fatalf("expected series-1 after reset, got %q", next)
	}
}
