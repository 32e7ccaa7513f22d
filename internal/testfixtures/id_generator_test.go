package testfixtures

import "testing"

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("oh")

	first := gen.Next()
	second := gen.NextFunc()()

	if first != "oh-1" || second != "oh-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if gen.Issued() != 2 {
		t.Fatalf("expected 2 issued, got %d", gen.Issued())
	}
}
