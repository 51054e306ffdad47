package channel

import "testing"

func TestExtractTextJoinsArtifactParts(t *testing.T) {
	result := &a2aResult{
		Artifacts: []a2aArtifact{
			{Parts: []a2aPart{{Kind: "text", Text: "a"}, {Kind: "text", Text: "b"}}},
		},
	}
	text, ok := extractText(result)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if text != "a\nb" {
		t.Fatalf("expected %q, got %q", "a\nb", text)
	}
}

func TestExtractTextEmptyYieldsNotOK(t *testing.T) {
	_, ok := extractText(&a2aResult{})
	if ok {
		t.Fatal("expected ok=false for empty result")
	}
}

func TestExtractTextFallsBackToStatusMessage(t *testing.T) {
	result := &a2aResult{
		Status: &a2aStatus{
			State:   "completed",
			Message: &a2aMessage{Parts: []a2aPart{{Kind: "text", Text: "done"}}},
		},
	}
	text, ok := extractText(result)
	if !ok || text != "done" {
		t.Fatalf("expected %q, got %q (ok=%v)", "done", text, ok)
	}
}
