package services

import (
	"strings"
	"testing"
)

func repeatSentence(sentence string, targetChars int) string {
	var b strings.Builder
	for b.Len() < targetChars {
		b.WriteString(sentence)
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}

func TestSplitEmptyInput(t *testing.T) {
	c := NewChunker(500, 50, 100)

	for _, input := range []string{"", "   ", "\n\n\t  \n"} {
		if chunks := c.Split(input); len(chunks) != 0 {
			t.Errorf("Split(%q) = %d chunks, want 0", input, len(chunks))
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	c := NewChunker(500, 50, 100)
	text := repeatSentence("Crosshair placement beats raw flicking in most duels.", 3000)

	first := c.Split(text)
	second := c.Split(text)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitParagraphBoundaries(t *testing.T) {
	c := NewChunker(500, 50, 100)

	p1 := repeatSentence("Warm up with slow tracking before speed.", 400)
	p2 := repeatSentence("Flick drills reward consistency over raw pace.", 400)
	p3 := repeatSentence("Rest days prevent wrist strain from building up.", 400)
	text := p1 + "\n\n" + p2 + "\n\n" + p3

	chunks := c.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[0] != p1 {
		t.Errorf("first chunk does not match first paragraph")
	}
	// Later chunks carry overlap from their predecessor.
	if !strings.Contains(chunks[1], "Flick drills") {
		t.Errorf("second chunk missing second paragraph content")
	}
	if !strings.Contains(chunks[2], "Rest days") {
		t.Errorf("third chunk missing third paragraph content")
	}
}

func TestSplitNoEmptyChunks(t *testing.T) {
	c := NewChunker(200, 40, 50)
	text := repeatSentence("Aim training transfers across games when fundamentals are solid.", 5000)

	chunks := c.Split(text)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestSplitHardCutsOversizedWord(t *testing.T) {
	c := NewChunker(500, 50, 100)
	text := strings.Repeat("x", 1200)

	chunks := c.Split(text)
	if len(chunks) == 0 {
		t.Fatal("expected chunks for oversized input")
	}

	var total int
	for i, chunk := range chunks {
		if len(chunk) > 500 {
			t.Errorf("chunk %d is %d chars, exceeds max", i, len(chunk))
		}
		total += len(strings.ReplaceAll(chunk, " ", ""))
	}
	if total < 1200 {
		t.Errorf("chunks cover %d chars of 1200", total)
	}
}

func TestSplitOverlapSeedsNextChunk(t *testing.T) {
	c := NewChunker(300, 60, 50)

	p1 := repeatSentence("Track the target smoothly.", 250)
	p2 := repeatSentence("Reset your grip between runs.", 200)
	chunks := c.Split(p1 + "\n\n" + p2)

	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}

	tail := c.overlapTail(chunks[0])
	if tail == "" {
		t.Fatal("expected a non-empty overlap tail")
	}
	if !strings.HasPrefix(chunks[1], tail) {
		t.Errorf("second chunk does not start with first chunk's tail\n tail: %q\nchunk: %q", tail, chunks[1])
	}
}

func TestCleanText(t *testing.T) {
	input := "Intro   line with\tspaces.\n\n--- PAGE 2 ---\nSecond paragraph\nwraps  here.\n\n\n\nThird."

	got := CleanText(input)

	if strings.Contains(got, "PAGE") {
		t.Errorf("page marker survived cleaning: %q", got)
	}
	if strings.Contains(got, "  ") || strings.Contains(got, "\t") {
		t.Errorf("whitespace runs survived cleaning: %q", got)
	}
	if n := len(strings.Split(got, "\n\n")); n != 3 {
		t.Errorf("got %d paragraphs, want 3: %q", n, got)
	}
}

func TestCleanTextStripsFormFeeds(t *testing.T) {
	got := CleanText("one\ftwo")
	if strings.ContainsRune(got, '\f') {
		t.Errorf("form feed survived cleaning: %q", got)
	}
}
