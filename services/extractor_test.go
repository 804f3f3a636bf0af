package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestValidatePDFHeader(t *testing.T) {
	if err := ValidatePDFHeader([]byte("%PDF-1.7\n...")); err != nil {
		t.Errorf("valid header rejected: %v", err)
	}
	if err := ValidatePDFHeader([]byte("GIF89a")); !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("non-PDF accepted: %v", err)
	}
	if err := ValidatePDFHeader([]byte("%P")); !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("truncated file accepted: %v", err)
	}
}

func TestExtractTextGarbageInput(t *testing.T) {
	e := NewExtractor()

	_, err := e.ExtractText(context.Background(), []byte("%PDF-1.4 this is not a real pdf body"))
	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("got %v, want ErrExtractionFailed", err)
	}
}

func TestExtractTextEmptyInput(t *testing.T) {
	e := NewExtractor()

	_, err := e.ExtractText(context.Background(), nil)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("got %v, want ErrExtractionFailed", err)
	}
}

func TestEvaluateTextQuality(t *testing.T) {
	if got := evaluateTextQuality(""); got != 0 {
		t.Errorf("empty text quality = %f, want 0", got)
	}
	if got := evaluateTextQuality("ab"); got != 0.1 {
		t.Errorf("tiny text quality = %f, want 0.1", got)
	}

	clean := strings.Repeat("Good aim comes from deliberate practice and patience. ", 5)
	if got := evaluateTextQuality(clean); got < extractQualityAccept {
		t.Errorf("clean prose quality = %f, want >= %f", got, extractQualityAccept)
	}

	corrupted := strings.Repeat("���a", 40)
	if got := evaluateTextQuality(corrupted); got >= extractQualityFloor {
		t.Errorf("corrupted text quality = %f, want < %f", got, extractQualityFloor)
	}
}
