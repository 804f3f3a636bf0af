package services

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"aim-assistant-backend/internal/logger"
)

// Extractor turns uploaded PDF bytes into plain text. It tries poppler's
// pdftotext first when the binary is available, then the pure-Go reader, and
// keeps the best result by quality score.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

const (
	extractQualityAccept = 0.7
	extractQualityFloor  = 0.3
)

// ExtractText extracts text from PDF bytes. Returns ErrExtractionFailed when
// no method yields usable text.
func (e *Extractor) ExtractText(ctx context.Context, content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrExtractionFailed)
	}

	methods := []struct {
		name    string
		extract func(context.Context, []byte) (string, error)
	}{
		{"poppler", e.extractWithPoppler},
		{"go-pdf", e.extractWithGoPDF},
	}

	var lastErr error
	bestText := ""
	bestQuality := 0.0

	for _, method := range methods {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := method.extract(ctx, content)
		if err != nil {
			logger.Debug("extraction method failed", "method", method.name, "error", err)
			lastErr = err
			continue
		}

		quality := evaluateTextQuality(text)
		logger.Debug("extraction attempt", "method", method.name, "chars", len(text), "quality", quality)

		if quality >= extractQualityAccept {
			return text, nil
		}
		if quality > bestQuality {
			bestText = text
			bestQuality = quality
		}
	}

	if bestQuality >= extractQualityFloor {
		return bestText, nil
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, lastErr)
	}
	return "", fmt.Errorf("%w: no usable text in document", ErrExtractionFailed)
}

// extractWithPoppler shells out to pdftotext with a bounded timeout.
func (e *Extractor) extractWithPoppler(ctx context.Context, content []byte) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("pdftotext not available")
	}

	extractCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(extractCtx, "pdftotext", "-layout", "-", "-")
	cmd.Stdin = bytes.NewReader(content)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %v, stderr: %s", err, stderr.String())
	}

	text := stdout.String()
	if len(strings.TrimSpace(text)) == 0 {
		return "", fmt.Errorf("no text extracted by pdftotext")
	}
	return text, nil
}

// extractWithGoPDF uses the pure-Go PDF reader.
func (e *Extractor) extractWithGoPDF(ctx context.Context, content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("failed to extract page text", "page", i, "error", err)
			continue
		}

		textBuilder.WriteString(fmt.Sprintf("\n\n--- PAGE %d ---\n", i))
		textBuilder.WriteString(text)
	}

	text := textBuilder.String()
	if len(strings.TrimSpace(text)) == 0 {
		return "", fmt.Errorf("no text extracted by go-pdf")
	}
	return text, nil
}

// evaluateTextQuality scores extracted text in [0,1] from character-class
// ratios: printable and alphanumeric content raises the score, replacement
// and unusual characters lower it.
func evaluateTextQuality(text string) float64 {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return 0.0
	}
	if len(text) < 10 {
		return 0.1
	}

	var alphanumeric, printable, corrupted int

	for _, r := range text {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			alphanumeric++
			printable++
		case r == ' ' || r == '\n' || r == '\t':
			printable++
		case r == '�':
			corrupted++
		case r >= 32 && r <= 126:
			printable++
		case r > 127 && !isCommonUnicodeChar(r):
			corrupted++
		default:
			printable++
		}
	}

	total := len([]rune(text))
	alphanumericRatio := float64(alphanumeric) / float64(total)
	printableRatio := float64(printable) / float64(total)
	corruptedRatio := float64(corrupted) / float64(total)

	score := printableRatio * 0.5
	if alphanumericRatio >= 0.3 {
		score += 0.3
	} else {
		score += alphanumericRatio
	}
	score -= corruptedRatio * 2.0
	if len(text) > 100 {
		score += 0.2
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func isCommonUnicodeChar(r rune) bool {
	common := []rune{'—', '“', '”', '‘', '’', '…', '€', '£', '¥', '©', '®', '™', 'é', 'è', 'à', 'ç'}
	for _, c := range common {
		if r == c {
			return true
		}
	}
	return false
}

// ValidatePDFHeader rejects uploads that are not PDF documents before any
// extraction work is attempted.
func ValidatePDFHeader(content []byte) error {
	if len(content) < 4 {
		return fmt.Errorf("%w: file too small", ErrExtractionFailed)
	}
	if !bytes.HasPrefix(content, []byte("%PDF")) {
		return fmt.Errorf("%w: missing PDF magic bytes", ErrExtractionFailed)
	}
	return nil
}
