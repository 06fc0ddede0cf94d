// Package ocr turns uploaded documents into page text. Plain text passes
// through, PDFs use their text layer and images go through tesseract.
package ocr

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/phuslu/log"
)

// Extraction methods reported in Result.Method.
const (
	MethodPlainText = "text"
	MethodPDFText   = "pdf_text"
	MethodPDFOCR    = "pdf_ocr"
	MethodImageOCR  = "image_ocr"
)

// Result is the text of a document, one entry per page.
type Result struct {
	Text     string   `json:"text"`
	Pages    []string `json:"pages"`
	Method   string   `json:"method"`
	Warnings []string `json:"warnings,omitempty"`
}

// Extractor turns raw document bytes into text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, contentType string) (*Result, error)
}

// Config configures the OCR tools.
type Config struct {
	TesseractPath string
	PSM           int
	Language      string
	PdftoppmPath  string
	DPI           int
	// MinPDFTextChars is the text-layer size below which a PDF is treated as scanned.
	MinPDFTextChars int
}

// DefaultConfig returns the default tool settings.
func DefaultConfig() Config {
	return Config{
		TesseractPath:   "tesseract",
		PSM:             6,
		Language:        "eng",
		PdftoppmPath:    "pdftoppm",
		DPI:             300,
		MinPDFTextChars: 50,
	}
}

// Service routes documents to the right extractor by sniffed format.
type Service struct {
	cfg   Config
	image ImageRecognizer
	pdf   *PDFReader
}

var _ Extractor = (*Service)(nil)

// NewService creates an extractor backed by the tesseract command.
func NewService(cfg Config) *Service {
	def := DefaultConfig()
	if cfg.TesseractPath == "" {
		cfg.TesseractPath = def.TesseractPath
	}
	if cfg.PSM <= 0 {
		cfg.PSM = def.PSM
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.PdftoppmPath == "" {
		cfg.PdftoppmPath = def.PdftoppmPath
	}
	if cfg.DPI <= 0 {
		cfg.DPI = def.DPI
	}
	if cfg.MinPDFTextChars <= 0 {
		cfg.MinPDFTextChars = def.MinPDFTextChars
	}
	tess := NewTesseract(cfg.TesseractPath, cfg.PSM, cfg.Language)
	return NewServiceWith(cfg, tess)
}

// NewServiceWith creates an extractor with a custom image recognizer.
func NewServiceWith(cfg Config, image ImageRecognizer) *Service {
	return &Service{
		cfg:   cfg,
		image: image,
		pdf:   NewPDFReader(cfg.PdftoppmPath, cfg.DPI),
	}
}

// Extract detects the format of data and extracts its text. contentType is
// only consulted when sniffing is inconclusive.
func (s *Service) Extract(ctx context.Context, data []byte, contentType string) (*Result, error) {
	if len(data) == 0 {
		return nil, domain.ErrEmptyDocumentData
	}

	kind := Detect(data, contentType)
	var res *Result
	var err error
	switch kind {
	case KindText:
		res = s.extractText(data)
	case KindPDF:
		res, err = s.extractPDF(ctx, data)
	case KindImage:
		res, err = s.extractImage(ctx, data)
	default:
		return nil, domain.NewDomainError(domain.ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported document format %s", mimetype.Detect(data).String()))
	}
	if err != nil {
		return nil, err
	}

	res.Text = JoinPages(res.Pages).Text
	log.Debug().
		Str("method", res.Method).
		Int("pages", len(res.Pages)).
		Int("chars", utf8.RuneCountInString(res.Text)).
		Msg("text extracted")
	return res, nil
}

func (s *Service) extractText(data []byte) *Result {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return &Result{Pages: []string{text}, Method: MethodPlainText}
}

func (s *Service) extractImage(ctx context.Context, data []byte) (*Result, error) {
	text, err := s.image.Recognize(ctx, data)
	if err != nil {
		return nil, err
	}
	return &Result{Pages: []string{text}, Method: MethodImageOCR}, nil
}

func (s *Service) extractPDF(ctx context.Context, data []byte) (*Result, error) {
	pages, err := s.pdf.TextLayer(ctx, data)
	if err != nil {
		return nil, err
	}

	res := &Result{Pages: pages, Method: MethodPDFText}
	if textChars(pages) >= s.cfg.MinPDFTextChars {
		return res, nil
	}

	if !s.pdf.CanRasterize() {
		res.Warnings = append(res.Warnings,
			"PDF text layer is nearly empty and no rasterizer is installed; scanned pages were not OCR'd")
		return res, nil
	}

	images, err := s.pdf.Rasterize(ctx, data)
	if err != nil {
		return nil, err
	}
	ocrPages := make([]string, len(images))
	for i, img := range images {
		text, err := s.image.Recognize(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		ocrPages[i] = text
	}
	return &Result{Pages: ocrPages, Method: MethodPDFOCR}, nil
}

func textChars(pages []string) int {
	n := 0
	for _, p := range pages {
		n += utf8.RuneCountInString(strings.TrimSpace(p))
	}
	return n
}

// Joined is page text laid out as one string.
type Joined struct {
	Text string
	// PageOffsets holds the rune offset where each page starts.
	PageOffsets []int
}

// JoinPages lays pages out as a single text. Multi-page documents get a
// "--- Page N ---" marker line before each page, and pages are separated by a
// blank line.
func JoinPages(pages []string) Joined {
	switch len(pages) {
	case 0:
		return Joined{}
	case 1:
		return Joined{Text: pages[0], PageOffsets: []int{0}}
	}

	var b strings.Builder
	offsets := make([]int, len(pages))
	runes := 0
	for i, page := range pages {
		if i > 0 {
			b.WriteString("\n\n")
			runes += 2
		}
		offsets[i] = runes
		marker := fmt.Sprintf("--- Page %d ---\n", i+1)
		b.WriteString(marker)
		b.WriteString(page)
		runes += utf8.RuneCountInString(marker) + utf8.RuneCountInString(page)
	}
	return Joined{Text: b.String(), PageOffsets: offsets}
}
