package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/phuslu/log"
)

var (
	contentPageRe = regexp.MustCompile(`Content_page_(\d+)\.txt$`)
	rasterPageRe  = regexp.MustCompile(`-(\d+)\.png$`)
)

// PDFReader reads the text layer of PDFs with pdfcpu and rasterizes scanned
// pages with pdftoppm.
type PDFReader struct {
	pdftoppm string
	dpi      int
}

func NewPDFReader(pdftoppmPath string, dpi int) *PDFReader {
	return &PDFReader{pdftoppm: pdftoppmPath, dpi: dpi}
}

// CanRasterize reports whether pdftoppm is installed.
func (r *PDFReader) CanRasterize() bool {
	if r.pdftoppm == "" {
		return false
	}
	_, err := exec.LookPath(r.pdftoppm)
	return err == nil
}

// TextLayer returns the embedded text of each page. Pages without text come
// back as empty strings.
func (r *PDFReader) TextLayer(ctx context.Context, data []byte) ([]string, error) {
	dir, err := os.MkdirTemp("", "docrag-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inFile := filepath.Join(dir, "document.pdf")
	if err := os.WriteFile(inFile, data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(inFile)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnsupportedFormat, "unreadable PDF", err)
	}
	pageCount := pdfCtx.PageCount
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outDir := filepath.Join(dir, "content")
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(inFile, outDir, nil, conf); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUnsupportedFormat, "extract PDF content", err)
	}

	pages := make([]string, pageCount)
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("read content dir: %w", err)
	}
	for _, e := range entries {
		m := contentPageRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > pageCount {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(outDir, e.Name()))
		if err != nil {
			log.Warn().Err(err).Int("page", n).Msg("failed to read page content stream")
			continue
		}
		pages[n-1] = ContentStreamText(raw)
	}
	return pages, nil
}

// Rasterize renders every page to a grayscale PNG, in page order.
func (r *PDFReader) Rasterize(ctx context.Context, data []byte) ([][]byte, error) {
	bin, err := exec.LookPath(r.pdftoppm)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeOCRUnavailable, "pdftoppm not found", err)
	}

	dir, err := os.MkdirTemp("", "docrag-raster-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inFile := filepath.Join(dir, "document.pdf")
	if err := os.WriteFile(inFile, data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, "-r", strconv.Itoa(r.dpi), "-gray", "-png", inFile, filepath.Join(dir, "page"))
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeOCRUnavailable,
			"pdftoppm failed: "+firstLine(string(out)), err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read raster dir: %w", err)
	}
	type page struct {
		n    int
		path string
	}
	var rendered []page
	for _, e := range entries {
		if m := rasterPageRe.FindStringSubmatch(e.Name()); m != nil {
			n, _ := strconv.Atoi(m[1])
			rendered = append(rendered, page{n: n, path: filepath.Join(dir, e.Name())})
		}
	}
	slices.SortFunc(rendered, func(a, b page) int { return a.n - b.n })

	images := make([][]byte, 0, len(rendered))
	for _, p := range rendered {
		img, err := os.ReadFile(p.path)
		if err != nil {
			return nil, fmt.Errorf("read page %d image: %w", p.n, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// ContentStreamText pulls the shown strings out of a PDF content stream.
// Text positioning operators become line breaks and large negative TJ
// adjustments become spaces.
func ContentStreamText(stream []byte) string {
	var b strings.Builder
	s := stream
	var operands []string
	inArray := false

	newline := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '(':
			str, next := readLiteral(s, i)
			operands = append(operands, str)
			if inArray {
				b.WriteString(str)
			}
			i = next
		case c == '<' && i+1 < len(s) && s[i+1] != '<':
			str, next := readHex(s, i)
			operands = append(operands, str)
			if inArray {
				b.WriteString(str)
			}
			i = next
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		case c == '%':
			for i < len(s) && s[i] != '\n' && s[i] != '\r' {
				i++
			}
		case isPDFSpace(c):
			i++
		default:
			start := i
			for i < len(s) && !isPDFSpace(s[i]) && !isPDFDelimiter(s[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			tok := string(s[start:i])
			if inArray {
				if n, err := strconv.ParseFloat(tok, 64); err == nil && n < -200 {
					b.WriteByte(' ')
				}
				continue
			}
			switch tok {
			case "Tj":
				if len(operands) > 0 {
					b.WriteString(operands[len(operands)-1])
				}
			case "'", "\"":
				newline()
				if len(operands) > 0 {
					b.WriteString(operands[len(operands)-1])
				}
			case "Td", "TD", "T*", "Tm":
				newline()
			case "ET":
				newline()
			}
			if _, err := strconv.ParseFloat(tok, 64); err != nil {
				operands = operands[:0]
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func readLiteral(s []byte, i int) (string, int) {
	var b strings.Builder
	depth := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '\\':
			i++
			if i >= len(s) {
				return b.String(), i
			}
			switch e := s[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
			default:
				if e >= '0' && e <= '7' {
					j := i
					for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
						j++
					}
					v, _ := strconv.ParseUint(string(s[i:j]), 8, 8)
					b.WriteRune(rune(v))
					i = j
					continue
				}
				b.WriteByte(e)
			}
			i++
		case '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
			i++
		case ')':
			depth--
			i++
			if depth == 0 {
				return b.String(), i
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}

func readHex(s []byte, i int) (string, int) {
	i++
	var digits []byte
	for i < len(s) && s[i] != '>' {
		if isHexDigit(s[i]) {
			digits = append(digits, s[i])
		}
		i++
	}
	if i < len(s) {
		i++
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	var b strings.Builder
	for j := 0; j+1 < len(digits); j += 2 {
		v, _ := strconv.ParseUint(string(digits[j:j+2]), 16, 8)
		b.WriteRune(rune(v))
	}
	return b.String(), i
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
