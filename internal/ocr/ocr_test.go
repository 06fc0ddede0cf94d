package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x00\x00\x00\x00")

type fakeRecognizer struct {
	text  string
	err   error
	calls int
}

func (f *fakeRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestJoinPages(t *testing.T) {
	t.Run("no pages", func(t *testing.T) {
		j := JoinPages(nil)
		assert.Empty(t, j.Text)
		assert.Empty(t, j.PageOffsets)
	})

	t.Run("single page has no marker", func(t *testing.T) {
		j := JoinPages([]string{"hello"})
		assert.Equal(t, "hello", j.Text)
		assert.Equal(t, []int{0}, j.PageOffsets)
	})

	t.Run("multiple pages", func(t *testing.T) {
		j := JoinPages([]string{"first", "zweite ü"})
		assert.Equal(t, "--- Page 1 ---\nfirst\n\n--- Page 2 ---\nzweite ü", j.Text)
		// 15 marker runes + 5 text + 2 separator
		assert.Equal(t, []int{0, 22}, j.PageOffsets)
		assert.Equal(t, 2, domain.PageAt(j.PageOffsets, 25))
		assert.Equal(t, 1, domain.PageAt(j.PageOffsets, 21))
	})
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		declared string
		want     Kind
	}{
		{"plain text", []byte("Invoice number INV-001\nTotal 12.50"), "", KindText},
		{"pdf", []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n"), "", KindPDF},
		{"png", pngHeader, "", KindImage},
		{"jpeg", []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), "", KindImage},
		{"gzip is unsupported", []byte("\x1f\x8b\x08\x00\x00\x00\x00\x00"), "image/png", KindUnsupported},
		{"unknown bytes fall back to declared type", []byte{0x00, 0x01, 0x02, 0x03}, "image/tiff", KindImage},
		{"unknown bytes without declared type", []byte{0x00, 0x01, 0x02, 0x03}, "", KindUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.data, tt.declared))
		})
	}
}

func TestService_Extract(t *testing.T) {
	ctx := context.Background()

	t.Run("empty data", func(t *testing.T) {
		svc := NewServiceWith(DefaultConfig(), &fakeRecognizer{})
		_, err := svc.Extract(ctx, nil, "text/plain")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("plain text passes through", func(t *testing.T) {
		rec := &fakeRecognizer{}
		svc := NewServiceWith(DefaultConfig(), rec)
		res, err := svc.Extract(ctx, []byte("Policy number: P-123"), "")
		require.NoError(t, err)
		assert.Equal(t, MethodPlainText, res.Method)
		assert.Equal(t, "Policy number: P-123", res.Text)
		assert.Equal(t, 0, rec.calls)
	})

	t.Run("image goes through the recognizer", func(t *testing.T) {
		rec := &fakeRecognizer{text: "scanned words"}
		svc := NewServiceWith(DefaultConfig(), rec)
		res, err := svc.Extract(ctx, pngHeader, "image/png")
		require.NoError(t, err)
		assert.Equal(t, MethodImageOCR, res.Method)
		assert.Equal(t, "scanned words", res.Text)
		assert.Equal(t, []string{"scanned words"}, res.Pages)
		assert.Equal(t, 1, rec.calls)
	})

	t.Run("recognizer failure surfaces", func(t *testing.T) {
		rec := &fakeRecognizer{err: domain.NewDomainError(domain.ErrCodeOCRUnavailable, "tesseract not found")}
		svc := NewServiceWith(DefaultConfig(), rec)
		_, err := svc.Extract(ctx, pngHeader, "image/png")
		assert.ErrorIs(t, err, domain.ErrOCRUnavailable)
		assert.True(t, domain.IsTransient(err))
	})

	t.Run("unsupported format", func(t *testing.T) {
		svc := NewServiceWith(DefaultConfig(), &fakeRecognizer{})
		_, err := svc.Extract(ctx, []byte("\x1f\x8b\x08\x00\x00\x00\x00\x00"), "application/gzip")
		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
		assert.False(t, domain.IsTransient(err))
	})
}

func TestTesseract_MissingBinary(t *testing.T) {
	tess := NewTesseract("/nonexistent/bin/tesseract", 6, "eng")
	assert.False(t, tess.Available())

	_, err := tess.Recognize(context.Background(), pngHeader)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOCRUnavailable)

	var de *domain.DomainError
	require.True(t, errors.As(err, &de))
	assert.Contains(t, de.Message, "/nonexistent/bin/tesseract")
}

func TestPDFReader_CanRasterize(t *testing.T) {
	assert.False(t, NewPDFReader("", 300).CanRasterize())
	assert.False(t, NewPDFReader("/nonexistent/bin/pdftoppm", 300).CanRasterize())
}

func TestContentStreamText(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{
			name:   "simple Tj",
			stream: "BT /F1 12 Tf 72 712 Td (Invoice INV-001) Tj ET",
			want:   "Invoice INV-001",
		},
		{
			name:   "lines from Td",
			stream: "BT /F1 12 Tf 72 712 Td (Line one) Tj 0 -14 Td (Line two) Tj ET",
			want:   "Line one\nLine two",
		},
		{
			name:   "TJ array with kerning gap",
			stream: "BT [(Total)-250(12.50)] TJ ET",
			want:   "Total 12.50",
		},
		{
			name:   "TJ array with small kerning",
			stream: "BT [(Ta)-20(x)] TJ ET",
			want:   "Tax",
		},
		{
			name:   "escapes and nested parens",
			stream: `BT (a \(b\) c) Tj T* (\101\102) Tj (x (y) z) Tj ET`,
			want:   "a (b) c\nABx (y) z",
		},
		{
			name:   "hex string",
			stream: "BT <48656C6C6F> Tj ET",
			want:   "Hello",
		},
		{
			name:   "quote operator starts a new line",
			stream: "BT (first) Tj (second) ' ET",
			want:   "first\nsecond",
		},
		{
			name:   "no text",
			stream: "q 1 0 0 1 0 0 cm /Im1 Do Q",
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentStreamText([]byte(tt.stream)))
		})
	}
}
