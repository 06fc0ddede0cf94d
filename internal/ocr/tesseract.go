package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
)

// ImageRecognizer reads the text of one page image.
type ImageRecognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Tesseract runs the tesseract command, feeding the image on stdin.
type Tesseract struct {
	path     string
	psm      int
	language string
}

var _ ImageRecognizer = (*Tesseract)(nil)

func NewTesseract(path string, psm int, language string) *Tesseract {
	return &Tesseract{path: path, psm: psm, language: language}
}

// Available reports whether the tesseract binary can be found.
func (t *Tesseract) Available() bool {
	_, err := exec.LookPath(t.path)
	return err == nil
}

func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	bin, err := exec.LookPath(t.path)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeOCRUnavailable,
			fmt.Sprintf("tesseract not found at %q", t.path), err)
	}

	args := []string{"stdin", "stdout", "--psm", strconv.Itoa(t.psm)}
	if t.language != "" {
		args = append(args, "-l", t.language)
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeOCRUnavailable,
				"tesseract failed: "+firstLine(stderr.String()), err)
		}
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeOCRUnavailable, "tesseract failed", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
