package ocr

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the extraction route for a document.
type Kind int

const (
	KindUnsupported Kind = iota
	KindText
	KindPDF
	KindImage
)

var imageTypes = []string{"image/png", "image/jpeg", "image/tiff", "image/bmp", "image/gif", "image/webp"}

// Detect sniffs the format of data. The declared content type is used only
// when the bytes themselves are inconclusive.
func Detect(data []byte, declared string) Kind {
	mt := mimetype.Detect(data)
	if k := kindOf(mt.String()); k != KindUnsupported {
		return k
	}
	for p := mt.Parent(); p != nil; p = p.Parent() {
		if k := kindOf(p.String()); k == KindText {
			return k
		}
	}
	if mt.Is("application/octet-stream") && declared != "" {
		return kindOf(declared)
	}
	return KindUnsupported
}

func kindOf(contentType string) Kind {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch {
	case ct == "application/pdf":
		return KindPDF
	case ct == "text/plain", ct == "text/markdown", ct == "text/csv":
		return KindText
	}
	for _, it := range imageTypes {
		if ct == it {
			return KindImage
		}
	}
	return KindUnsupported
}
