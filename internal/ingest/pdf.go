// Package ingest prepares raw uploads for the extraction oracle.
package ingest

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

const (
	// maxRenderedPages bounds how many pages go to the vision model; real
	// receipts fit on one page, statements rarely exceed two
	maxRenderedPages = 2

	jpegQuality = 90
)

// PDFRenderer converts PDF payloads to JPEG page images via mupdf so the
// vision path can treat them like photographed receipts.
type PDFRenderer struct {
	logger *zap.Logger
}

func NewPDFRenderer(logger *zap.Logger) *PDFRenderer {
	return &PDFRenderer{logger: logger}
}

// RenderPages renders up to maxRenderedPages pages as JPEG images.
func (r *PDFRenderer) RenderPages(payload []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(payload)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	if pageCount > maxRenderedPages {
		pageCount = maxRenderedPages
	}

	var pages [][]byte
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		img, err := doc.Image(pageNum)
		if err != nil {
			r.logger.Warn("Failed to render PDF page",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			r.logger.Warn("Failed to encode PDF page",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		pages = append(pages, buf.Bytes())
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no renderable pages in PDF")
	}
	return pages, nil
}

// RenderFirstPage renders only the first page, the common receipt case.
func (r *PDFRenderer) RenderFirstPage(payload []byte) ([]byte, error) {
	pages, err := r.RenderPages(payload)
	if err != nil {
		return nil, err
	}
	return pages[0], nil
}
