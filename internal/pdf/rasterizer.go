// Package pdf turns PDF documents into page images for multimodal model
// requests.
package pdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/unidoc/unipdf/v3/model"
	"github.com/unidoc/unipdf/v3/render"
	"go.uber.org/zap"
)

// Rasterizer renders each page of a PDF to a base64-encoded PNG.
type Rasterizer struct {
	logger *zap.Logger
}

func NewRasterizer(logger *zap.Logger) *Rasterizer {
	return &Rasterizer{logger: logger}
}

// Pages renders the document page by page, in order. The whole document
// fails as a unit: a single unrenderable page aborts the call so the
// caller never sends a partial document to the model.
func (r *Rasterizer) Pages(data []byte) ([]string, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	if encrypted, err := reader.IsEncrypted(); err == nil && encrypted {
		if ok, err := reader.Decrypt([]byte("")); err != nil || !ok {
			return nil, fmt.Errorf("pdf is password protected")
		}
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("failed to read page count: %w", err)
	}

	device := render.NewImageDevice()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("failed to load page %d: %w", i, err)
		}
		img, err := device.Render(page)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i, err)
		}
		pages = append(pages, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}
	r.logger.Info("rasterized pdf", zap.Int("pages", numPages))
	return pages, nil
}
