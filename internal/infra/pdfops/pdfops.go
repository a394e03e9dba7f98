// Package pdfops wraps pdfcpu for the PDF processing the portal performs on
// uploaded documents: structural validation and size optimization.
package pdfops

import (
	"bytes"
	"context"
	"fmt"

	"github.com/techmigra/imigra-bfa-go/internal/domain"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("pdfops")

// Optimizer implements port.Compressor using pdfcpu's optimizer. Scanned
// immigration documents routinely carry duplicate fonts and unreferenced
// objects, so optimization alone recovers most of the size.
type Optimizer struct {
	conf *model.Configuration
}

// NewOptimizer returns an Optimizer with relaxed validation. Consular scans
// are often produced by borderline-compliant writers and strict mode would
// reject files that render fine.
func NewOptimizer() *Optimizer {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Optimizer{conf: conf}
}

// Compress validates and optimizes a PDF in memory. If the optimized output
// is not smaller than the input, the original bytes are returned unchanged.
func (o *Optimizer) Compress(ctx context.Context, fileName string, content []byte) ([]byte, error) {
	_, span := tracer.Start(ctx, "PDF.Compress")
	defer span.End()
	span.SetAttributes(
		attribute.String("pdf.file_name", fileName),
		attribute.Int("pdf.original_size", len(content)),
	)

	if err := api.Validate(bytes.NewReader(content), o.conf); err != nil {
		return nil, &domain.ErrValidation{Field: "file", Message: fmt.Sprintf("invalid PDF %q: %v", fileName, err)}
	}

	if pages, err := o.PageCount(content); err == nil {
		span.SetAttributes(attribute.Int("pdf.pages", pages))
	}

	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(content), &out, o.conf); err != nil {
		return nil, fmt.Errorf("failed to optimize %q: %w", fileName, err)
	}

	if out.Len() >= len(content) {
		span.SetAttributes(attribute.Int("pdf.optimized_size", len(content)))
		return content, nil
	}

	span.SetAttributes(attribute.Int("pdf.optimized_size", out.Len()))
	return out.Bytes(), nil
}

// PageCount returns the number of pages in a PDF.
func (o *Optimizer) PageCount(content []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(content), o.conf)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}
