// Package convert implements the file transformations behind each tool type.
// All transforms operate on in-memory byte slices; the caller owns fetching
// inputs from and writing results to object storage.
package convert

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	// User-supplied PDFs are frequently sloppy; relaxed validation accepts
	// anything a viewer would render.
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// MergePDFs concatenates the input PDFs into a single document, preserving
// input order
func MergePDFs(inputs [][]byte) ([]byte, error) {
	if len(inputs) < 2 {
		return nil, fmt.Errorf("merge requires at least 2 input files, got %d", len(inputs))
	}

	readers := make([]io.ReadSeeker, len(inputs))
	for i, input := range inputs {
		readers[i] = bytes.NewReader(input)
	}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, pdfConfig()); err != nil {
		return nil, fmt.Errorf("merge pdfs: %w", err)
	}

	return out.Bytes(), nil
}

// OptimizePDF rewrites a PDF with redundant objects removed. The high
// compression level additionally deduplicates content streams.
func OptimizePDF(input []byte, level string) ([]byte, error) {
	conf := pdfConfig()
	if level == "high" {
		conf.OptimizeDuplicateContentStreams = true
	}

	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(input), &out, conf); err != nil {
		return nil, fmt.Errorf("optimize pdf: %w", err)
	}

	return out.Bytes(), nil
}

// ImagesToPDF lays the input images out as one page per image, in input order
func ImagesToPDF(inputs [][]byte) ([]byte, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("image conversion requires at least 1 input file")
	}

	readers := make([]io.Reader, len(inputs))
	for i, input := range inputs {
		readers[i] = bytes.NewReader(input)
	}

	var out bytes.Buffer
	if err := api.ImportImages(nil, &out, readers, nil, pdfConfig()); err != nil {
		return nil, fmt.Errorf("images to pdf: %w", err)
	}

	return out.Bytes(), nil
}
