package worker

import (
	"fmt"

	"github.com/ndthanh/convert-be/internal/worker/convert"
	"github.com/ndthanh/convert-be/internal/worker/domain"
)

// ExecutionResult is the artifact produced by a conversion
type ExecutionResult struct {
	Data        []byte
	FileName    string
	ContentType string
}

// executeTool runs the transform for the job's tool type against the inputs,
// which arrive in the order the job listed them
func executeTool(job *domain.Job, inputs [][]byte) (*ExecutionResult, error) {
	switch job.ToolType {
	case domain.ToolMerge:
		data, err := convert.MergePDFs(inputs)
		if err != nil {
			return nil, err
		}
		return &ExecutionResult{Data: data, FileName: "merged-document.pdf", ContentType: "application/pdf"}, nil

	case domain.ToolReduce:
		if len(inputs) != 1 {
			return nil, fmt.Errorf("reduce requires exactly one input file, got %d", len(inputs))
		}
		data, err := convert.OptimizePDF(inputs[0], job.CompressionLevel)
		if err != nil {
			return nil, err
		}
		return &ExecutionResult{Data: data, FileName: "reduced-document.pdf", ContentType: "application/pdf"}, nil

	case domain.ToolJPGToPDF:
		data, err := convert.ImagesToPDF(inputs)
		if err != nil {
			return nil, err
		}
		return &ExecutionResult{Data: data, FileName: "converted-document.pdf", ContentType: "application/pdf"}, nil

	case domain.ToolCompress:
		data, fileName, contentType, err := convert.CompressImages(inputs, job.CompressionLevel)
		if err != nil {
			return nil, err
		}
		return &ExecutionResult{Data: data, FileName: fileName, ContentType: contentType}, nil

	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidToolType, job.ToolType)
	}
}
