package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferContentType(t *testing.T) {
	tests := []struct {
		name         string
		fileName     string
		reportedType string
		want         string
	}{
		{"reported type wins", "document.pdf", "application/x-custom", "application/x-custom"},
		{"pdf extension", "document.pdf", "", "application/pdf"},
		{"jpg extension", "photo.jpg", "", "image/jpeg"},
		{"jpeg extension", "photo.jpeg", "", "image/jpeg"},
		{"png extension", "chart.png", "", "image/png"},
		{"uppercase extension", "SCAN.PDF", "", "application/pdf"},
		{"unknown extension", "archive.tar", "", "application/octet-stream"},
		{"no extension", "README", "", "application/octet-stream"},
		{"empty name", "", "", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferContentType(tt.fileName, tt.reportedType))
		})
	}
}
