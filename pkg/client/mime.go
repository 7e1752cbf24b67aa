package client

import (
	"path/filepath"
	"strings"
)

// InferContentType picks the MIME type sent with a presign request. The type
// reported by the caller wins; otherwise the extension decides, and anything
// unrecognized falls back to application/octet-stream. Never returns "".
func InferContentType(fileName, reportedType string) string {
	if reportedType != "" {
		return reportedType
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
