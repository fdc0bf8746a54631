package ocr

import (
	"path/filepath"
	"strings"
)

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".gif":  "image/gif",
	".heic": "image/heic",
}

// IsPDF reports whether path names a PDF document.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// MIMEType returns the content type for a supported file, or "" when the
// extension is not recognized.
func MIMEType(path string) string {
	if IsPDF(path) {
		return "application/pdf"
	}
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// FileExtension maps an upload content type back to an extension.
func FileExtension(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	case "image/heic":
		return ".heic"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}
