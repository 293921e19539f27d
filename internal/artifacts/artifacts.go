// Package artifacts scans a workspace directory for files produced by code
// execution and describes them in a transport-ready form.
package artifacts

import "strings"

// FileType classifies a workspace file by extension.
type FileType string

const (
	TypeImage  FileType = "image"
	TypeText   FileType = "text"
	TypeData   FileType = "data"
	TypeBinary FileType = "binary"
)

// PlaceholderName is the repository-keeping marker file that display layers
// filter out of artifact listings.
const PlaceholderName = ".gitkeep"

// FileRecord describes one regular file in the workspace.
type FileRecord struct {
	Filename string   `json:"filename"`
	Path     string   `json:"path"`
	Size     int64    `json:"size"`
	Type     FileType `json:"type"`
	IsNew    bool     `json:"is_new"`

	// ContentBase64 is set for images during a full scan, and for any
	// non-text file fetched individually.
	ContentBase64 string `json:"content_base64,omitempty"`

	// Content is set for text files fetched individually.
	Content string `json:"content,omitempty"`
}

var (
	imageExts = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
		".bmp": true, ".svg": true, ".webp": true,
	}
	textExts = map[string]bool{
		".txt": true, ".csv": true, ".json": true, ".md": true,
		".py": true, ".html": true, ".xml": true,
	}
	dataExts = map[string]bool{
		".xlsx": true, ".xls": true, ".parquet": true, ".feather": true,
		".pkl": true, ".pickle": true,
	}
)

// Classify returns the file type for an extension (including the dot,
// case-insensitive).
func Classify(ext string) FileType {
	ext = strings.ToLower(ext)
	switch {
	case imageExts[ext]:
		return TypeImage
	case textExts[ext]:
		return TypeText
	case dataExts[ext]:
		return TypeData
	default:
		return TypeBinary
	}
}

// IsTextExt reports whether the extension is in the fixed text set. The
// single-file fetch surface uses this to choose utf-8 vs base64 encoding.
func IsTextExt(ext string) bool {
	return textExts[strings.ToLower(ext)]
}
