package dataprovider

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/spf13/afero"
)

// RawFile is binary content that has not been uploaded yet. Its presence
// anywhere in a record routes the write through the multipart upload path.
type RawFile struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// NewRawFile wraps in-memory content.
func NewRawFile(name, contentType string, content []byte) *RawFile {
	return &RawFile{
		Name:        name,
		ContentType: contentType,
		Content:     bytes.NewReader(content),
	}
}

// NewRawFileFromFs reads a file into memory. The content type is taken from
// the extension, falling back to content sniffing.
func NewRawFileFromFs(fs afero.Fs, path string) (*RawFile, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload file: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return NewRawFile(filepath.Base(path), contentType, data), nil
}

// File is a file-field value. With Raw set it is a new file to upload;
// otherwise it references an already persisted file by ID.
type File struct {
	ID    any      `json:"id,omitempty"`
	Raw   *RawFile `json:"-"`
	Title string   `json:"title,omitempty"`
	Src   string   `json:"src,omitempty"`
}

// IsNew reports whether the file still has to be uploaded.
func (f *File) IsNew() bool {
	return f != nil && f.Raw != nil
}

// NewFile returns a file value wrapping unsaved content.
func NewFile(raw *RawFile) *File {
	return &File{Raw: raw, Title: raw.Name}
}

// ExistingFile returns a file value referencing a persisted file.
func ExistingFile(id any) *File {
	return &File{ID: id}
}
