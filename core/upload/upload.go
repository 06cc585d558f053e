// Package upload describes the files users send (profile pictures, school documents).
// A File is validated once, where it enters the system; the rest of the code trusts it.
package upload

import (
	"context"
	"fmt"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"

	DefaultMaxSize int64 = 5 << 20
)

var (
	allowedMIMEs = map[Kind][]string{
		KindImage:    {"image/jpeg", "image/png", "image/gif", "image/webp"},
		KindDocument: {"application/pdf", "image/jpeg", "image/png"},
	}
	extensions = map[string]string{
		"image/jpeg":      ".jpg",
		"image/png":       ".png",
		"image/gif":       ".gif",
		"image/webp":      ".webp",
		"application/pdf": ".pdf",
	}

	errEmptyFileText    = "file is empty"
	errTooLargeText     = "file must not be larger than %d MB"
	errInvalidTypeTexts = map[Kind]string{
		KindImage:    "file must be a JPEG, PNG, GIF or WebP image",
		KindDocument: "file must be a PDF, JPEG or PNG document",
	}
)

// File is an uploaded file.
type File struct {
	Kind         Kind
	Filename     string
	Bytes        []byte
	DeclaredMIME string
}

// Store persists validated files and returns their public URL.
type Store interface {
	Save(ctx context.Context, f File) (string, error)
	// Delete removes the file saved at `url`. Unknown urls are ignored.
	Delete(ctx context.Context, url string) error
}

func New(kind Kind, filename string, content []byte, declaredMIME string) File {
	return File{
		Kind:         kind,
		Filename:     filepath.Base(filename),
		Bytes:        content,
		DeclaredMIME: declaredMIME,
	}
}

// FromMultipart reads an uploaded multipart file.
func FromMultipart(kind Kind, fh *multipart.FileHeader) (File, error) {
	f, err := fh.Open()
	if err != nil {
		return File{}, errors.Wrap(err, "opening multipart file")
	}
	defer f.Close()

	content, err := ioutil.ReadAll(f)
	if err != nil {
		return File{}, errors.Wrap(err, "reading multipart file")
	}
	return New(kind, fh.Filename, content, fh.Header.Get("Content-Type")), nil
}

// FromPath reads a file from disk.
func FromPath(kind Kind, path string) (File, error) {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrap(err, "reading file")
	}
	return New(kind, path, content, ""), nil
}

// MIME returns the sniffed content type of the file, ignoring the declared one.
func (f File) MIME() string {
	mime := http.DetectContentType(f.Bytes)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return mime
}

// Ext returns the file extension matching the sniffed content type.
func (f File) Ext() string {
	if ext, ok := extensions[f.MIME()]; ok {
		return ext
	}
	return strings.ToLower(filepath.Ext(f.Filename))
}

func (f File) IsZero() bool {
	return f.Kind == "" && len(f.Bytes) == 0 && f.Filename == ""
}

func (f File) check(maxSize int64) string {
	if len(f.Bytes) == 0 {
		return errEmptyFileText
	}
	if int64(len(f.Bytes)) > maxSize {
		return fmt.Sprintf(errTooLargeText, maxSize>>20)
	}
	allowed, ok := allowedMIMEs[f.Kind]
	if !ok {
		return fmt.Sprintf("unknown upload kind %q", f.Kind)
	}
	mime := f.MIME()
	for _, a := range allowed {
		if mime == a {
			return ""
		}
	}
	return errInvalidTypeTexts[f.Kind]
}

// Message returns the validation message of the file, "" when it is valid.
func (f File) Message(maxSize int64) string {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return f.check(maxSize)
}
