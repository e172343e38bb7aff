// Package storage keeps uploaded files on local disk under a public /uploads prefix.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const PublicPrefix = "/uploads"

var (
	ErrTooLarge        = errors.New("file is too large")
	ErrUnsupportedType = errors.New("only JPEG, PNG and WebP images are allowed")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type Local struct {
	root     string
	maxBytes int64
}

func NewLocal(root string, maxBytes int64) *Local {
	return &Local{root: root, maxBytes: maxBytes}
}

func (l *Local) Root() string {
	return l.root
}

// Save writes r to <root>/<prefix>/<uuid><ext> and returns its public URL.
func (l *Local) Save(prefix, ext string, r io.Reader) (string, error) {
	dir := filepath.Join(l.root, filepath.Clean("/"+prefix))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + ext
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}

	return PublicPrefix + "/" + strings.Trim(filepath.ToSlash(filepath.Clean("/"+prefix)), "/") + "/" + name, nil
}

// SaveImage validates size and sniffed content type before saving.
func (l *Local) SaveImage(prefix string, fh *multipart.FileHeader) (string, error) {
	if fh.Size > l.maxBytes {
		return "", ErrTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	ext, ok := imageExtensions[http.DetectContentType(head)]
	if !ok {
		return "", ErrUnsupportedType
	}

	body := io.MultiReader(bytes.NewReader(head), io.LimitReader(src, l.maxBytes-int64(n)+1))
	return l.Save(prefix, ext, body)
}

// Remove deletes a file previously returned by Save. Unknown URLs are ignored.
func (l *Local) Remove(url string) error {
	if !strings.HasPrefix(url, PublicPrefix+"/") {
		return nil
	}
	rel := filepath.Clean("/" + strings.TrimPrefix(url, PublicPrefix+"/"))
	err := os.Remove(filepath.Join(l.root, rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
