package storage

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func fileHeader(t *testing.T, name string, data []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("photo", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["photo"][0]
}

func TestSaveImage(t *testing.T) {
	root := t.TempDir()
	store := NewLocal(root, 1024)

	url, err := store.SaveImage("guards", fileHeader(t, "me.png", pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/guards/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	data, err := os.ReadFile(filepath.Join(root, strings.TrimPrefix(url, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)

	require.NoError(t, store.Remove(url))
	_, err = os.Stat(filepath.Join(root, strings.TrimPrefix(url, "/uploads/")))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveImage_Rejects(t *testing.T) {
	store := NewLocal(t.TempDir(), 16)

	_, err := store.SaveImage("guards", fileHeader(t, "notes.txt", []byte("plain text")))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = store.SaveImage("guards", fileHeader(t, "big.png", append(pngHeader, make([]byte, 64)...)))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestSave_PrefixCannotEscapeRoot(t *testing.T) {
	root := t.TempDir()
	store := NewLocal(root, 1024)

	url, err := store.Save("../../etc", ".txt", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/etc/"))
	_, err = os.Stat(filepath.Join(root, "etc"))
	assert.NoError(t, err)
}
