package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
)

func TestStore_SaveAndInspect(t *testing.T) {
	s, err := NewStore(t.TempDir(), 1<<20)
	require.NoError(t, err)

	path, err := s.Save(DocPassport, "My Passport.PDF", bytes.NewReader(pdfBytes))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "passport_"))
	assert.True(t, strings.HasSuffix(path, ".pdf"))

	m, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, "pdf", m.Extension)
	assert.Equal(t, int64(len(pdfBytes)), m.SizeBytes)
	assert.Equal(t, "application/pdf", m.MimeType)
	assert.Nil(t, DefaultRules().Check(DocPassport, m))

	require.NoError(t, s.Remove(path))
	require.NoError(t, s.Remove(path))
}

func TestStore_RejectsEmptyAndOversized(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, 8)
	require.NoError(t, err)

	_, err = s.Save(DocPhoto, "a.png", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = s.Save(DocPhoto, "a.png", bytes.NewReader(pngBytes))
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads leave no files behind")
}

func TestRules_Check(t *testing.T) {
	rules := DefaultRules()
	cases := []struct {
		name string
		doc  string
		m    Metadata
		code string
	}{
		{"valid photo", DocPhoto, Metadata{"png", 1000, "image/png"}, ""},
		{"valid jpeg", DocPhoto, Metadata{"JPEG", 1000, "image/jpeg"}, ""},
		{"empty", DocPhoto, Metadata{"png", 0, "image/png"}, CodeInvalidFile},
		{"wrong extension", DocPassport, Metadata{"docx", 1000, "application/pdf"}, CodeInvalidFileType},
		{"photo too large", DocPhoto, Metadata{"png", 3 << 20, "image/png"}, CodeFileTooLarge},
		{"passport too large", DocPassport, Metadata{"pdf", 6 << 20, "application/pdf"}, CodeFileTooLarge},
		{"spoofed pdf", DocPassport, Metadata{"pdf", 1000, "text/plain; charset=utf-8"}, CodeInvalidMimeType},
		{"unknown document", "selfie", Metadata{"gif", 1, "image/gif"}, ""},
	}
	for _, c := range cases {
		v := rules.Check(c.doc, c.m)
		if c.code == "" {
			assert.Nil(t, v, c.name)
			continue
		}
		require.NotNil(t, v, c.name)
		assert.Equal(t, c.code, v.Code, c.name)
		assert.NotEmpty(t, v.Message, c.name)
	}

	v := rules.Check(DocPhoto, Metadata{"png", 3 << 20, "image/png"})
	assert.Equal(t, "Photo file size must not exceed 2MB", v.Message)
}

func TestMetadata_SizeMB(t *testing.T) {
	assert.Equal(t, 1.5, Metadata{SizeBytes: 3 << 19}.SizeMB())
}
