// Package storage keeps uploaded onboarding documents on local disk and
// checks them against per-document rules.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrEmptyFile = errors.New("file is empty")
	ErrTooLarge  = errors.New("file size exceeds maximum allowed size")
)

// Metadata describes a stored document.
type Metadata struct {
	Extension string
	SizeBytes int64
	MimeType  string
}

// SizeMB is the size in megabytes, rounded to two decimals.
func (m Metadata) SizeMB() float64 {
	return float64(m.SizeBytes*100/(1024*1024)) / 100
}

// Store writes documents under one directory with collision-free names.
type Store struct {
	dir      string
	maxBytes int64
	now      func() time.Time
}

func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes, now: time.Now}, nil
}

// MaxBytes is the hard upload limit.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save copies r to a new file named <docType>_<uuid>_<millis><ext> and returns its path.
func (s *Store) Save(docType, originalName string, r io.Reader) (string, error) {
	name := fmt.Sprintf("%s_%s_%d%s", docType, uuid.NewString(), s.now().UnixMilli(), extension(originalName))
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", docType, err)
	}
	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	switch {
	case err != nil:
		err = fmt.Errorf("store %s: %w", docType, err)
	case n == 0:
		err = fmt.Errorf("store %s: %w", docType, ErrEmptyFile)
	case n > s.maxBytes:
		err = fmt.Errorf("store %s: %w", docType, ErrTooLarge)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// Remove deletes a stored document; a missing file is not an error.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Inspect reads metadata of a document this store wrote.
func (s *Store) Inspect(path string) (Metadata, error) { return Inspect(path) }

// Inspect reads the size, extension and sniffed MIME type of a stored document.
func Inspect(path string) (Metadata, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Metadata{}, err
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("detect mime type: %w", err)
	}
	return Metadata{
		Extension: strings.TrimPrefix(extension(path), "."),
		SizeBytes: fi.Size(),
		MimeType:  mt.String(),
	}, nil
}

func extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
