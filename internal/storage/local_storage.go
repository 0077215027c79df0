package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type LocalStorage struct {
	basePath string
	maxSize  int64
}

// NewLocalStorage stages files under basePath. A positive maxSize rejects
// files larger than maxSize bytes.
func NewLocalStorage(basePath string, maxSize int64) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, maxSize: maxSize}, nil
}

// ErrTooLarge is returned when a staged file exceeds the size limit.
var ErrTooLarge = errors.New("file exceeds upload size limit")

func (ls *LocalStorage) SaveFile(file io.Reader, info FileInfo) (string, error) {
	ext := strings.ToLower(filepath.Ext(info.Filename))
	if ext == "" {
		ext = ".bin"
	}

	filename := fmt.Sprintf("%s%s", uuid.New().String(), ext)
	fullPath := filepath.Join(ls.basePath, filename)

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	src := file
	if ls.maxSize > 0 {
		src = io.LimitReader(file, ls.maxSize+1)
	}

	n, err := io.Copy(dst, src)
	if err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if ls.maxSize > 0 && n > ls.maxSize {
		os.Remove(fullPath)
		return "", ErrTooLarge
	}

	return filename, nil
}

func (ls *LocalStorage) OpenFile(path string) (io.ReadSeekCloser, error) {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid path")
	}

	fullPath := filepath.Join(ls.basePath, cleanPath)
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

func (ls *LocalStorage) DeleteFile(path string) error {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("invalid path")
	}

	fullPath := filepath.Join(ls.basePath, cleanPath)
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}
