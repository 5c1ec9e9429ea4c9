// Package storage manages scan images and derived crops on the filesystem.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const croppedDir = "cropped"

// Storage writes and reads raster files under a shared root.
// Crops live in {root}/cropped/{id}.jpg so repeated writes for an id overwrite one file.
type Storage struct {
	root string
}

// New creates the root and cropped directories if needed
func New(root string) (*Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root cannot be empty")
	}
	if err := os.MkdirAll(filepath.Join(root, croppedDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directories: %w", err)
	}
	return &Storage{root: root}, nil
}

// Root returns the storage root
func (s *Storage) Root() string {
	return s.root
}

// SaveUpload stores an uploaded scan image and returns its path
func (s *Storage) SaveUpload(filename string, r io.Reader) (string, error) {
	base := filepath.Base(filepath.Clean("/" + filename))
	if base == "/" || base == "." {
		base = "scan"
	}
	path := filepath.Join(s.root, uuid.NewString()+"_"+base)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close upload: %w", err)
	}
	return path, nil
}

// CroppedPath returns the stable crop location for id
func (s *Storage) CroppedPath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid crop id %q", id)
	}
	return filepath.Join(s.root, croppedDir, id+".jpg"), nil
}

// SaveCropped writes crop data for id, replacing any previous crop
func (s *Storage) SaveCropped(id string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("image data cannot be empty")
	}
	path, err := s.CroppedPath(id)
	if err != nil {
		return "", err
	}

	// write-then-rename so readers never see a partial file
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+id+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp crop: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write crop: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close crop: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move crop into place: %w", err)
	}
	return path, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Storage) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// PublicURL maps a stored path to its /uploads URL
func (s *Storage) PublicURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http") {
		return path
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "/uploads/" + filepath.Base(path)
	}
	return "/uploads/" + filepath.ToSlash(rel)
}
