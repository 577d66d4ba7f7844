// Package storage archives document version snapshots and cached
// illustrative images, on the local filesystem or S3-compatible object
// storage.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backend abstracts the two storage implementations. Paths returned by
// Save methods are relative keys, resolvable by the same backend only.
type Backend interface {
	SaveDocument(content, slug string) (string, error)
	SaveImage(imageData []byte, slug, contentType string) (string, error)
	ReadDocument(path string) (string, error)
	ReadImage(path string) ([]byte, error)
	DeleteDocument(path string) error
	DeleteImage(path string) error
	GetFullPath(path string) string
}

// Config contains filesystem storage configuration
type Config struct {
	BasePath string // Base directory for all stored files
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		BasePath: "./storage",
	}
}

// Storage handles filesystem storage operations
type Storage struct {
	config Config
}

// New creates a new Storage instance
func New(config Config) (*Storage, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory: %w", err)
	}

	return &Storage{
		config: config,
	}, nil
}

// SaveDocument archives one document version as markdown.
// Returns the relative file path from the base storage directory.
func (s *Storage) SaveDocument(content, slug string) (string, error) {
	// Directory structure: documents/YYYY/MM/
	now := time.Now()
	year := fmt.Sprintf("%04d", now.Year())
	month := fmt.Sprintf("%02d", int(now.Month()))

	dirPath := filepath.Join(s.config.BasePath, "documents", year, month)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create document directory: %w", err)
	}

	filename := slug + ".md"
	filePath := filepath.Join(dirPath, filename)

	// Keep earlier snapshots; suffix until unique
	counter := 1
	for fileExists(filePath) {
		filename = fmt.Sprintf("%s-%d.md", slug, counter)
		filePath = filepath.Join(dirPath, filename)
		counter++
	}

	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write document file: %w", err)
	}

	relPath, err := filepath.Rel(s.config.BasePath, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}

	return relPath, nil
}

// SaveImage caches a downloaded candidate image.
// Returns the relative file path from the base storage directory.
func (s *Storage) SaveImage(imageData []byte, slug, contentType string) (string, error) {
	ext := extensionFromContentType(contentType)
	if ext == "" {
		ext = ".jpg" // Default extension
	}

	// Directory structure: images/YYYY/MM/
	now := time.Now()
	year := fmt.Sprintf("%04d", now.Year())
	month := fmt.Sprintf("%02d", int(now.Month()))

	dirPath := filepath.Join(s.config.BasePath, "images", year, month)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	filename := slug + ext
	filePath := filepath.Join(dirPath, filename)

	counter := 1
	for fileExists(filePath) {
		filename = fmt.Sprintf("%s-%d%s", slug, counter, ext)
		filePath = filepath.Join(dirPath, filename)
		counter++
	}

	if err := os.WriteFile(filePath, imageData, 0644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	relPath, err := filepath.Rel(s.config.BasePath, filePath)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path: %w", err)
	}

	return relPath, nil
}

// ReadDocument reads an archived document version from the filesystem
func (s *Storage) ReadDocument(relPath string) (string, error) {
	fullPath := filepath.Join(s.config.BasePath, relPath)

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to read document file: %w", err)
	}

	return string(data), nil
}

// ReadImage reads a cached image from the filesystem
func (s *Storage) ReadImage(relPath string) ([]byte, error) {
	fullPath := filepath.Join(s.config.BasePath, relPath)

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}

	return data, nil
}

// DeleteDocument deletes an archived document version
func (s *Storage) DeleteDocument(relPath string) error {
	fullPath := filepath.Join(s.config.BasePath, relPath)

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete document file: %w", err)
	}

	return nil
}

// DeleteImage deletes a cached image
func (s *Storage) DeleteImage(relPath string) error {
	fullPath := filepath.Join(s.config.BasePath, relPath)

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image file: %w", err)
	}

	return nil
}

// GetFullPath returns the full filesystem path for a relative path
func (s *Storage) GetFullPath(relPath string) string {
	return filepath.Join(s.config.BasePath, relPath)
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// extensionFromContentType returns the file extension for a content type
func extensionFromContentType(contentType string) string {
	contentType = strings.ToLower(strings.Split(contentType, ";")[0])
	contentType = strings.TrimSpace(contentType)

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
