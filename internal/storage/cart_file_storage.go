package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cart-pricing-api/internal/models"
)

// CartFileStorage persists cart snapshots as JSON files in a data directory
type CartFileStorage struct {
	mu            sync.Mutex
	dataFile      string
	metaFile      string
	initializedAt time.Time
	lastSaveTime  time.Time
	cartVersion   uint64
	lineCount     int
}

// StorageMetadata holds metadata about the stored cart
type StorageMetadata struct {
	LastSaveTime  time.Time `json:"lastSaveTime"`
	InitializedAt time.Time `json:"initializedAt"`
	CartVersion   uint64    `json:"cartVersion"`
	LineCount     int       `json:"lineCount"`
}

// StorageStats provides information about the local storage
type StorageStats struct {
	LineCount     int       `json:"lineCount"`
	CartVersion   uint64    `json:"cartVersion"`
	LastSaveTime  time.Time `json:"lastSaveTime"`
	StorageSize   int64     `json:"storageSize"`
	InitializedAt time.Time `json:"initializedAt"`
}

// NewCartFileStorage creates a file-backed cart storage in dataDir
func NewCartFileStorage(dataDir string) *CartFileStorage {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		// If we can't create the directory, use current directory
		dataDir = "."
	}

	fs := &CartFileStorage{
		dataFile:      filepath.Join(dataDir, "cart.json"),
		metaFile:      filepath.Join(dataDir, "cart_metadata.json"),
		initializedAt: time.Now(),
	}

	if data, err := os.ReadFile(fs.metaFile); err == nil {
		var meta StorageMetadata
		if err := json.Unmarshal(data, &meta); err == nil {
			fs.initializedAt = meta.InitializedAt
			fs.lastSaveTime = meta.LastSaveTime
			fs.cartVersion = meta.CartVersion
			fs.lineCount = meta.LineCount
		}
	}

	return fs
}

// Load reads the stored cart lines. A missing file yields an empty cart.
func (fs *CartFileStorage) Load() ([]models.CartLine, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.dataFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cart file: %w", err)
	}

	var lines []models.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	return lines, nil
}

// Save writes the snapshot lines and metadata
func (fs *CartFileStorage) Save(snapshot models.CartSnapshot) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.MarshalIndent(snapshot.Lines, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}

	if err := writeFileAtomic(fs.dataFile, data); err != nil {
		return fmt.Errorf("failed to write cart file: %w", err)
	}

	fs.lastSaveTime = time.Now()
	fs.cartVersion = snapshot.Version
	fs.lineCount = len(snapshot.Lines)

	return fs.saveMetadata()
}

// Stats returns storage statistics
func (fs *CartFileStorage) Stats() (*StorageStats, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	stats := &StorageStats{
		LineCount:     fs.lineCount,
		CartVersion:   fs.cartVersion,
		LastSaveTime:  fs.lastSaveTime,
		InitializedAt: fs.initializedAt,
	}
	if info, err := os.Stat(fs.dataFile); err == nil {
		stats.StorageSize = info.Size()
	}
	return stats, nil
}

// saveMetadata saves only the metadata
func (fs *CartFileStorage) saveMetadata() error {
	meta := StorageMetadata{
		LastSaveTime:  fs.lastSaveTime,
		InitializedAt: fs.initializedAt,
		CartVersion:   fs.cartVersion,
		LineCount:     fs.lineCount,
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return writeFileAtomic(fs.metaFile, data)
}

// writeFileAtomic writes to a temporary file first, then renames it
func writeFileAtomic(path string, data []byte) error {
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempFile, path)
}
