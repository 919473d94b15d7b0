package iconcache

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is the unit persisted per icon.
type Entry struct {
	Bytes       []byte
	ContentType string
	SourceURL   string
	StoredAt    time.Time
}

// recordHeader is the metadata half of an on-disk record. It is stored as a
// single JSON line followed by the raw image bytes, so one rename commits
// bytes, content type and source URL together.
type recordHeader struct {
	ContentType string    `json:"content_type"`
	SourceURL   string    `json:"source_url"`
	Size        int64     `json:"size"`
	StoredAt    time.Time `json:"stored_at"`
}

const recordExt = ".icon"

// FileStore persists icon entries on disk.
// Structure: {root}/{platform}/{identifier}.icon
//
// Writes for distinct keys run concurrently under the read lock; Clear takes
// the write lock, so it waits for all in-flight writes before removing
// anything (wait-then-clear policy).
type FileStore struct {
	mu   sync.RWMutex
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache root: %w", err)
	}

	return &FileStore{root: root}, nil
}

func (s *FileStore) recordPath(key Key) string {
	return filepath.Join(s.root, key.Platform(), key.Identifier()+recordExt)
}

// Lookup returns the entry stored for key, or ErrNotFound. A truncated or
// otherwise unreadable record is reported as a miss rather than surfacing
// mismatched fields.
func (s *FileStore) Lookup(key Key) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.recordPath(key))
	if err != nil {
		return nil, ErrNotFound
	}

	return decodeRecord(data)
}

func decodeRecord(data []byte) (*Entry, error) {
	nl := bytes.IndexByte(data, '\n')
	if nl < 0 {
		return nil, ErrNotFound
	}

	var hdr recordHeader
	if err := json.Unmarshal(data[:nl], &hdr); err != nil {
		return nil, ErrNotFound
	}

	blob := data[nl+1:]
	if int64(len(blob)) != hdr.Size {
		return nil, ErrNotFound
	}

	return &Entry{
		Bytes:       blob,
		ContentType: hdr.ContentType,
		SourceURL:   hdr.SourceURL,
		StoredAt:    hdr.StoredAt,
	}, nil
}

// Write commits a new entry for key, replacing any previous one, and returns
// the entry as committed. The record is written to a temporary file and
// renamed into place, so concurrent lookups see either the old entry or the
// new one, never a partial write.
func (s *FileStore) Write(key Key, imageBytes []byte, contentType, sourceURL string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recordPath := s.recordPath(key)
	if err := os.MkdirAll(filepath.Dir(recordPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	storedAt := time.Now().UTC()
	hdr, err := json.Marshal(recordHeader{
		ContentType: contentType,
		SourceURL:   sourceURL,
		Size:        int64(len(imageBytes)),
		StoredAt:    storedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	record := make([]byte, 0, len(hdr)+1+len(imageBytes))
	record = append(record, hdr...)
	record = append(record, '\n')
	record = append(record, imageBytes...)

	tmpPath := recordPath + ".tmp"
	if err := os.WriteFile(tmpPath, record, 0644); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	if err := os.Rename(tmpPath, recordPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	return &Entry{
		Bytes:       imageBytes,
		ContentType: contentType,
		SourceURL:   sourceURL,
		StoredAt:    storedAt,
	}, nil
}

// Clear removes every entry. It blocks until in-flight writes finish.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("%w: %v", ErrClearFailed, err)
	}
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrClearFailed, err)
	}

	return nil
}

// TotalSize sums the image byte lengths recorded across all stored entries.
// Header/metadata bytes are excluded, so the total equals the sum of blob
// sizes exactly. Records vanishing mid-walk (a concurrent clear) are skipped.
func (s *FileStore) TotalSize() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	platforms, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache root: %w", err)
	}

	var total int64
	for _, platform := range platforms {
		if !platform.IsDir() {
			continue
		}

		records, err := os.ReadDir(filepath.Join(s.root, platform.Name()))
		if err != nil {
			continue
		}

		for _, record := range records {
			if record.IsDir() || !strings.HasSuffix(record.Name(), recordExt) {
				continue
			}

			size, err := readRecordSize(filepath.Join(s.root, platform.Name(), record.Name()))
			if err != nil {
				continue
			}
			total += size
		}
	}

	return total, nil
}

func readRecordSize(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && err != io.EOF {
		return 0, err
	}

	var hdr recordHeader
	if err := json.Unmarshal(bytes.TrimSuffix(line, []byte{'\n'}), &hdr); err != nil {
		return 0, err
	}

	return hdr.Size, nil
}
