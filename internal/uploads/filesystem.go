package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore persists images onto the local filesystem. It is intended for
// development and single-node deployments where an object storage service is
// not available. Each image is written next to a small JSON sidecar holding
// its metadata.
type FileStore struct {
	basePath string
}

type fileMeta struct {
	MIMEType string    `json:"mime_type"`
	Filename string    `json:"filename"`
	StoredAt time.Time `json:"stored_at"`
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("uploads: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("uploads: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

func (s *FileStore) Put(ctx context.Context, key Key, img Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return err
	}
	img = prepare(img)
	meta, err := json.Marshal(fileMeta{MIMEType: img.MIMEType, Filename: img.Filename, StoredAt: img.StoredAt})
	if err != nil {
		return fmt.Errorf("uploads: encode metadata: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return fmt.Errorf("uploads: ensure directory: %w", err)
	}
	if err := writeFileAtomic(dataPath, img.Data); err != nil {
		return err
	}
	return writeFileAtomic(metaPath, meta)
}

func (s *FileStore) Get(ctx context.Context, key Key) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("uploads: read file: %w", err)
	}
	img := &Image{Data: data, MIMEType: "application/octet-stream"}
	if raw, err := os.ReadFile(metaPath); err == nil {
		var meta fileMeta
		if err := json.Unmarshal(raw, &meta); err == nil {
			img.MIMEType = meta.MIMEType
			img.Filename = meta.Filename
			img.StoredAt = meta.StoredAt
		}
	}
	return img, nil
}

func (s *FileStore) paths(key Key) (string, string, error) {
	if s == nil {
		return "", "", errors.New("uploads: no store configured")
	}
	rel, err := key.Path()
	if err != nil {
		return "", "", err
	}
	clean, err := sanitizeKey(rel)
	if err != nil {
		return "", "", err
	}
	full := filepath.Join(s.basePath, filepath.FromSlash(clean))
	return full + ".bin", full + ".json", nil
}

// writeFileAtomic writes through a uniquely named temp file in the target
// directory, so concurrent writers of one key never share a file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("uploads: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("uploads: write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("uploads: write file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("uploads: chmod file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("uploads: replace file: %w", err)
	}
	return nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("uploads: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("uploads: invalid key")
	}
	return cleaned, nil
}
