// Package uploads keeps parent images keyed by user, child session and role
// until a generation request references them.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when no image is stored under a key.
var ErrNotFound = errors.New("uploads: image not found")

// Default key parts applied when a client omits them.
const (
	DefaultUserID   = "default-user"
	DefaultChildKey = "default-key"
	DefaultRole     = "unknown"
	RoleAging       = "aging"
)

// Key identifies one stored image.
type Key struct {
	UserID   string
	ChildKey string
	Role     string
}

// NewKey trims the parts and substitutes defaults for blank ones.
func NewKey(userID, childKey, role string) Key {
	k := Key{
		UserID:   strings.TrimSpace(userID),
		ChildKey: strings.TrimSpace(childKey),
		Role:     strings.ToLower(strings.TrimSpace(role)),
	}
	if k.UserID == "" {
		k.UserID = DefaultUserID
	}
	if k.ChildKey == "" {
		k.ChildKey = DefaultChildKey
	}
	if k.Role == "" {
		k.Role = DefaultRole
	}
	return k
}

// Path renders the key as a slash separated relative path. Each part must be
// a single safe segment.
func (k Key) Path() (string, error) {
	parts := []string{k.UserID, k.ChildKey, k.Role}
	for _, p := range parts {
		if err := validSegment(p); err != nil {
			return "", err
		}
	}
	return path.Join(parts...), nil
}

func (k Key) String() string {
	return k.UserID + "/" + k.ChildKey + "/" + k.Role
}

func validSegment(s string) error {
	switch {
	case s == "", s == ".", s == "..":
		return fmt.Errorf("uploads: invalid key segment %q", s)
	case strings.ContainsAny(s, "/\\\x00"):
		return fmt.Errorf("uploads: key segment %q contains a separator", s)
	}
	return nil
}

// Image is an uploaded image with its declared metadata.
type Image struct {
	Data     []byte
	MIMEType string
	Filename string
	StoredAt time.Time
}

// Store persists images by key. Writing an existing key replaces it.
type Store interface {
	Put(ctx context.Context, key Key, img Image) error
	Get(ctx context.Context, key Key) (*Image, error)
}

// URLProvider is implemented by stores that can hand out a URL the
// generation service can fetch directly.
type URLProvider interface {
	URL(ctx context.Context, key Key) (string, error)
}

func prepare(img Image) Image {
	if img.MIMEType == "" {
		img.MIMEType = "application/octet-stream"
	}
	if img.StoredAt.IsZero() {
		img.StoredAt = time.Now().UTC()
	}
	return img
}
