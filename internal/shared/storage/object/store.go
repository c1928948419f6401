package object

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"rowshare-backend/internal/shared/util"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("object not found")

// Object describes a stored blob.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// NewKey builds a storage key "<namespace>/<uuid>_<sanitized name>".
func NewKey(namespace, fileName string) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	namespace = strings.Trim(strings.TrimSpace(namespace), "/")
	if namespace == "" {
		return "", errors.New("namespace is required")
	}
	return path.Join(namespace, uuid.NewString()+"_"+name), nil
}

// CleanKey normalizes a storage key and rejects traversal.
func CleanKey(key string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(key))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return clean, nil
}

// SniffContentType returns the detected MIME type of head, or fallback when
// detection only yields the generic binary type.
func SniffContentType(head []byte, fallback string) string {
	mt := mimetype.Detect(head)
	if mt.Is("application/octet-stream") && fallback != "" {
		return fallback
	}
	return mt.String()
}

// SniffReader reads enough of r to detect its content type and returns a
// reader that replays the consumed bytes.
func SniffReader(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, 3072)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("read sniff: %w", err)
	}
	head = head[:n]
	return SniffContentType(head, ""), io.MultiReader(bytes.NewReader(head), r), nil
}
