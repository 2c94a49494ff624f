package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"roster/internal/blob"
)

// ImageMode selects how uploaded profile images become record payloads.
type ImageMode string

const (
	// ImageModeInline embeds the image as a base64 data URI.
	ImageModeInline ImageMode = "inline"
	// ImageModeBlob stores the image in a blob store and references it.
	ImageModeBlob ImageMode = "blob"
)

const (
	// DefaultMaxImageBytes caps uploaded image size.
	DefaultMaxImageBytes int64 = 2 << 20
	// ProfileImagePrefix namespaces profile images in the blob store.
	ProfileImagePrefix = "profile-images/"
	// BlobPayloadScheme prefixes payloads that reference a blob key.
	BlobPayloadScheme = "blob://"
)

var (
	// ErrNotImage is returned for content that is not image/*.
	ErrNotImage = errors.New("uploaded file is not an image")
	// ErrImageTooLarge is returned when the upload exceeds the size cap.
	ErrImageTooLarge = errors.New("uploaded image is too large")
	// ErrNotBlobPayload is returned by Resolve for inline or external payloads.
	ErrNotBlobPayload = errors.New("payload does not reference a stored image")
)

// ImageEncoder turns uploaded image bytes into an opaque profile image payload.
type ImageEncoder struct {
	mode     ImageMode
	maxBytes int64
	blobs    blob.Store
}

// NewImageEncoder validates the mode and returns an encoder. Blob mode
// requires a blob store; maxBytes <= 0 uses DefaultMaxImageBytes.
func NewImageEncoder(mode ImageMode, maxBytes int64, blobs blob.Store) (*ImageEncoder, error) {
	if mode == "" {
		mode = ImageModeInline
	}
	switch mode {
	case ImageModeInline:
	case ImageModeBlob:
		if blobs == nil {
			return nil, errors.New("blob image mode requires a blob store")
		}
	default:
		return nil, fmt.Errorf("unknown image mode %s", mode)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &ImageEncoder{mode: mode, maxBytes: maxBytes, blobs: blobs}, nil
}

// Mode returns the encoding mode.
func (e *ImageEncoder) Mode() ImageMode { return e.mode }

// MaxBytes returns the size cap.
func (e *ImageEncoder) MaxBytes() int64 { return e.maxBytes }

// Encode reads the image from r and returns its payload. An empty or generic
// content type is replaced by the sniffed one.
func (e *ImageEncoder) Encode(ctx context.Context, r io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, e.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > e.maxBytes {
		return "", ErrImageTooLarge
	}
	ct, err := imageContentType(contentType, data)
	if err != nil {
		return "", err
	}
	if e.mode == ImageModeInline {
		return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	}
	key := ProfileImagePrefix + uuid.NewString()
	if _, err := e.blobs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{ContentType: ct}); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return BlobPayloadScheme + key, nil
}

// Resolve opens the blob referenced by a blob payload.
func (e *ImageEncoder) Resolve(ctx context.Context, payload string) (blob.Info, io.ReadCloser, error) {
	key, ok := BlobKey(payload)
	if !ok {
		return blob.Info{}, nil, ErrNotBlobPayload
	}
	if e.blobs == nil {
		return blob.Info{}, nil, fmt.Errorf("image %s: %w", key, blob.ErrNotFound)
	}
	return e.blobs.Get(ctx, key)
}

// Stat returns the metadata of the blob referenced by a blob payload.
func (e *ImageEncoder) Stat(ctx context.Context, payload string) (blob.Info, error) {
	key, ok := BlobKey(payload)
	if !ok {
		return blob.Info{}, ErrNotBlobPayload
	}
	if e.blobs == nil {
		return blob.Info{}, fmt.Errorf("image %s: %w", key, blob.ErrNotFound)
	}
	return e.blobs.Head(ctx, key)
}

// SignedURL returns a short-lived direct download URL for a blob payload
// when the backing store can serve one to clients (S3). ok is false for
// inline payloads and for stores that must be proxied.
func (e *ImageEncoder) SignedURL(ctx context.Context, payload string, expiry time.Duration) (string, bool, error) {
	key, ok := BlobKey(payload)
	if !ok || e.blobs == nil || e.blobs.Driver() != blob.DriverS3 {
		return "", false, nil
	}
	url, err := e.blobs.PresignURL(ctx, key, blob.SignedURLOptions{Method: http.MethodGet, Expiry: expiry})
	if err != nil {
		return "", false, err
	}
	return url, true, nil
}

// Discard deletes the blob referenced by payload. Inline and external
// payloads are ignored; deleted reports whether a blob was removed.
func (e *ImageEncoder) Discard(ctx context.Context, payload string) (bool, error) {
	key, ok := BlobKey(payload)
	if !ok || e.blobs == nil {
		return false, nil
	}
	return e.blobs.Delete(ctx, key)
}

// Prune deletes stored profile images that no payload in inUse references
// and returns the removed keys.
func (e *ImageEncoder) Prune(ctx context.Context, inUse []string) ([]string, error) {
	if e.blobs == nil {
		return nil, nil
	}
	referenced := make(map[string]struct{}, len(inUse))
	for _, payload := range inUse {
		if key, ok := BlobKey(payload); ok {
			referenced[key] = struct{}{}
		}
	}
	infos, err := e.blobs.List(ctx, ProfileImagePrefix)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	var removed []string
	for _, info := range infos {
		if _, ok := referenced[info.Key]; ok {
			continue
		}
		deleted, err := e.blobs.Delete(ctx, info.Key)
		if err != nil {
			return removed, fmt.Errorf("delete image %s: %w", info.Key, err)
		}
		if deleted {
			removed = append(removed, info.Key)
		}
	}
	return removed, nil
}

// BlobKey extracts the blob key from a blob payload.
func BlobKey(payload string) (string, bool) {
	if !strings.HasPrefix(payload, BlobPayloadScheme) {
		return "", false
	}
	key := strings.TrimPrefix(payload, BlobPayloadScheme)
	return key, key != ""
}

func imageContentType(declared string, data []byte) (string, error) {
	ct := declared
	if ct != "" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil {
			ct = parsed
		}
	}
	if ct == "" || ct == "application/octet-stream" {
		ct, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	if !strings.HasPrefix(ct, "image/") {
		return "", ErrNotImage
	}
	return ct, nil
}
