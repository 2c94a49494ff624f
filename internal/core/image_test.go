package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"roster/internal/blob"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestInlineImageEncoding(t *testing.T) {
	enc, err := NewImageEncoder("", 0, nil)
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	if enc.Mode() != ImageModeInline || enc.MaxBytes() != DefaultMaxImageBytes {
		t.Fatalf("unexpected defaults %s %d", enc.Mode(), enc.MaxBytes())
	}
	payload, err := enc.Encode(context.Background(), bytes.NewReader(pngHeader), "")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(payload, "data:image/png;base64,") {
		t.Fatalf("unexpected payload %q", payload)
	}
	if _, _, err := enc.Resolve(context.Background(), payload); !errors.Is(err, ErrNotBlobPayload) {
		t.Fatalf("inline payload should not resolve, got %v", err)
	}
}

func TestImageEncoderRejectsNonImagesAndLargeUploads(t *testing.T) {
	enc, _ := NewImageEncoder(ImageModeInline, 16, nil)
	ctx := context.Background()
	if _, err := enc.Encode(ctx, strings.NewReader("hello"), "text/plain"); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected not image, got %v", err)
	}
	if _, err := enc.Encode(ctx, strings.NewReader("plain text"), ""); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected sniffed text to be rejected, got %v", err)
	}
	if _, err := enc.Encode(ctx, bytes.NewReader(make([]byte, 17)), "image/png"); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected too large, got %v", err)
	}
	if payload, err := enc.Encode(ctx, bytes.NewReader(make([]byte, 16)), "image/gif; charset=binary"); err != nil || !strings.HasPrefix(payload, "data:image/gif;base64,") {
		t.Fatalf("expected declared type to win, got %q %v", payload, err)
	}
}

func TestBlobImageEncodingRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := blob.Open(ctx, blob.Config{Driver: blob.DriverMemory})
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	enc, err := NewImageEncoder(ImageModeBlob, 0, store)
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	payload, err := enc.Encode(ctx, bytes.NewReader(pngHeader), "image/png")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	key, ok := BlobKey(payload)
	if !ok || !strings.HasPrefix(key, ProfileImagePrefix) {
		t.Fatalf("unexpected payload %q", payload)
	}
	info, rc, err := enc.Resolve(ctx, payload)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if !bytes.Equal(data, pngHeader) || info.ContentType != "image/png" {
		t.Fatalf("unexpected blob %q %+v", data, info)
	}
	if _, _, err := enc.Resolve(ctx, BlobPayloadScheme+ProfileImagePrefix+"missing"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewImageEncoderValidation(t *testing.T) {
	if _, err := NewImageEncoder(ImageModeBlob, 0, nil); err == nil {
		t.Fatalf("blob mode without a store must fail")
	}
	if _, err := NewImageEncoder("thumbnail", 0, nil); err == nil {
		t.Fatalf("unknown mode must fail")
	}
	if _, ok := BlobKey("blob://"); ok {
		t.Fatalf("empty key must not parse")
	}
}

func TestServiceUploadImage(t *testing.T) {
	enc, _ := NewImageEncoder(ImageModeInline, 0, nil)
	svc, _, metrics, _ := newTestService(t, WithImageEncoder(enc))
	payload, err := svc.UploadImage(context.Background(), bytes.NewReader(pngHeader), "image/png")
	if err != nil || !strings.HasPrefix(payload, "data:image/png") {
		t.Fatalf("upload: %q %v", payload, err)
	}
	if svc.Images() != enc || !metrics.has(OpUploadImage, true) {
		t.Fatalf("expected upload to be observed")
	}
	if _, err := svc.UploadImage(context.Background(), strings.NewReader("nope"), "text/plain"); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected wrapped not image, got %v", err)
	}
}

type failingDeleteStore struct {
	blob.Store
}

func (failingDeleteStore) Delete(context.Context, string) (bool, error) {
	return false, errors.New("bucket unavailable")
}

func newBlobImageService(t *testing.T, blobs blob.Store, opts ...ServiceOption) *Service {
	t.Helper()
	enc, err := NewImageEncoder(ImageModeBlob, 0, blobs)
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	svc, _, _, _ := newTestService(t, append([]ServiceOption{WithImageEncoder(enc)}, opts...)...)
	return svc
}

func openMemoryBlobs(t *testing.T) blob.Store {
	t.Helper()
	store, err := blob.Open(context.Background(), blob.Config{Driver: blob.DriverMemory})
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	return store
}

func uploadPNG(t *testing.T, svc *Service) string {
	t.Helper()
	payload, err := svc.UploadImage(context.Background(), bytes.NewReader(pngHeader), "image/png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return payload
}

func blobExists(t *testing.T, blobs blob.Store, payload string) bool {
	t.Helper()
	key, ok := BlobKey(payload)
	if !ok {
		t.Fatalf("not a blob payload %q", payload)
	}
	_, err := blobs.Head(context.Background(), key)
	if err != nil && !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("head %s: %v", key, err)
	}
	return err == nil
}

func TestDeleteEmployeeReleasesBlobImage(t *testing.T) {
	ctx := context.Background()
	blobs := openMemoryBlobs(t)
	svc := newBlobImageService(t, blobs)

	fields := sampleFields()
	fields.ProfileImage = uploadPNG(t, svc)
	created, _, err := svc.CreateEmployee(ctx, fields)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !blobExists(t, blobs, fields.ProfileImage) {
		t.Fatalf("image should exist while referenced")
	}
	if _, err := svc.DeleteEmployee(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if blobExists(t, blobs, fields.ProfileImage) {
		t.Fatalf("image should be deleted with its employee")
	}
}

func TestUpdateEmployeeReleasesReplacedBlobImage(t *testing.T) {
	ctx := context.Background()
	blobs := openMemoryBlobs(t)
	svc := newBlobImageService(t, blobs)

	fields := sampleFields()
	first := uploadPNG(t, svc)
	fields.ProfileImage = first
	created, _, err := svc.CreateEmployee(ctx, fields)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fields.IsActive = !fields.IsActive
	if _, _, err := svc.UpdateEmployee(ctx, created.ID, fields); err != nil {
		t.Fatalf("update keeping image: %v", err)
	}
	if !blobExists(t, blobs, first) {
		t.Fatalf("unchanged image must be kept")
	}

	second := uploadPNG(t, svc)
	fields.ProfileImage = second
	if _, _, err := svc.UpdateEmployee(ctx, created.ID, fields); err != nil {
		t.Fatalf("update replacing image: %v", err)
	}
	if blobExists(t, blobs, first) {
		t.Fatalf("replaced image should be deleted")
	}
	if !blobExists(t, blobs, second) {
		t.Fatalf("new image must be kept")
	}

	fields.ProfileImage = ""
	if _, _, err := svc.UpdateEmployee(ctx, created.ID, fields); err != nil {
		t.Fatalf("update clearing image: %v", err)
	}
	if blobExists(t, blobs, second) {
		t.Fatalf("cleared image should be deleted")
	}
}

func TestSharedBlobImageKeptWhileReferenced(t *testing.T) {
	ctx := context.Background()
	blobs := openMemoryBlobs(t)
	svc := newBlobImageService(t, blobs)

	fields := sampleFields()
	fields.ProfileImage = uploadPNG(t, svc)
	a, _, err := svc.CreateEmployee(ctx, fields)
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	fields.FullName = "Second Holder"
	if _, _, err := svc.CreateEmployee(ctx, fields); err != nil {
		t.Fatalf("create b: %v", err)
	}
	if _, err := svc.DeleteEmployee(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !blobExists(t, blobs, fields.ProfileImage) {
		t.Fatalf("image still referenced by another employee must be kept")
	}
}

func TestImageReleaseFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	blobs := failingDeleteStore{Store: openMemoryBlobs(t)}
	obsCore, logs := observer.New(zap.WarnLevel)
	svc := newBlobImageService(t, blobs, WithLogger(zap.New(obsCore)))

	fields := sampleFields()
	fields.ProfileImage = uploadPNG(t, svc)
	created, _, err := svc.CreateEmployee(ctx, fields)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.DeleteEmployee(ctx, created.ID); err != nil {
		t.Fatalf("delete must succeed when the image cannot be released: %v", err)
	}
	if _, err := svc.Employee(created.ID); err == nil {
		t.Fatalf("employee should be gone")
	}
	if logs.FilterMessage("release image failed").Len() != 1 {
		t.Fatalf("expected release failure to be logged, got %v", logs.All())
	}
}

func TestPruneImagesRemovesUnreferencedBlobs(t *testing.T) {
	ctx := context.Background()
	blobs := openMemoryBlobs(t)
	svc := newBlobImageService(t, blobs)

	fields := sampleFields()
	fields.ProfileImage = uploadPNG(t, svc)
	if _, _, err := svc.CreateEmployee(ctx, fields); err != nil {
		t.Fatalf("create: %v", err)
	}
	orphan := uploadPNG(t, svc)

	removed, err := svc.PruneImages(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	orphanKey, _ := BlobKey(orphan)
	if len(removed) != 1 || removed[0] != orphanKey {
		t.Fatalf("unexpected pruned keys %v", removed)
	}
	if blobExists(t, blobs, orphan) || !blobExists(t, blobs, fields.ProfileImage) {
		t.Fatalf("prune should only remove the unattached upload")
	}

	inline, _ := NewImageEncoder(ImageModeInline, 0, nil)
	plain, _, _, _ := newTestService(t, WithImageEncoder(inline))
	if removed, err := plain.PruneImages(ctx); err != nil || len(removed) != 0 {
		t.Fatalf("inline mode prune should be a no-op, got %v %v", removed, err)
	}
	bare, _, _, _ := newTestService(t)
	if _, err := bare.PruneImages(ctx); !errors.Is(err, ErrImagesDisabled) {
		t.Fatalf("expected images disabled, got %v", err)
	}
}
