package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"roster/internal/blob"
	"roster/internal/core"
)

type uploadResponse struct {
	Payload string `json:"payload"`
}

func (a *API) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	images := a.svc.Images()
	if images == nil {
		writeError(w, http.StatusNotImplemented, core.ErrImagesDisabled.Error())
		return
	}
	// Multipart framing adds overhead on top of the image itself.
	r.Body = http.MaxBytesReader(w, r.Body, images.MaxBytes()+64<<10)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, core.ErrImageTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"image\" is required")
		return
	}
	defer file.Close()
	payload, err := a.svc.UploadImage(r.Context(), file, header.Header.Get("Content-Type"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, uploadResponse{Payload: payload})
	case errors.Is(err, core.ErrNotImage):
		writeError(w, http.StatusUnsupportedMediaType, core.ErrNotImage.Error())
	case errors.Is(err, core.ErrImageTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, core.ErrImageTooLarge.Error())
	default:
		a.logger.Error("image upload failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store image")
	}
}

// imageURLExpiry bounds presigned redirects for S3-backed images.
const imageURLExpiry = 15 * time.Minute

func (a *API) handleGetImage(w http.ResponseWriter, r *http.Request) {
	images := a.svc.Images()
	key := chi.URLParam(r, "*")
	if images == nil || key == "" {
		writeError(w, http.StatusNotFound, "image not found")
		return
	}
	payload := core.BlobPayloadScheme + key
	if _, err := images.Stat(r.Context(), payload); err != nil {
		a.imageLookupFailed(w, key, err)
		return
	}
	url, ok, err := images.SignedURL(r.Context(), payload, imageURLExpiry)
	if err != nil {
		a.logger.Warn("presign image failed, proxying", zap.String("key", key), zap.Error(err))
	}
	if ok {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	info, rc, err := images.Resolve(r.Context(), payload)
	if err != nil {
		a.imageLookupFailed(w, key, err)
		return
	}
	defer rc.Close()
	setImageHeaders(w, info)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (a *API) handleHeadImage(w http.ResponseWriter, r *http.Request) {
	images := a.svc.Images()
	key := chi.URLParam(r, "*")
	if images == nil || key == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	info, err := images.Stat(r.Context(), core.BlobPayloadScheme+key)
	if err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			a.logger.Warn("image lookup failed", zap.String("key", key), zap.Error(err))
		}
		w.WriteHeader(http.StatusNotFound)
		return
	}
	setImageHeaders(w, info)
	w.WriteHeader(http.StatusOK)
}

func (a *API) imageLookupFailed(w http.ResponseWriter, key string, err error) {
	if !errors.Is(err, blob.ErrNotFound) {
		a.logger.Warn("image lookup failed", zap.String("key", key), zap.Error(err))
	}
	writeError(w, http.StatusNotFound, "image not found")
}

func setImageHeaders(w http.ResponseWriter, info blob.Info) {
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.ETag != "" {
		w.Header().Set("ETag", `"`+info.ETag+`"`)
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
}
