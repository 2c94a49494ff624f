package httpapi

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"roster/internal/adapters/export"
	"roster/internal/core"
)

// handlePrint renders the filtered roster. HTML opens the browser print
// dialog; other formats download as attachments.
func (a *API) handlePrint(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	criteria, err := criteriaFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	art, err := export.Render(format, export.Document{
		GeneratedAt: a.now().UTC(),
		Employees:   a.svc.ListEmployees(criteria),
		ImageURL:    imageURL,
	})
	if err != nil {
		a.logger.Error("render print view", zap.String("format", string(format)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Payload)))
	if format != export.FormatHTML {
		w.Header().Set("Content-Disposition", `attachment; filename="`+art.Filename+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Payload)
}

// imageURL maps blob payloads onto the image route.
func imageURL(payload string) string {
	if key, ok := core.BlobKey(payload); ok {
		return "/api/v1/images/" + key
	}
	return payload
}
