package httpapi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"roster/internal/core"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool       `json:"authenticated"`
	User          *core.User `json:"user,omitempty"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid login payload")
		return
	}
	user, err := a.svc.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: &user})
	case errors.Is(err, core.ErrEmptyCredentials):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "login cancelled")
	default:
		a.logger.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to login")
	}
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Logout(r.Context()); err != nil {
		a.logger.Warn("logout failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSession(w http.ResponseWriter, _ *http.Request) {
	user, ok := a.svc.CurrentUser()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, sessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: &user})
}
