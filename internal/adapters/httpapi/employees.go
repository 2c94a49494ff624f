package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"roster/internal/core"
	"roster/pkg/domain"
)

type listResponse struct {
	Employees []core.Employee `json:"employees"`
	Count     int             `json:"count"`
}

type mutationResponse struct {
	Employee     *core.Employee   `json:"employee,omitempty"`
	Violations   []core.Violation `json:"violations,omitempty"`
	Notification string           `json:"notification"`
}

type validationResponse struct {
	Errors core.ValidationErrors `json:"errors"`
}

// criteriaFromQuery parses search, gender and status query parameters.
func criteriaFromQuery(r *http.Request) (core.Criteria, error) {
	q := r.URL.Query()
	gender, err := core.ParseGenderFilter(q.Get("gender"))
	if err != nil {
		return core.Criteria{}, err
	}
	status, err := core.ParseStatusFilter(q.Get("status"))
	if err != nil {
		return core.Criteria{}, err
	}
	return core.Criteria{Search: q.Get("search"), Gender: gender, Status: status}, nil
}

func (a *API) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	criteria, err := criteriaFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list := a.svc.ListEmployees(criteria)
	writeJSON(w, http.StatusOK, listResponse{Employees: list, Count: len(list)})
}

func (a *API) handleSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Summary())
}

func (a *API) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := a.svc.Employee(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	fields := domain.NewEmployeeFields()
	if err := decodeJSON(r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid employee payload")
		return
	}
	created, res, err := a.svc.CreateEmployee(r.Context(), fields)
	if err != nil {
		a.writeMutationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mutationResponse{Employee: &created, Violations: res.Violations, Notification: core.MsgEmployeeAdded})
}

func (a *API) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	var fields core.EmployeeFields
	if err := decodeJSON(r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid employee payload")
		return
	}
	updated, res, err := a.svc.UpdateEmployee(r.Context(), chi.URLParam(r, "id"), fields)
	if err != nil {
		a.writeMutationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Employee: &updated, Violations: res.Violations, Notification: core.MsgEmployeeUpdated})
}

func (a *API) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if _, err := a.svc.DeleteEmployee(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeMutationError(w, err)
		return
	}
	w.Header().Set("X-Notification", core.MsgEmployeeDeleted)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) writeMutationError(w http.ResponseWriter, err error) {
	var (
		verr core.ValidationError
		nf   core.ErrNotFound
		rve  core.RuleViolationError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Errors: verr.Errors})
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &rve):
		writeJSON(w, http.StatusConflict, map[string]any{"error": rve.Error(), "violations": rve.Result.Violations})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	case errors.Is(err, core.ErrEmployeesUnavailable):
		a.logger.Warn("roster unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "employees are temporarily unavailable")
	default:
		a.logger.Error("mutation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save employees")
	}
}
