package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rudi77/taskforge/internal/errs"
)

// ErrorResponse is the structured error body every non-2xx response returns
// (spec §7 "Failures return structured errors").
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the taxonomy kind and a human-readable message.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusFor maps an errs.Kind to an HTTP status (spec §7 "HTTP 4xx for
// client errors like validation, 5xx for internal").
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindParamValidation, errs.KindNotApproved, errs.KindResumeValidation:
		return http.StatusBadRequest
	case errs.KindHandleNotFound, errs.KindUnknownTool:
		return http.StatusNotFound
	case errs.KindVersionConflict, errs.KindPersistenceConflict:
		return http.StatusConflict
	case errs.KindCancelled:
		return http.StatusRequestTimeout
	case errs.KindBudgetExceeded, errs.KindMaxStepsReached, errs.KindToolTimeout:
		return http.StatusUnprocessableEntity
	case errs.KindBusOverflow:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err to its taxonomy kind and writes the matching status
// and ErrorResponse body.
func writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	writeJSON(w, statusFor(kind), ErrorResponse{Error: ErrorDetail{Kind: string(kind), Message: err.Error()}})
}
