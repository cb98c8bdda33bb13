package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"casetrack/core"

	"go.uber.org/zap"
)

// successResponse is the envelope for all 2xx responses.
type successResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// errorResponse is the envelope for all non-2xx responses. Errors carries
// per-field messages for validation failures and is omitted otherwise.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// writeJSON serializes v with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeSuccess writes a 200 success envelope around data.
func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, successResponse{Status: "success", Data: data})
}

// writeCreated writes a 201 success envelope around data.
func writeCreated(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, successResponse{Status: "success", Data: data})
}

// writeErrorMessage writes an error envelope with a plain message.
func writeErrorMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Status: "error", Message: message})
}

// writeError maps a pipeline error onto a response class. The taxonomy is
// translated exactly once, here: validation and business failures are 400,
// denials 403, missing objects 404, everything else a generic 500. The full
// error is logged; unexpected detail never reaches the client.
func writeError(w http.ResponseWriter, err error, logger *zap.SugaredLogger) {
	var (
		ve *core.ValidationError
		nf *core.ObjectNotFoundError
		ad *core.AccessDeniedError
		be *core.BusinessProcessingError
	)

	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Status:  "error",
			Message: ve.Message,
			Errors:  ve.FieldErrors,
		})
	case errors.As(err, &be):
		writeErrorMessage(w, http.StatusBadRequest, be.Message)
	case errors.As(err, &ad):
		writeErrorMessage(w, http.StatusForbidden, "access denied")
	case errors.As(err, &nf):
		writeErrorMessage(w, http.StatusNotFound, nf.Error())
	default:
		if logger != nil {
			logger.Errorw("Unexpected error handling request", "error", err)
		}
		writeErrorMessage(w, http.StatusInternalServerError, "an unexpected error occurred")
	}
}
