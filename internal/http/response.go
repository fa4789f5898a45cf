package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/example/bikerides/internal/directory"
)

const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeInternal   = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, detail ErrorDetail) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: detail})
}

// handleError maps directory errors onto HTTP responses.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *directory.ValidationError
	var nf *directory.NotFoundError
	switch {
	case errors.As(err, &ve):
		respondError(w, r, http.StatusBadRequest, ErrorDetail{Code: CodeValidation, Message: ve.Error(), Field: ve.Field})
	case errors.As(err, &nf):
		respondError(w, r, http.StatusNotFound, ErrorDetail{Code: CodeNotFound, Message: nf.Error()})
	default:
		respondError(w, r, http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: "internal server error"})
	}
}
