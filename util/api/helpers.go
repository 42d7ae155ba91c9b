package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	apperrors "partyhub/errors"
)

var validate = validator.New()

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeError maps the domain error taxonomy onto the REST status classes.
func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("Internal error: %v", err)
	}
	writeJSON(w, status, errorResponse{Message: err.Error()})
}

// decodeAndValidate decodes the JSON body into v and runs the struct
// validation tags.
func decodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", apperrors.ErrValidation)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%v: %w", err, apperrors.ErrValidation)
	}
	return nil
}
