package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/tasker/internal/models"
	"github.com/ternarybob/tasker/internal/services/tasks"
)

// maxBodyBytes bounds request bodies read by decodeJSON
const maxBodyBytes = 1 << 20

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteMessage writes a {"message": ...} response.
func WriteMessage(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"message": message,
	})
}

// WriteError writes a {"detail": ...} error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"detail": message,
	})
}

// decodeJSON reads a JSON request body into dst; every failure is returned as a *models.SchemaError
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return models.NewSchemaError("body", tasks.MsgRequestBodyRequired)
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		var syntaxErr *json.SyntaxError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return models.NewSchemaError("body", tasks.MsgRequestBodyRequired)
		case errors.As(err, &typeErr):
			return models.NewSchemaError(typeErr.Field, fmt.Sprintf("Input should be a valid %s", typeErr.Type.Kind()))
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return models.NewSchemaError("body", "JSON decode error")
		case errors.As(err, &maxErr):
			return models.NewSchemaError("body", "Request body too large")
		default:
			return models.NewSchemaError("body", err.Error())
		}
	}
	return nil
}

// writeServiceError maps service errors onto the API's status codes; fallback is the 500 message
func (h *TaskHandler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var schemaErr *models.SchemaError
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &schemaErr):
		WriteError(w, http.StatusUnprocessableEntity, schemaErr.Message)
	case errors.As(err, &validationErr):
		WriteError(w, http.StatusBadRequest, validationErr.Message)
	default:
		h.logger.Error().Err(err).Msg(fallback)
		WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// pathID returns the single path segment after prefix, or "" when the path has more segments
func pathID(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	id = strings.TrimSuffix(id, "/")
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
