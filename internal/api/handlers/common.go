// internal/api/handlers/common.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"internship-portal/internal/api/middleware"
	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/common/validation"
	"internship-portal/internal/models"
)

// decodeJSON validates the request body against schema before decoding it
// into dst.
func decodeJSON(r *http.Request, v *validation.Validator, schema string, dst interface{}) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.NewValidationFailedError("request body too large", map[string]string{"body": "too large"})
		}
		return apperrors.NewValidationFailedError("unreadable request body", map[string]string{"body": err.Error()})
	}
	if err := v.Validate(schema, raw); err != nil {
		return err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.NewValidationFailedError("invalid request body", map[string]string{"body": err.Error()})
	}
	return nil
}

// idFromPath returns the path segment at index, counting from the first
// segment after the leading slash.
func idFromPath(r *http.Request, index int) (string, error) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if index >= len(parts) || strings.TrimSpace(parts[index]) == "" {
		return "", apperrors.NewValidationFailedError("missing id in path", map[string]string{"id": "required"})
	}
	return parts[index], nil
}

func principal(r *http.Request) (models.Principal, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return models.Principal{}, apperrors.NewUnauthorizedError("not authenticated")
	}
	return p, nil
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
