// internal/api/response/response.go
package response

import (
	"encoding/json"
	"net/http"

	apperrors "internship-portal/internal/common/errors"
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code     apperrors.ErrorCode    `json:"code"`
	Message  string                 `json:"message"`
	Details  string                 `json:"details,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes err using its StandardError code and status. Infrastructure
// failures are reported without their details.
func Error(w http.ResponseWriter, err error) {
	se := apperrors.Normalize(err)
	status := se.HTTPStatus()
	payload := errorPayload{Code: se.Code, Message: se.Message, Details: se.Details, Metadata: se.Metadata}
	if se.Kind() == apperrors.KindInfrastructure {
		payload.Details = ""
		payload.Metadata = nil
	}
	if se.Code == apperrors.ErrCodeRateLimited {
		w.Header().Set("Retry-After", "60")
	}
	JSON(w, status, errorBody{Error: payload})
}
