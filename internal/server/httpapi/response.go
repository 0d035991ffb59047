package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// APIResponse is the envelope of every JSON response. Kind is the
// machine-checkable error class and is empty on success.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, APIResponse{Success: true, Data: data})
}

// writeError reports err with the status of its kind and its public message.
func writeError(w http.ResponseWriter, err error) {
	kind := common.KindOf(err)
	writeEnvelope(w, statusOf(kind), APIResponse{
		Error: common.PublicMessage(err),
		Kind:  kind.String(),
	})
}

func writeErrorMessage(w http.ResponseWriter, status int, kind common.Kind, msg string) {
	writeEnvelope(w, status, APIResponse{Error: msg, Kind: kind.String()})
}

func writeEnvelope(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func statusOf(kind common.Kind) int {
	switch kind {
	case common.KindValidation, common.KindInvalidCredentials:
		return http.StatusBadRequest
	case common.KindTokenInvalid:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
