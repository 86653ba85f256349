package middleware

import (
	"encoding/json"
	"net/http"
)

// rejection is the body written when a middleware stops a request. It carries
// success=false so storefront clients can read it like any OTP result.
type rejection struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// writeJSONError writes a rejection with the given status.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rejection{Message: msg, Error: http.StatusText(status)})
}
