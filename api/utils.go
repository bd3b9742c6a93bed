package api

import (
	"encoding/json"
	"net/http"

	"ExpenseCertify/api/constants"
	"ExpenseCertify/internal/logger"
)

// RespondWithError writes {"success": false, "error": errMsg} with status.
func RespondWithError(w http.ResponseWriter, status int, errMsg string) {
	logger.Component("api").WithField("status", status).Warn(errMsg)
	w.Header().Set(constants.ContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errMsg,
	})
}

// RespondWithResult sends a consistent JSON response for success or error
func RespondWithResult(w http.ResponseWriter, success bool, errMsg string) {
	w.Header().Set(constants.ContentType, constants.ContentTypeJSON)
	if success {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
		return
	}
	logger.Component("api").Warn(errMsg)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": errMsg})
}

// RespondWithPayload sends a consistent JSON response and includes an arbitrary payload
func RespondWithPayload(w http.ResponseWriter, success bool, errMsg string, payload interface{}) {
	RespondWithStatus(w, http.StatusOK, success, errMsg, payload)
}

// RespondWithStatus is RespondWithPayload with an explicit status code.
func RespondWithStatus(w http.ResponseWriter, status int, success bool, errMsg string, payload interface{}) {
	w.Header().Set(constants.ContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	resp := map[string]interface{}{"success": success}
	if !success && errMsg != "" {
		resp["error"] = errMsg
		logger.Component("api").Warn(errMsg)
	}
	if payload != nil {
		// use a conventional key `rows` for list payloads
		resp["rows"] = payload
	}
	json.NewEncoder(w).Encode(resp)
}

// RespondWithFields reports per-field validation failures with status 400.
func RespondWithFields(w http.ResponseWriter, errMsg string, fields map[string]string) {
	w.Header().Set(constants.ContentType, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errMsg,
		"fields":  fields,
	})
}
