package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// maxJSONBody caps generation and control request bodies
const maxJSONBody = 1 << 20

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
	// Error carries the first message so clients reading {"error": ...} still get one
	Error string `json:"error,omitempty"`
}

// respondJSON writes a JSON body with the given status
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Warn("Failed to encode response")
	}
}

// respondWithValidationError sends a structured validation error response
func (s *Server) respondWithValidationError(w http.ResponseWriter, r *http.Request, errors []ValidationError) {
	s.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"errors": errors,
	}).Warn("Validation failed")

	result := ValidationResult{
		Valid:  false,
		Errors: errors,
	}
	if len(errors) > 0 {
		result.Error = errors[0].Message
	}
	s.respondJSON(w, http.StatusBadRequest, result)
}

// respondWithError sends a structured error response
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logEntry := s.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	s.respondJSON(w, statusCode, map[string]interface{}{
		"error":   message,
		"code":    statusCode,
		"success": false,
	})
}

// respondSuccess sends {"success": true, "message": ...}
func (s *Server) respondSuccess(w http.ResponseWriter, message string) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": message,
	})
}

// decodeJSON reads a size-limited JSON body into v
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondWithValidationError(w, r, []ValidationError{{
			Field:   "body",
			Message: "Request body must be valid JSON",
			Code:    "INVALID_JSON",
		}})
		return false
	}
	return true
}

// validateAssetID validates an id taken from the URL path
func validateAssetID(id string) *ValidationError {
	id = sanitizeInput(id)
	if id == "" {
		return &ValidationError{
			Field:   "id",
			Message: "ID is required",
			Code:    "MISSING_ID",
		}
	}
	if len(id) > 128 {
		return &ValidationError{
			Field:   "id",
			Message: "ID too long (max 128 characters)",
			Code:    "ID_TOO_LONG",
		}
	}
	return nil
}

// validateGain validates a mixer gain value
func validateGain(gain *int) *ValidationError {
	if gain == nil {
		return &ValidationError{
			Field:   "gain",
			Message: "Gain is required",
			Code:    "MISSING_GAIN",
		}
	}
	if *gain < 0 || *gain > 100 {
		return &ValidationError{
			Field:   "gain",
			Message: "Gain must be between 0 and 100",
			Code:    "GAIN_OUT_OF_RANGE",
		}
	}
	return nil
}

// validateRecharge validates a credit top-up amount
func validateRecharge(amount, max int) *ValidationError {
	if amount <= 0 {
		return &ValidationError{
			Field:   "amount",
			Message: "Amount must be positive",
			Code:    "INVALID_AMOUNT",
		}
	}
	if max > 0 && amount > max {
		return &ValidationError{
			Field:   "amount",
			Message: "Amount exceeds the recharge limit",
			Code:    "AMOUNT_TOO_LARGE",
		}
	}
	return nil
}

// sanitizeInput sanitizes user input to prevent injection attacks
func sanitizeInput(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
