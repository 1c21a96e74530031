package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// maxErrorMessageLength caps messages sent to clients.
const maxErrorMessageLength = 500

var (
	connStringPattern = regexp.MustCompile(`(?:postgres|postgresql|sqlite|redis|file)://[^\s"']+`)
	filePathPattern   = regexp.MustCompile(`(?:[A-Za-z]:\\|/)(?:[^\\/:*?"<>|\s]+[\\/])+[^\\/:*?"<>|\s]+`)
	secretPattern     = regexp.MustCompile(`(?i)(password|secret|token|key|credential)[:=]\s*["']?[^"'\s]+["']?`)
	goroutinePattern  = regexp.MustCompile(`(?m)^goroutine \d+.*$`)
	logControlPattern = regexp.MustCompile(`[\r\n\t]`)
)

// ErrorResponse is the JSON body of every error answered by the API.
type ErrorResponse struct {
	Error     string      `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// sanitizeErrorMessage removes sensitive information from error messages before sending to clients
func sanitizeErrorMessage(message string) string {
	message = connStringPattern.ReplaceAllString(message, "[DATABASE_CONNECTION]")
	message = filePathPattern.ReplaceAllString(message, "[FILE_PATH]")
	message = secretPattern.ReplaceAllString(message, "$1=[REDACTED]")
	message = goroutinePattern.ReplaceAllString(message, "[STACK_TRACE]")

	if len(message) > maxErrorMessageLength {
		message = message[:maxErrorMessageLength-3] + "..."
	}
	return message
}

// sanitizeLogMessage strips control characters so user input cannot forge log lines.
func sanitizeLogMessage(message string) string {
	return logControlPattern.ReplaceAllString(message, " ")
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an error response to the client and logs it with proper sanitization.
// The full error is logged server side; the client only sees the sanitized message.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error, logger *zap.SugaredLogger) {
	WriteErrorDetails(w, r, statusCode, message, nil, err, logger)
}

// WriteErrorDetails is WriteError with a structured details payload (validation failures).
func WriteErrorDetails(w http.ResponseWriter, r *http.Request, statusCode int, message string, details interface{}, err error, logger *zap.SugaredLogger) {
	requestID := ""
	if r != nil {
		requestID = GetRequestIDOrDefault(r.Context())
	}

	if logger != nil {
		fields := []interface{}{"status_code", statusCode, "request_id", requestID}
		if err != nil {
			fields = append(fields, "error", err.Error())
		}
		if statusCode >= http.StatusInternalServerError {
			logger.Errorw(message, fields...)
		} else {
			logger.Debugw(message, fields...)
		}
	}

	WriteJSON(w, statusCode, ErrorResponse{
		Error:     sanitizeErrorMessage(message),
		RequestID: requestID,
		Details:   details,
	})
}

// DecodeJSON decodes a JSON request body with a size limit into dst.
// On failure the error response has already been written and the error is returned.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, maxBytes int64, logger *zap.SugaredLogger) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	err := decoder.Decode(dst)
	if err == nil {
		return nil
	}

	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError

	switch {
	case errors.As(err, &maxBytesError):
		WriteError(w, r, http.StatusRequestEntityTooLarge, "Request body too large", err, logger)
	case errors.As(err, &syntaxError):
		WriteError(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON syntax at byte offset %d", syntaxError.Offset), err, logger)
	case errors.As(err, &unmarshalTypeError):
		WriteError(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid type for field '%s': expected %s", unmarshalTypeError.Field, unmarshalTypeError.Type), err, logger)
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		WriteError(w, r, http.StatusBadRequest, "JSON contains "+strings.TrimPrefix(err.Error(), "json: "), err, logger)
	default:
		WriteError(w, r, http.StatusBadRequest, "Invalid JSON body", err, logger)
	}
	return err
}

// getRealIP extracts the client IP. Forwarding headers are honored only when
// trustProxy is set and the direct peer is inside trustedNetworks; any other
// peer is identified by its socket address.
func getRealIP(r *http.Request, trustProxy bool, trustedNetworks []string) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}
	if !trustProxy || !isTrustedProxy(directIP, trustedNetworks) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

// isTrustedProxy reports whether ip falls in one of the trusted networks.
// Entries are CIDRs or single addresses.
func isTrustedProxy(ip string, trustedNetworks []string) bool {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, network := range trustedNetworks {
		if strings.Contains(network, "/") {
			_, ipNet, err := net.ParseCIDR(network)
			if err == nil && ipNet.Contains(parsedIP) {
				return true
			}
			continue
		}
		if trusted := net.ParseIP(network); trusted != nil && trusted.Equal(parsedIP) {
			return true
		}
	}
	return false
}
