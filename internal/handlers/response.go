package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"activity-storefront/internal/middleware"
	"activity-storefront/internal/models"
	"activity-storefront/internal/services"
	"activity-storefront/internal/wizard"

	"go.uber.org/zap"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// Response is the success envelope for every JSON endpoint
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: true, Message: message})
}

// decodeJSON reads a single JSON document into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty: %w", models.ErrInvalidInput)
		}
		return fmt.Errorf("invalid JSON body: %w", models.ErrInvalidInput)
	}
	return nil
}

// statusFor maps a service error to its HTTP status and client message.
func statusFor(err error) (int, string) {
	var stepErr *wizard.StepError
	switch {
	case errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrLocationNotFound),
		errors.Is(err, models.ErrStudentNotFound),
		errors.Is(err, models.ErrBookingNotFound),
		errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrStaffNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, models.ErrCapacityExceeded),
		errors.Is(err, models.ErrBookingTerminal),
		errors.Is(err, models.ErrOrderClosed),
		errors.Is(err, models.ErrDuplicateEntry):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrInvalidSignature):
		return http.StatusBadRequest, "Invalid signature"
	case errors.Is(err, services.ErrPaymentProvider):
		return http.StatusBadGateway, "Payment provider unavailable"
	case errors.As(err, &stepErr),
		errors.Is(err, wizard.ErrUnknownKind),
		errors.Is(err, wizard.ErrUnknownPackage),
		errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, models.ErrCartInvalid),
		errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// respondError writes err as an error envelope, logging unexpected failures.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var verrs models.ValidationErrors
	if errors.As(err, &verrs) {
		middleware.WriteError(w, http.StatusBadRequest, "Validation failed", verrs.Fields())
		return
	}

	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err))
	}
	middleware.WriteError(w, status, message, nil)
}
