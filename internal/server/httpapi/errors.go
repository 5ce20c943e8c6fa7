package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/repository"
	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/server/service"
)

const invalidOTPMessage = "Invalid OTP. Please try again or resend."

// writeError maps service and repository errors to a status and message.
func (r *Router) writeError(w http.ResponseWriter, err error) {
	var (
		verr     *service.ValidationError
		terr     *service.TransitionError
		throttle *service.ThrottleError
		maxBytes *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		writeMessage(w, http.StatusBadRequest, verr.Message)
	case errors.As(err, &terr):
		writeMessage(w, http.StatusConflict, terr.Error())
	case errors.As(err, &throttle):
		w.Header().Set("Retry-After", strconv.Itoa(int((throttle.RetryAfter+time.Second-1)/time.Second)))
		writeMessage(w, http.StatusTooManyRequests, throttle.Error())
	case errors.As(err, &maxBytes), errors.Is(err, service.ErrPhotoTooLarge):
		writeMessage(w, http.StatusRequestEntityTooLarge, "request entity too large")
	case errors.Is(err, repository.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "meeting not found")
	case errors.Is(err, service.ErrInvalidOTP):
		writeMessage(w, http.StatusBadRequest, invalidOTPMessage)
	case errors.Is(err, service.ErrOTPExpired), errors.Is(err, service.ErrPhotoNotAllowed):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnsupportedMedia):
		writeMessage(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, service.ErrAccountExists):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		writeMessage(w, http.StatusUnauthorized, err.Error())
	default:
		r.logger.Printf("internal error: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a size-limited JSON body into v and answers the request
// itself when that fails.
func (r *Router) decodeJSON(w http.ResponseWriter, req *http.Request, v any) bool {
	if r.opts.MaxRequestBytes > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxRequestBytes)
	}
	err := json.NewDecoder(req.Body).Decode(v)
	if err == nil {
		return true
	}
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		writeMessage(w, http.StatusBadRequest, "empty body")
	case errors.As(err, &maxBytes):
		writeMessage(w, http.StatusRequestEntityTooLarge, "request entity too large")
	default:
		writeMessage(w, http.StatusBadRequest, "invalid json")
	}
	return false
}
