package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

const photoField = "file"

func (r *Router) handleListMeetings(w http.ResponseWriter, req *http.Request) {
	meetings, err := r.services.Meetings.List(req.Context(), getUserID(req.Context()))
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meetings)
}

func (r *Router) handleCreateMeeting(w http.ResponseWriter, req *http.Request) {
	var body models.CreateMeetingRequest
	if !r.decodeJSON(w, req, &body) {
		return
	}
	m, err := r.services.Meetings.Create(req.Context(), getUserID(req.Context()), body)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (r *Router) handleGetMeeting(w http.ResponseWriter, req *http.Request) {
	m, err := r.services.Meetings.Get(req.Context(), getUserID(req.Context()), chi.URLParam(req, "uid"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (r *Router) handleDeleteMeeting(w http.ResponseWriter, req *http.Request) {
	if err := r.services.Meetings.Delete(req.Context(), getUserID(req.Context()), chi.URLParam(req, "uid")); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleMarkInProgress(w http.ResponseWriter, req *http.Request) {
	m, err := r.services.Meetings.MarkInProgress(req.Context(), getUserID(req.Context()), chi.URLParam(req, "uid"))
	r.metrics.transition(models.EventStart, err)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.metrics.otpOp("issue", nil)
	writeJSON(w, http.StatusOK, m)
}

func (r *Router) handleMarkCompleted(w http.ResponseWriter, req *http.Request) {
	var body models.MarkCompletedRequest
	if !r.decodeJSON(w, req, &body) {
		return
	}
	m, err := r.services.Meetings.MarkCompleted(req.Context(), getUserID(req.Context()), chi.URLParam(req, "uid"), body.OTPCode)
	r.metrics.transition(models.EventComplete, err)
	r.metrics.otpOp("verify", err)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (r *Router) handleMarkCancelled(w http.ResponseWriter, req *http.Request) {
	m, err := r.services.Meetings.MarkCancelled(req.Context(), getUserID(req.Context()), chi.URLParam(req, "uid"))
	r.metrics.transition(models.EventCancel, err)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (r *Router) handleGenerateOTP(w http.ResponseWriter, req *http.Request) {
	err := r.services.Meetings.GenerateOTP(req.Context(), getUserID(req.Context()), chi.URLParam(req, "uid"))
	r.metrics.otpOp("issue", err)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "OTP sent")
}

func (r *Router) handleResendOTP(w http.ResponseWriter, req *http.Request) {
	err := r.services.Meetings.ResendOTP(req.Context(), getUserID(req.Context()), chi.URLParam(req, "uid"))
	r.metrics.otpOp("resend", err)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "OTP resent")
}

func (r *Router) handleUploadPhoto(w http.ResponseWriter, req *http.Request) {
	if r.opts.MaxUploadBytes > 0 {
		// multipart framing needs a little room beyond the file itself
		req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxUploadBytes+64<<10)
	}
	file, header, err := req.FormFile(photoField)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			r.writeError(w, err)
			return
		}
		writeMessage(w, http.StatusBadRequest, "a photo is required in the \"file\" field")
		return
	}
	defer file.Close()
	photo, err := r.services.Meetings.UploadPhoto(req.Context(), getUserID(req.Context()), chi.URLParam(req, "uid"), header.Filename, file)
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.metrics.photos.Inc()
	writeJSON(w, http.StatusCreated, photo)
}
