package httpapi

import (
	"net/http"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/shared/models"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh"`
}

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var body models.RegisterRequest
	if !r.decodeJSON(w, req, &body) {
		return
	}
	user, err := r.services.Auth.Register(req.Context(), body)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.ProfileResponse{Data: user})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body models.LoginRequest
	if !r.decodeJSON(w, req, &body) {
		return
	}
	tokens, err := r.services.Auth.Login(req.Context(), body.Username, body.Password)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (r *Router) handleRefresh(w http.ResponseWriter, req *http.Request) {
	var body refreshRequest
	if !r.decodeJSON(w, req, &body) {
		return
	}
	tokens, err := r.services.Auth.Refresh(req.Context(), body.RefreshToken)
	if err != nil {
		r.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (r *Router) handleProfile(w http.ResponseWriter, req *http.Request) {
	user, err := r.services.Auth.Profile(req.Context(), getUserID(req.Context()))
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, models.ProfileResponse{Data: user})
}
