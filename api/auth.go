package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"casetrack/core"
	"casetrack/storage"
	"casetrack/util"
)

// loginRequest is the credential payload for the login endpoint
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse carries the issued token and the authenticated user
type loginResponse struct {
	Token string     `json:"token"`
	User  *core.User `json:"user"`
}

// login verifies credentials and issues a JWT. Lookup misses and password
// mismatches produce the same response so usernames cannot be probed.
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeErrorMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := a.users.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			a.logger.Errorw("Failed to look up user during login", "error", err)
			writeErrorMessage(w, http.StatusInternalServerError, "an unexpected error occurred")
			return
		}
		writeErrorMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !user.Active || !util.CheckPassword(user.PasswordHash, req.Password) {
		a.logger.Warnw("Failed login attempt", "username", req.Username)
		writeErrorMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := generateJWT(user.ID, user.Username, a.config)
	if err != nil {
		a.logger.Errorw("Failed to generate token", "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "an unexpected error occurred")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	a.logger.Infow("User logged in", "username", user.Username, "user_id", user.ID)
	writeSuccess(w, loginResponse{Token: token, User: user})
}
