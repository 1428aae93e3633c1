package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	devicedomain "github.com/micro-ha/ble-scanner/internal/domain/device"
	userdomain "github.com/micro-ha/ble-scanner/internal/domain/user"
)

// CreateUser registers a new account.
func (a *API) CreateUser(w http.ResponseWriter, r *http.Request) {
	var payload userdomain.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	user, err := a.users.CreateUser(r.Context(), payload)
	if err != nil {
		a.writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetUser returns one account by id.
func (a *API) GetUser(w http.ResponseWriter, r *http.Request, rawID string) {
	id, ok := parseID(w, rawID)
	if !ok {
		return
	}
	user, err := a.users.GetUser(r.Context(), id)
	if err != nil {
		a.writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Login checks credentials and returns the account.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var payload userdomain.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	user, err := a.users.Authenticate(r.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, userdomain.ErrUserNotFound) {
			err = userdomain.ErrInvalidCredentials
		}
		a.writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) writeUserError(w http.ResponseWriter, err error) {
	var vErr *devicedomain.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "invalid_user", vErr.Error())
	case errors.Is(err, userdomain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", "User not found")
	case errors.Is(err, userdomain.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username_taken", err.Error())
	case errors.Is(err, userdomain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
	default:
		a.logger.Error("user request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "user_failed", "Internal server error")
	}
}
