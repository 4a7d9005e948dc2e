package mockapi

import (
	"net/http"
	"strings"

	"github.com/dukerupert/auctiondesk/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := a.users.GetByEmail(req.Email)
	if err != nil {
		a.internalError(w, "log in", err)
		return
	}
	if u == nil || auth.CheckPassword(u.PasswordHash, req.Password) != nil {
		writeDetail(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}

	sess, err := a.sessions.Create(u.ID, a.cfg.SessionTTL)
	if err != nil {
		a.internalError(w, "log in", err)
		return
	}
	a.logger.Info("login", "profile_id", u.ID)
	writeJSON(w, http.StatusOK, map[string]string{"token": sess.Token, "profile_id": u.ID})
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// createUser lets an admin add a staff or admin account.
func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decode(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeDetail(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleStaff
	}
	if req.Role != auth.RoleStaff && req.Role != auth.RoleAdmin {
		writeDetail(w, http.StatusBadRequest, "role must be staff or admin")
		return
	}

	existing, err := a.users.GetByEmail(req.Email)
	if err != nil {
		a.internalError(w, "create user", err)
		return
	}
	if existing != nil {
		writeDetail(w, http.StatusConflict, "email already registered")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.internalError(w, "create user", err)
		return
	}
	u, err := a.users.Create(req.Email, hash, req.Role)
	if err != nil {
		a.internalError(w, "create user", err)
		return
	}
	a.logger.Info("user created", "email", u.Email, "role", u.Role, "by", auth.UserID(r.Context()))
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}
