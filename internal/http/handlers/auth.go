package handlers

import (
	"errors"
	"net/http"
	"time"

	"drawtica/internal/domain"
	"drawtica/internal/i18n"
	"drawtica/internal/identity"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type accountDTO struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name,omitempty"`
	Credits       int        `json:"credits"`
	Tier          string     `json:"tier"`
	TierExpiresAt *time.Time `json:"tier_expires_at,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     time.Time  `json:"created_at"`
}

type sessionResponse struct {
	User    accountDTO `json:"user"`
	Token   string     `json:"token"`
	Message string     `json:"message,omitempty"`
}

func toAccountDTO(acc *domain.Account) accountDTO {
	return accountDTO{
		ID:            acc.ID,
		Email:         acc.Email,
		Name:          acc.Name,
		Credits:       acc.Credits,
		Tier:          string(acc.Tier),
		TierExpiresAt: acc.TierExpiresAt,
		EmailVerified: acc.EmailVerified,
		CreatedAt:     acc.CreatedAt,
	}
}

func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", a.t(r, i18n.BadRequest))
		return
	}
	session, err := a.Identity.Register(r.Context(), identity.Registration{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrMissingCredentials):
		a.error(w, http.StatusBadRequest, "bad_request", a.t(r, i18n.CredentialsRequired))
		return
	case errors.Is(err, domain.ErrWeakPassword):
		a.error(w, http.StatusBadRequest, "weak_password", a.t(r, i18n.WeakPassword))
		return
	case errors.Is(err, domain.ErrEmailTaken):
		a.error(w, http.StatusBadRequest, "email_taken", a.t(r, i18n.EmailTaken))
		return
	default:
		a.log(r).Error().Err(err).Msg("register failed")
		a.error(w, http.StatusInternalServerError, "internal", a.t(r, i18n.InternalError))
		return
	}
	a.json(w, http.StatusCreated, sessionResponse{
		User:    toAccountDTO(session.Account),
		Token:   session.Token,
		Message: a.t(r, i18n.Registered),
	})
}

func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", a.t(r, i18n.BadRequest))
		return
	}
	if req.Email == "" || req.Password == "" {
		a.error(w, http.StatusBadRequest, "bad_request", a.t(r, i18n.CredentialsRequired))
		return
	}
	session, err := a.Identity.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, domain.ErrUnauthorized) {
		a.error(w, http.StatusUnauthorized, "invalid_credentials", a.t(r, i18n.InvalidCredentials))
		return
	}
	if err != nil {
		a.log(r).Error().Err(err).Msg("login failed")
		a.error(w, http.StatusInternalServerError, "internal", a.t(r, i18n.InternalError))
		return
	}
	a.json(w, http.StatusOK, sessionResponse{User: toAccountDTO(session.Account), Token: session.Token})
}

func (a *App) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	account, err := a.Identity.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusBadRequest, "invalid_token", a.t(r, i18n.InvalidToken))
		return
	}
	if err != nil {
		a.log(r).Error().Err(err).Msg("verify email failed")
		a.error(w, http.StatusInternalServerError, "internal", a.t(r, i18n.InternalError))
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"message": a.t(r, i18n.EmailVerified),
		"user":    toAccountDTO(account),
	})
}

func (a *App) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", a.t(r, i18n.BadRequest))
		return
	}
	if req.Email == "" {
		a.error(w, http.StatusBadRequest, "bad_request", a.t(r, i18n.EmailRequired))
		return
	}
	if err := a.Identity.RequestPasswordReset(r.Context(), req.Email); err != nil {
		a.log(r).Error().Err(err).Msg("password reset request failed")
		a.error(w, http.StatusInternalServerError, "internal", a.t(r, i18n.InternalError))
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": a.t(r, i18n.ResetRequested)})
}

func (a *App) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", a.t(r, i18n.BadRequest))
		return
	}
	if req.Token == "" || req.Password == "" {
		a.error(w, http.StatusBadRequest, "bad_request", a.t(r, i18n.TokenAndPassword))
		return
	}
	err := a.Identity.ResetPassword(r.Context(), req.Token, req.Password)
	switch {
	case err == nil:
		a.json(w, http.StatusOK, map[string]string{"message": a.t(r, i18n.PasswordUpdated)})
	case errors.Is(err, domain.ErrWeakPassword):
		a.error(w, http.StatusBadRequest, "weak_password", a.t(r, i18n.WeakPassword))
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusBadRequest, "invalid_token", a.t(r, i18n.InvalidToken))
	default:
		a.log(r).Error().Err(err).Msg("password reset failed")
		a.error(w, http.StatusInternalServerError, "internal", a.t(r, i18n.InternalError))
	}
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	accountID := a.currentAccountID(r)
	if accountID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", a.t(r, i18n.Unauthorized))
		return
	}
	account, err := a.Identity.AccountByID(r.Context(), accountID)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusUnauthorized, "unauthorized", a.t(r, i18n.Unauthorized))
		return
	}
	if err != nil {
		a.log(r).Error().Err(err).Msg("load account failed")
		a.error(w, http.StatusInternalServerError, "internal", a.t(r, i18n.InternalError))
		return
	}
	a.json(w, http.StatusOK, toAccountDTO(account))
}
