package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"drawtica/internal/billing"
	"drawtica/internal/domain"
	"drawtica/internal/i18n"
)

const maxWebhookBody = 64 << 10

type planDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Credits     int    `json:"credits"`
	TierMonths  int    `json:"tier_months"`
}

func (a *App) Plans(w http.ResponseWriter, r *http.Request) {
	plans := domain.Plans()
	items := make([]planDTO, 0, len(plans))
	for _, p := range plans {
		items = append(items, planDTO{
			ID:          p.ID,
			Name:        p.Name,
			AmountMinor: p.AmountMinor,
			Currency:    p.Currency,
			Credits:     p.Credits,
			TierMonths:  p.TierMonths,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	accountID := a.currentAccountID(r)
	if accountID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", a.t(r, i18n.Unauthorized))
		return
	}
	var req struct {
		Plan string `json:"plan"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", a.t(r, i18n.BadRequest))
		return
	}
	intent, tx, err := a.Billing.CreateIntent(r.Context(), accountID, req.Plan)
	if errors.Is(err, domain.ErrUnsupportedPlan) {
		a.error(w, http.StatusBadRequest, "unsupported_plan", a.t(r, i18n.UnsupportedPlan))
		return
	}
	if err != nil {
		a.log(r).Error().Err(err).Str("account_id", accountID).Msg("create payment intent failed")
		a.error(w, http.StatusBadGateway, "payment_unavailable", a.t(r, i18n.PaymentUnavailable))
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"reference":     intent.Reference,
		"client_secret": intent.ClientSecret,
		"plan":          tx.PlanID,
		"amount_minor":  tx.AmountMinor,
		"currency":      tx.Currency,
	})
}

// PaymentWebhook applies a signed payment.succeeded event. Replays of an
// applied reference answer 200 so the sender stops retrying.
func (a *App) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", a.t(r, i18n.BadRequest))
		return
	}
	if err := billing.VerifySignature(a.Config.BillingWebhookSecret, body, r.Header.Get(billing.SignatureHeader)); err != nil {
		a.log(r).Warn().Msg("payment webhook: bad signature")
		a.error(w, http.StatusUnauthorized, "invalid_signature", a.t(r, i18n.InvalidSignature))
		return
	}
	event, err := billing.ParseEvent(body)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", a.t(r, i18n.BadRequest))
		return
	}
	if event.Type != billing.EventPaymentSucceeded {
		a.json(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if event.Reference == "" {
		a.error(w, http.StatusBadRequest, "bad_request", a.t(r, i18n.BadRequest))
		return
	}

	status, code := a.completePayment(r, event.Reference)
	if status == http.StatusOK {
		a.json(w, status, map[string]string{"status": code, "reference": event.Reference})
		return
	}
	a.error(w, status, code, a.t(r, i18n.PaymentUnavailable))
}

// PaymentCallback is where the payment page sends the browser back to. It
// completes the reference when one is given and redirects to the frontend.
func (a *App) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	result := "error"
	if ref := strings.TrimSpace(r.URL.Query().Get("reference")); ref != "" {
		if status, _ := a.completePayment(r, ref); status == http.StatusOK {
			result = "success"
		}
	}
	target := a.Config.PublicBaseURL + "/?payment=" + url.QueryEscape(result)
	http.Redirect(w, r, target, http.StatusFound)
}

func (a *App) completePayment(r *http.Request, reference string) (int, string) {
	_, err := a.Billing.Complete(r.Context(), reference)
	switch {
	case err == nil:
		return http.StatusOK, "completed"
	case errors.Is(err, domain.ErrDuplicateOperation):
		return http.StatusOK, "already_completed"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrTransactionExpired):
		return http.StatusConflict, "transaction_expired"
	case errors.Is(err, domain.ErrPaymentMismatch):
		return http.StatusConflict, "payment_mismatch"
	case errors.Is(err, domain.ErrPaymentUnavailable):
		return http.StatusServiceUnavailable, "payment_unavailable"
	default:
		a.log(r).Error().Err(err).Str("reference", reference).Msg("complete payment failed")
		return http.StatusInternalServerError, "internal"
	}
}
