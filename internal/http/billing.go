package http

import (
	"net/http"

	stripedom "lapizarra/backend/internal/domain/stripe"
	"lapizarra/backend/internal/httpjson"

	"github.com/go-chi/chi/v5"
)

func (a *api) billingRoutes(r chi.Router) {
	r.Get("/plans", a.listPlans)
	r.Get("/subscription", a.getSubscription)
	r.Post("/checkout", a.createCheckout)
	r.Post("/portal", a.createPortal)
	r.Post("/cancel", a.cancelSubscription)
	r.Post("/resume", a.resumeSubscription)
}

func (a *api) listPlans(w http.ResponseWriter, _ *http.Request) {
	httpjson.Write(w, http.StatusOK, a.Billing.Plans())
}

func (a *api) getSubscription(w http.ResponseWriter, r *http.Request) {
	out, err := a.Billing.GetSubscriptionInfo(r.Context(), caller(r).UID)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) createCheckout(w http.ResponseWriter, r *http.Request) {
	var in stripedom.CreateCheckoutInput
	if !decode(w, r, &in) {
		return
	}
	url, err := a.Billing.CreateCheckoutSession(r.Context(), caller(r).UID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"url": url})
}

func (a *api) createPortal(w http.ResponseWriter, r *http.Request) {
	var in stripedom.CreatePortalInput
	if !decode(w, r, &in) {
		return
	}
	url, err := a.Billing.CreatePortalSession(r.Context(), caller(r).UID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"url": url})
}

func (a *api) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	if err := a.Billing.CancelSubscription(r.Context(), caller(r).UID); err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"success": true})
}

func (a *api) resumeSubscription(w http.ResponseWriter, r *http.Request) {
	if err := a.Billing.ResumeSubscription(r.Context(), caller(r).UID); err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"success": true})
}
