package http

import (
	"net/http"

	"lapizarra/backend/internal/domain/notifications"
	"lapizarra/backend/internal/domain/user"
	"lapizarra/backend/internal/httpjson"

	"github.com/go-chi/chi/v5"
)

func (a *api) userRoutes(r chi.Router) {
	r.Get("/", a.getMe)
	r.Patch("/", a.updateMe)
	r.Post("/device-tokens", a.registerDeviceToken)
	r.Post("/referral", a.redeemReferral)
	r.Get("/favorites", a.listFavorites)
	r.Post("/favorites/{exerciseId}", a.toggleFavorite)
	r.Get("/invitations", a.listMyInvitations)
	r.Get("/notifications", a.listNotifications)
	r.Post("/notifications/read", a.markNotificationsRead)
	r.Delete("/notifications/{notificationId}", a.deleteNotification)
}

// getMe returns the caller's profile, creating it on first sign-in.
func (a *api) getMe(w http.ResponseWriter, r *http.Request) {
	au := caller(r)
	name, _ := au.Claims["name"].(string)
	p, err := a.Users.EnsureProfile(r.Context(), au.UID, au.Email, name)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{
		"profile": p,
		"admin":   au.Admin(),
	})
}

func (a *api) updateMe(w http.ResponseWriter, r *http.Request) {
	var in user.UpdateProfileInput
	if !decode(w, r, &in) {
		return
	}
	p, err := a.Users.UpdateProfile(r.Context(), caller(r).UID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, p)
}

func (a *api) registerDeviceToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if !decode(w, r, &in) {
		return
	}
	if err := a.Users.RegisterDeviceToken(r.Context(), caller(r).UID, in.Token); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) redeemReferral(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code string `json:"code"`
	}
	if !decode(w, r, &in) {
		return
	}
	if err := a.Users.RedeemReferral(r.Context(), caller(r).UID, in.Code); err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"success": true})
}

func (a *api) listFavorites(w http.ResponseWriter, r *http.Request) {
	au := caller(r)
	out, err := a.Users.ListFavorites(r.Context(), au.UID, au.Admin())
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	au := caller(r)
	out, err := a.Users.ToggleFavorite(r.Context(), au.UID, au.Admin(), chi.URLParam(r, "exerciseId"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) listMyInvitations(w http.ResponseWriter, r *http.Request) {
	out, err := a.Invitations.ListMine(r.Context(), invitee(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) listNotifications(w http.ResponseWriter, r *http.Request) {
	out, err := a.Notifications.GetNotifications(r.Context(), caller(r).UID, queryBool(r, "unread"), queryInt(r, "limit"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	var in notifications.MarkReadInput
	if !decode(w, r, &in) {
		return
	}
	n, err := a.Notifications.MarkRead(r.Context(), caller(r).UID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"updated": n})
}

func (a *api) deleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := a.Notifications.DeleteNotification(r.Context(), caller(r).UID, chi.URLParam(r, "notificationId")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
