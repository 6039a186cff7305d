package http

import (
	"net/http"

	"lapizarra/backend/internal/domain/members"
	"lapizarra/backend/internal/httpjson"

	"github.com/go-chi/chi/v5"
)

func (a *api) invitationRoutes(r chi.Router) {
	r.Post("/{invitationId}/accept", a.acceptInvitation)
	r.Post("/{invitationId}/decline", a.declineInvitation)
	r.Delete("/{invitationId}", a.revokeInvitation)
}

func (a *api) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	out, err := a.Invitations.Accept(r.Context(), invitee(r), chi.URLParam(r, "invitationId"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) declineInvitation(w http.ResponseWriter, r *http.Request) {
	out, err := a.Invitations.Decline(r.Context(), invitee(r), chi.URLParam(r, "invitationId"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func invitee(r *http.Request) members.Invitee {
	au := caller(r)
	return members.Invitee{UID: au.UID, Email: au.Email, EmailVerified: au.EmailVerified}
}

func (a *api) revokeInvitation(w http.ResponseWriter, r *http.Request) {
	if err := a.Invitations.Revoke(r.Context(), caller(r).UID, chi.URLParam(r, "invitationId")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
