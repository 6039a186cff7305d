package http

import (
	"net/http"

	"lapizarra/backend/internal/domain/session"
	"lapizarra/backend/internal/httpjson"

	"github.com/go-chi/chi/v5"
)

func (a *api) sessionRoutes(r chi.Router) {
	r.Get("/", a.listSessions)
	r.Post("/", a.createSession)
	r.Get("/{sessionId}", a.getSession)
	r.Patch("/{sessionId}", a.updateSession)
	r.Delete("/{sessionId}", a.deleteSession)
	r.Post("/{sessionId}/duplicate", a.duplicateSession)
}

func (a *api) listSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := a.Sessions.List(r.Context(), caller(r).UID, session.ListSessionsInput{
		TeamID: q.Get("teamId"),
		From:   q.Get("from"),
		To:     q.Get("to"),
		Limit:  queryInt(r, "limit"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) createSession(w http.ResponseWriter, r *http.Request) {
	var in session.CreateSessionInput
	if !decode(w, r, &in) {
		return
	}
	au := caller(r)
	out, err := a.Sessions.Create(r.Context(), au.UID, au.Admin(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, out)
}

func (a *api) getSession(w http.ResponseWriter, r *http.Request) {
	out, err := a.Sessions.Get(r.Context(), caller(r).UID, chi.URLParam(r, "sessionId"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) updateSession(w http.ResponseWriter, r *http.Request) {
	var in session.UpdateSessionInput
	if !decode(w, r, &in) {
		return
	}
	au := caller(r)
	out, err := a.Sessions.Update(r.Context(), au.UID, au.Admin(), chi.URLParam(r, "sessionId"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.Sessions.Delete(r.Context(), caller(r).UID, chi.URLParam(r, "sessionId")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) duplicateSession(w http.ResponseWriter, r *http.Request) {
	var in session.DuplicateInput
	if !decode(w, r, &in) {
		return
	}
	au := caller(r)
	out, err := a.Sessions.Duplicate(r.Context(), au.UID, au.Admin(), chi.URLParam(r, "sessionId"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, out)
}
