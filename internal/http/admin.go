package http

import (
	"net/http"

	"lapizarra/backend/internal/httpjson"

	"github.com/go-chi/chi/v5"
)

// setAdminClaim grants or revokes the admin claim. RequireAdmin guards it.
func (a *api) setAdminClaim(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Admin bool `json:"admin"`
	}
	if !decode(w, r, &in) {
		return
	}
	out, err := a.Admin.SetAdminClaim(r.Context(), caller(r).UID, chi.URLParam(r, "uid"), in.Admin)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}
