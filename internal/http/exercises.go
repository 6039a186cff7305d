package http

import (
	"net/http"

	"lapizarra/backend/internal/domain/exercise"
	"lapizarra/backend/internal/httpjson"

	"github.com/go-chi/chi/v5"
)

func (a *api) exerciseRoutes(r chi.Router) {
	r.Get("/", a.listExercises)
	r.Post("/", a.createExercise)
	r.Post("/import", a.importExercises)
	r.Post("/uploads", a.createExerciseUpload)
	r.Get("/{exerciseId}", a.getExercise)
	r.Patch("/{exerciseId}", a.updateExercise)
	r.Delete("/{exerciseId}", a.deleteExercise)
}

func (a *api) listExercises(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	au := caller(r)
	out, err := a.Exercises.List(r.Context(), au.UID, au.Admin(), exercise.ListFilter{
		Scope:      q.Get("scope"),
		Visibility: q.Get("visibility"),
		Phase:      q.Get("phase"),
		Category:   q.Get("category"),
		AgeGroup:   q.Get("ageGroup"),
		Query:      q.Get("q"),
		Limit:      queryInt(r, "limit"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) createExercise(w http.ResponseWriter, r *http.Request) {
	var in exercise.Input
	if !decode(w, r, &in) {
		return
	}
	au := caller(r)
	out, err := a.Exercises.Create(r.Context(), au.UID, au.Admin(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, out)
}

func (a *api) getExercise(w http.ResponseWriter, r *http.Request) {
	au := caller(r)
	out, err := a.Exercises.Get(r.Context(), au.UID, au.Admin(), chi.URLParam(r, "exerciseId"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) updateExercise(w http.ResponseWriter, r *http.Request) {
	var in exercise.UpdateInput
	if !decode(w, r, &in) {
		return
	}
	au := caller(r)
	out, err := a.Exercises.Update(r.Context(), au.UID, au.Admin(), chi.URLParam(r, "exerciseId"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) deleteExercise(w http.ResponseWriter, r *http.Request) {
	au := caller(r)
	if err := a.Exercises.Delete(r.Context(), au.UID, au.Admin(), chi.URLParam(r, "exerciseId")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) importExercises(w http.ResponseWriter, r *http.Request) {
	f, ok := uploadedFile(w, r)
	if !ok {
		return
	}
	defer f.Close()

	au := caller(r)
	out, err := a.Exercises.Import(r.Context(), au.UID, au.Admin(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) createExerciseUpload(w http.ResponseWriter, r *http.Request) {
	var in exercise.UploadInput
	if !decode(w, r, &in) {
		return
	}
	out, err := a.Exercises.CreateUpload(r.Context(), caller(r).UID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}
