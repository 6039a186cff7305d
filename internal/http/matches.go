package http

import (
	"context"
	"net/http"

	"lapizarra/backend/internal/domain/match"
	"lapizarra/backend/internal/httpjson"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

func (a *api) matchRoutes(r chi.Router) {
	r.Post("/", a.createMatch)

	r.Route("/{matchId}", func(r chi.Router) {
		r.Get("/", a.getMatch)
		r.Delete("/", a.deleteMatch)
		r.Get("/live", a.watchMatch)

		r.Post("/start", a.boardAction((*match.Service).Start))
		r.Post("/pause", a.boardAction((*match.Service).Pause))
		r.Post("/reset", a.boardAction((*match.Service).ResetTimer))
		r.Post("/next-period", a.boardAction((*match.Service).NextPeriod))
		r.Post("/save", a.boardAction((*match.Service).Save))
		r.Post("/finalize", a.boardAction((*match.Service).Finalize))
		r.Post("/reopen", a.boardAction((*match.Service).Reopen))

		r.Post("/court", a.setOnCourt)
		r.Post("/stats", a.adjustStat)
		r.Post("/rival-fouls", a.adjustRivalFouls)
		r.Post("/timeouts", a.callTimeout)
		r.Post("/goals", a.addGoal)
		r.Delete("/goals/{goalId}", a.removeGoal)
	})
}

func matchID(r *http.Request) string { return chi.URLParam(r, "matchId") }

func (a *api) writeView(w http.ResponseWriter, r *http.Request, v *match.View, err error) {
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, v)
}

// boardAction adapts a body-less scoreboard command.
func (a *api) boardAction(fn func(s *match.Service, ctx context.Context, uid, matchID string) (*match.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := fn(a.Matches, r.Context(), caller(r).UID, matchID(r))
		a.writeView(w, r, v, err)
	}
}

func (a *api) createMatch(w http.ResponseWriter, r *http.Request) {
	var in match.CreateMatchInput
	if !decode(w, r, &in) {
		return
	}
	out, err := a.Matches.Create(r.Context(), caller(r).UID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, out)
}

func (a *api) getMatch(w http.ResponseWriter, r *http.Request) {
	v, err := a.Matches.Get(r.Context(), caller(r).UID, matchID(r))
	a.writeView(w, r, v, err)
}

func (a *api) deleteMatch(w http.ResponseWriter, r *http.Request) {
	if err := a.Matches.Delete(r.Context(), caller(r).UID, matchID(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// watchMatch upgrades to a websocket that receives the board after every
// change.
func (a *api) watchMatch(w http.ResponseWriter, r *http.Request) {
	uid := caller(r).UID
	id := matchID(r)
	v, err := a.Matches.Watch(r.Context(), uid, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := a.Live.Serve(w, r, uid, id, v); err != nil {
		// The upgrader has already answered the client.
		hlog.FromRequest(r).Warn().Err(err).Str("matchId", id).Msg("live upgrade failed")
	}
}

func (a *api) setOnCourt(w http.ResponseWriter, r *http.Request) {
	var in match.CourtInput
	if !decode(w, r, &in) {
		return
	}
	v, err := a.Matches.SetOnCourt(r.Context(), caller(r).UID, matchID(r), in)
	a.writeView(w, r, v, err)
}

func (a *api) adjustStat(w http.ResponseWriter, r *http.Request) {
	var in match.StatInput
	if !decode(w, r, &in) {
		return
	}
	v, err := a.Matches.AdjustStat(r.Context(), caller(r).UID, matchID(r), in)
	a.writeView(w, r, v, err)
}

func (a *api) adjustRivalFouls(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Delta int `json:"delta"`
	}
	if !decode(w, r, &in) {
		return
	}
	v, err := a.Matches.AdjustRivalFouls(r.Context(), caller(r).UID, matchID(r), in.Delta)
	a.writeView(w, r, v, err)
}

func (a *api) callTimeout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Side match.Side `json:"side"`
	}
	if !decode(w, r, &in) {
		return
	}
	v, err := a.Matches.CallTimeout(r.Context(), caller(r).UID, matchID(r), in.Side)
	a.writeView(w, r, v, err)
}

func (a *api) addGoal(w http.ResponseWriter, r *http.Request) {
	var in match.GoalInput
	if !decode(w, r, &in) {
		return
	}
	v, err := a.Matches.AddGoal(r.Context(), caller(r).UID, matchID(r), in)
	a.writeView(w, r, v, err)
}

func (a *api) removeGoal(w http.ResponseWriter, r *http.Request) {
	v, err := a.Matches.RemoveGoal(r.Context(), caller(r).UID, matchID(r), chi.URLParam(r, "goalId"))
	a.writeView(w, r, v, err)
}
