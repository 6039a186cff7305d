package http

import (
	"net/http"

	"lapizarra/backend/internal/domain/attendance"
	"lapizarra/backend/internal/domain/members"
	"lapizarra/backend/internal/domain/team"
	"lapizarra/backend/internal/httpjson"

	"github.com/go-chi/chi/v5"
)

func (a *api) teamRoutes(r chi.Router) {
	r.Get("/", a.listTeams)
	r.Post("/", a.createTeam)

	r.Route("/{teamId}", func(r chi.Router) {
		r.Get("/", a.getTeam)
		r.Patch("/", a.updateTeam)
		r.Delete("/", a.deleteTeam)

		r.Get("/players", a.listPlayers)
		r.Post("/players", a.addPlayer)
		r.Post("/players/import", a.importPlayers)
		r.Patch("/players/{playerId}", a.updatePlayer)
		r.Delete("/players/{playerId}", a.removePlayer)
		r.Get("/players/{playerId}/stats", a.playerStats)

		r.Get("/members", a.listMembers)
		r.Delete("/members/{memberUid}", a.removeMember)
		r.Get("/invitations", a.listTeamInvitations)
		r.Post("/invitations", a.invite)

		r.Get("/matches", a.listTeamMatches)
		r.Get("/stats", a.teamStats)

		r.Get("/attendance", a.listAttendance)
		r.Post("/attendance", a.recordAttendance)
		r.Post("/attendance/bulk", a.bulkAttendance)
		r.Get("/attendance/summary", a.attendanceSummary)
		r.Delete("/attendance/{attendanceId}", a.deleteAttendance)
	})
}

func teamID(r *http.Request) string { return chi.URLParam(r, "teamId") }

func (a *api) listTeams(w http.ResponseWriter, r *http.Request) {
	out, err := a.Teams.ListMyTeams(r.Context(), caller(r).UID)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) createTeam(w http.ResponseWriter, r *http.Request) {
	var in team.CreateTeamInput
	if !decode(w, r, &in) {
		return
	}
	out, err := a.Teams.CreateTeam(r.Context(), caller(r).UID, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, out)
}

func (a *api) getTeam(w http.ResponseWriter, r *http.Request) {
	out, err := a.Teams.GetTeam(r.Context(), caller(r).UID, teamID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) updateTeam(w http.ResponseWriter, r *http.Request) {
	var in team.UpdateTeamInput
	if !decode(w, r, &in) {
		return
	}
	out, err := a.Teams.UpdateTeam(r.Context(), caller(r).UID, teamID(r), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) deleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := a.Teams.DeleteTeam(r.Context(), caller(r).UID, teamID(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) listPlayers(w http.ResponseWriter, r *http.Request) {
	out, err := a.Teams.ListPlayers(r.Context(), caller(r).UID, teamID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) addPlayer(w http.ResponseWriter, r *http.Request) {
	var in team.PlayerInput
	if !decode(w, r, &in) {
		return
	}
	out, err := a.Teams.AddPlayer(r.Context(), caller(r).UID, teamID(r), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, out)
}

func (a *api) importPlayers(w http.ResponseWriter, r *http.Request) {
	f, ok := uploadedFile(w, r)
	if !ok {
		return
	}
	defer f.Close()

	out, err := a.Teams.ImportPlayers(r.Context(), caller(r).UID, teamID(r), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) updatePlayer(w http.ResponseWriter, r *http.Request) {
	var in team.UpdatePlayerInput
	if !decode(w, r, &in) {
		return
	}
	out, err := a.Teams.UpdatePlayer(r.Context(), caller(r).UID, teamID(r), chi.URLParam(r, "playerId"), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) removePlayer(w http.ResponseWriter, r *http.Request) {
	if err := a.Teams.RemovePlayer(r.Context(), caller(r).UID, teamID(r), chi.URLParam(r, "playerId")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) listMembers(w http.ResponseWriter, r *http.Request) {
	out, err := a.Teams.ListMembers(r.Context(), caller(r).UID, teamID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) removeMember(w http.ResponseWriter, r *http.Request) {
	if err := a.Teams.RemoveMember(r.Context(), caller(r).UID, teamID(r), chi.URLParam(r, "memberUid")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) listTeamInvitations(w http.ResponseWriter, r *http.Request) {
	out, err := a.Invitations.ListForTeam(r.Context(), caller(r).UID, teamID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) invite(w http.ResponseWriter, r *http.Request) {
	var in members.InviteInput
	if !decode(w, r, &in) {
		return
	}
	out, err := a.Invitations.Invite(r.Context(), caller(r).UID, teamID(r), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, out)
}

func (a *api) listTeamMatches(w http.ResponseWriter, r *http.Request) {
	out, err := a.Matches.ListByTeam(r.Context(), caller(r).UID, teamID(r), queryInt(r, "limit"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) teamStats(w http.ResponseWriter, r *http.Request) {
	out, err := a.Stats.GetTeamStats(r.Context(), caller(r).UID, teamID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) playerStats(w http.ResponseWriter, r *http.Request) {
	out, err := a.Stats.GetPlayerStats(r.Context(), caller(r).UID, teamID(r), chi.URLParam(r, "playerId"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) listAttendance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := a.Attendance.List(r.Context(), caller(r).UID, teamID(r), attendance.ListAttendanceInput{
		Date:     q.Get("date"),
		From:     q.Get("from"),
		To:       q.Get("to"),
		PlayerID: q.Get("playerId"),
		Limit:    queryInt(r, "limit"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) recordAttendance(w http.ResponseWriter, r *http.Request) {
	var in attendance.RecordAttendanceInput
	if !decode(w, r, &in) {
		return
	}
	out, err := a.Attendance.Record(r.Context(), caller(r).UID, teamID(r), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) bulkAttendance(w http.ResponseWriter, r *http.Request) {
	var in attendance.BulkAttendanceInput
	if !decode(w, r, &in) {
		return
	}
	out, err := a.Attendance.BulkRecord(r.Context(), caller(r).UID, teamID(r), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) attendanceSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := a.Attendance.Summary(r.Context(), caller(r).UID, teamID(r), q.Get("from"), q.Get("to"))
	if err != nil {
		fail(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (a *api) deleteAttendance(w http.ResponseWriter, r *http.Request) {
	if err := a.Attendance.Delete(r.Context(), caller(r).UID, teamID(r), chi.URLParam(r, "attendanceId")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
