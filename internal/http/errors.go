package http

import (
	"net/http"

	"lapizarra/backend/internal/domain/admin"
	"lapizarra/backend/internal/domain/attendance"
	"lapizarra/backend/internal/domain/exercise"
	"lapizarra/backend/internal/domain/match"
	"lapizarra/backend/internal/domain/members"
	"lapizarra/backend/internal/domain/notifications"
	"lapizarra/backend/internal/domain/session"
	"lapizarra/backend/internal/domain/stats"
	stripedom "lapizarra/backend/internal/domain/stripe"
	"lapizarra/backend/internal/domain/team"
	"lapizarra/backend/internal/domain/user"
	"lapizarra/backend/internal/httpjson"
	"lapizarra/backend/internal/media"

	"github.com/rs/zerolog/hlog"
)

// mapError turns a domain error into a status code. Plan limits and missing
// integrations are checked first because they surface through every
// service that creates documents.
func mapError(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case stripedom.IsErrLimitReached(err):
		return http.StatusPaymentRequired
	case stripedom.IsErrNotConfigured(err), media.IsErrNotConfigured(err):
		return http.StatusServiceUnavailable

	case user.IsErrBadRequest(err), exercise.IsErrBadRequest(err), team.IsErrBadRequest(err),
		members.IsErrBadRequest(err), session.IsErrBadRequest(err), match.IsErrBadRequest(err),
		attendance.IsErrBadRequest(err), stats.IsErrBadRequest(err), notifications.IsErrBadRequest(err),
		stripedom.IsErrBadRequest(err), admin.IsErrBadRequest(err), media.IsErrBadRequest(err):
		return http.StatusBadRequest

	case user.IsErrUnauthorized(err), exercise.IsErrUnauthorized(err), team.IsErrUnauthorized(err),
		members.IsErrUnauthorized(err), session.IsErrUnauthorized(err), match.IsErrUnauthorized(err),
		attendance.IsErrUnauthorized(err), stripedom.IsErrUnauthorized(err):
		return http.StatusForbidden

	case user.IsErrNotFound(err), exercise.IsErrNotFound(err), team.IsErrNotFound(err),
		members.IsErrNotFound(err), session.IsErrNotFound(err), match.IsErrNotFound(err),
		attendance.IsErrNotFound(err), stats.IsErrNotFound(err), notifications.IsErrNotFound(err),
		stripedom.IsErrNotFound(err), admin.IsErrNotFound(err):
		return http.StatusNotFound

	case user.IsErrConflict(err), members.IsErrConflict(err), match.IsErrConflict(err):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as {"message": ...}. Internal errors are logged and their
// detail is not sent to the client.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := mapError(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		if status == http.StatusInternalServerError {
			httpjson.Error(w, status, "internal error")
			return
		}
	}
	httpjson.Error(w, status, err.Error())
}
