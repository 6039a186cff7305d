package http

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lapizarra/backend/internal/config"
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
	"lapizarra/backend/internal/live"
	"lapizarra/backend/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Billing is the part of the billing service the API exposes.
type Billing interface {
	Plans() map[string]stripedom.Plan
	GetSubscriptionInfo(ctx context.Context, uid string) (*stripedom.SubscriptionInfo, error)
	CreateCheckoutSession(ctx context.Context, uid string, input stripedom.CreateCheckoutInput) (string, error)
	CreatePortalSession(ctx context.Context, uid string, input stripedom.CreatePortalInput) (string, error)
	CancelSubscription(ctx context.Context, uid string) error
	ResumeSubscription(ctx context.Context, uid string) error
	HandleWebhook(w http.ResponseWriter, r *http.Request)
}

type RouterDeps struct {
	Cfg           config.Config
	Logger        zerolog.Logger
	Verifier      middleware.TokenVerifier
	Users         *user.Service
	Exercises     *exercise.Service
	Teams         *team.Service
	Invitations   *members.Service
	Sessions      *session.Service
	Matches       *match.Service
	Attendance    *attendance.Service
	Stats         *stats.Service
	Notifications *notifications.Service
	Billing       Billing
	Admin         *admin.Service
	Live          *live.Hub
}

type api struct {
	RouterDeps
}

func NewRouter(d RouterDeps) http.Handler {
	a := &api{RouterDeps: d}
	r := chi.NewRouter()

	for _, mw := range middleware.RequestLogging(d.Logger) {
		r.Use(mw)
	}
	r.Use(middleware.Recover)
	r.Use(middleware.CORS(d.Cfg.AllowedOrigins))

	r.Get("/healthz", a.health)

	if d.Billing != nil {
		r.Post("/v1/stripe/webhook", d.Billing.HandleWebhook)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.WithAuth(d.Verifier))

		pr.Route("/v1/me", a.userRoutes)
		pr.Route("/v1/exercises", a.exerciseRoutes)
		pr.Route("/v1/teams", a.teamRoutes)
		pr.Route("/v1/invitations", a.invitationRoutes)
		pr.Route("/v1/sessions", a.sessionRoutes)
		pr.Route("/v1/matches", a.matchRoutes)
		if d.Billing != nil {
			pr.Route("/v1/billing", a.billingRoutes)
		}
		pr.Route("/v1/admin", func(ar chi.Router) {
			ar.Use(middleware.RequireAdmin)
			ar.Post("/users/{uid}/claims", a.setAdminClaim)
		})
	})

	return r
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	out := map[string]any{"ok": true, "ts": time.Now().UTC().Format(time.RFC3339)}
	if a.Matches != nil {
		out["liveMatches"] = a.Matches.LiveCount()
	}
	httpjson.Write(w, http.StatusOK, out)
}

// caller returns the verified identity; WithAuth guarantees it is present.
func caller(r *http.Request) *middleware.AuthUser {
	au, ok := middleware.GetAuthUser(r.Context())
	if !ok {
		return &middleware.AuthUser{}
	}
	return au
}

// decode reads the JSON body into dst and answers 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpjson.Read(w, r, dst); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return 0
	}
	return n
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

// maxUpload caps spreadsheet imports.
const maxUpload = 5 << 20

// uploadedFile opens the "file" part of a multipart form.
func uploadedFile(w http.ResponseWriter, r *http.Request) (multipart.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "expected multipart form with an .xlsx file")
		return nil, false
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "file is required")
		return nil, false
	}
	if !strings.HasSuffix(strings.ToLower(hdr.Filename), ".xlsx") {
		f.Close()
		httpjson.Error(w, http.StatusBadRequest, "only .xlsx files are supported")
		return nil, false
	}
	return f, true
}
