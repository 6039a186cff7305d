package stripe

import (
	"context"
	"fmt"

	"lapizarra/backend/internal/domain/user"

	"cloud.google.com/go/firestore"
	firestorepb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type Profiles interface {
	Get(ctx context.Context, uid string) (*user.Profile, error)
}

// Counter reports how many plan-limited items a user owns.
type Counter interface {
	Count(ctx context.Context, uid, resource string) (int, error)
}

// Limiter enforces plan quotas for teams, sessions and private exercises.
type Limiter struct {
	plans    *Catalog
	profiles Profiles
	counter  Counter
	clock    clockwork.Clock
}

func NewLimiter(plans *Catalog, profiles Profiles, counter Counter, clock clockwork.Clock) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{plans: plans, profiles: profiles, counter: counter, clock: clock}
}

// PlanFor returns the plan whose limits currently apply to uid. Users
// without a profile are on the free plan.
func (l *Limiter) PlanFor(ctx context.Context, uid string) (string, error) {
	p, err := l.profiles.Get(ctx, uid)
	if err != nil {
		if user.IsErrNotFound(err) {
			return PlanFree, nil
		}
		return "", err
	}
	return p.Subscription.EffectiveTier(l.clock.Now()), nil
}

func (l *Limiter) usage(ctx context.Context, uid, resource string) (current, limit int, err error) {
	plan, err := l.PlanFor(ctx, uid)
	if err != nil {
		return 0, 0, err
	}
	limit = l.plans.Limit(plan, resource)
	if limit < 0 {
		return 0, limit, nil
	}
	current, err = l.counter.Count(ctx, uid, resource)
	if err != nil {
		return 0, 0, err
	}
	return current, limit, nil
}

func (l *Limiter) CheckPlanLimit(ctx context.Context, uid, resource string) error {
	current, limit, err := l.usage(ctx, uid, resource)
	if err != nil {
		log.Warn().Err(err).Str("uid", uid).Str("resource", resource).Msg("plan limit check failed, allowing")
		return nil
	}
	return checkLimit(resource, current, limit)
}

func (l *Limiter) Remaining(ctx context.Context, uid, resource string) (int, error) {
	current, limit, err := l.usage(ctx, uid, resource)
	if err != nil {
		return 0, err
	}
	return remaining(current, limit), nil
}

// Usage reports current usage against the limits of plan for every
// resource.
func (l *Limiter) Usage(ctx context.Context, uid, plan string) map[string]ResourceUsage {
	out := make(map[string]ResourceUsage, len(Resources))
	for _, r := range Resources {
		n, err := l.counter.Count(ctx, uid, r)
		if err != nil {
			log.Warn().Err(err).Str("resource", r).Msg("usage count failed")
		}
		out[r] = ResourceUsage{Current: n, Limit: l.plans.Limit(plan, r)}
	}
	return out
}

// FirestoreCounter counts owned documents with aggregation queries.
type FirestoreCounter struct {
	fs *firestore.Client
}

func NewFirestoreCounter(fs *firestore.Client) *FirestoreCounter {
	return &FirestoreCounter{fs: fs}
}

func (c *FirestoreCounter) Count(ctx context.Context, uid, resource string) (int, error) {
	var q firestore.Query
	switch resource {
	case ResourceTeams:
		q = c.fs.Collection("teams").Where("ownerId", "==", uid)
	case ResourceSessions:
		q = c.fs.Collection("sessions").Where("ownerId", "==", uid)
	case ResourcePrivateExercises:
		q = c.fs.Collection("exercises").Where("ownerId", "==", uid).Where("visibility", "==", "private")
	default:
		return 0, fmt.Errorf("unknown resource %q", resource)
	}
	res, err := q.NewAggregationQuery().WithCount("n").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", resource, err)
	}
	v, ok := res["n"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("count %s: unexpected aggregation result", resource)
	}
	return int(v.GetIntegerValue()), nil
}
