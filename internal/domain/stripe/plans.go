package stripe

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Plan ids
const (
	PlanFree = "free"
	PlanPro  = "pro"
	PlanClub = "club"
)

// Plan-limited resources
const (
	ResourceTeams            = "teams"
	ResourceSessions         = "sessions"
	ResourcePrivateExercises = "privateExercises"
)

var Resources = []string{ResourceTeams, ResourceSessions, ResourcePrivateExercises}

//go:embed plans.yaml
var defaultPlans []byte

type Plan struct {
	Name   string         `yaml:"name" json:"name"`
	Limits map[string]int `yaml:"limits" json:"limits"`
}

type Catalog struct {
	Plans map[string]Plan `yaml:"plans"`
}

// DefaultCatalog parses the embedded plan file.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultPlans)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse plans: %w", err)
	}
	if _, ok := c.Plans[PlanFree]; !ok {
		return nil, fmt.Errorf("parse plans: %q plan is required", PlanFree)
	}
	for id, p := range c.Plans {
		for _, r := range Resources {
			if _, ok := p.Limits[r]; !ok {
				return nil, fmt.Errorf("parse plans: %s is missing limit %q", id, r)
			}
		}
	}
	return &c, nil
}

// Limit returns the cap for resource on plan; unknown plans fall back to
// free and unknown resources are unlimited.
func (c *Catalog) Limit(plan, resource string) int {
	p, ok := c.Plans[plan]
	if !ok {
		p = c.Plans[PlanFree]
	}
	l, ok := p.Limits[resource]
	if !ok {
		return -1
	}
	return l
}

// checkLimit fails when current has reached limit (-1 is unlimited).
func checkLimit(resource string, current, limit int) error {
	if limit < 0 || current < limit {
		return nil
	}
	return fmt.Errorf("%w: %s limit reached (%d/%d). Upgrade your plan to add more.",
		ErrLimitReached, resource, current, limit)
}

// remaining is how many more items fit under limit; -1 is unlimited.
func remaining(current, limit int) int {
	if limit < 0 {
		return -1
	}
	if current >= limit {
		return 0
	}
	return limit - current
}
