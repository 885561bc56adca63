package application

import (
	"time"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

// ActivityTier classifies how often a repository is polled. A repository with
// checks still running is hot; otherwise the tier follows the age of the newest
// change or check update.
type ActivityTier int

// Activity tiers, most frequently polled first.
const (
	TierHot ActivityTier = iota
	TierActive
	TierWarm
	TierStale
)

// adaptiveTick is how often the adaptive scheduler looks for due repositories.
const adaptiveTick = time.Minute

// tierSpec is one row of the tier table: a repository whose newest update is
// younger than maxAge lands in the tier and is polled every interval.
type tierSpec struct {
	name     string
	maxAge   time.Duration
	interval time.Duration
}

// tiers is indexed by ActivityTier. The stale row has no age limit.
var tiers = [...]tierSpec{
	TierHot:    {"hot", time.Hour, 2 * time.Minute},
	TierActive: {"active", 24 * time.Hour, 5 * time.Minute},
	TierWarm:   {"warm", 7 * 24 * time.Hour, 15 * time.Minute},
	TierStale:  {"stale", 0, 30 * time.Minute},
}

func (t ActivityTier) known() bool {
	return t >= 0 && int(t) < len(tiers)
}

func (t ActivityTier) String() string {
	if !t.known() {
		return "unknown"
	}
	return tiers[t].name
}

// tierInterval falls back to the active interval for an unknown tier.
func tierInterval(tier ActivityTier) time.Duration {
	if !tier.known() {
		return tiers[TierActive].interval
	}
	return tiers[tier].interval
}

// classifyActivity maps the newest update of a repository to a tier. A zero
// time means nothing was ever seen.
func classifyActivity(newest, now time.Time) ActivityTier {
	if newest.IsZero() {
		return TierStale
	}

	age := now.Sub(newest)
	for tier, spec := range tiers {
		if spec.maxAge == 0 || age < spec.maxAge {
			return ActivityTier(tier)
		}
	}
	return TierStale
}

// repoActivity accumulates what one poll saw of a repository.
type repoActivity struct {
	newest       time.Time
	checksActive bool // some patch set has checks in progress
}

func (a *repoActivity) observeChange(change model.Change) {
	a.touch(change.UpdatedAt)
}

func (a *repoActivity) observeChecks(pairs []model.CheckerCheck, combined model.CombinedCheckState) {
	for _, cc := range pairs {
		a.touch(cc.Check.UpdatedAt)
	}
	if combined == model.CombinedCheckStateInProgress {
		a.checksActive = true
	}
}

func (a *repoActivity) touch(t time.Time) {
	if t.After(a.newest) {
		a.newest = t
	}
}

// tier returns TierHot while checks run, since their results are due soon.
func (a *repoActivity) tier(now time.Time) ActivityTier {
	if a.checksActive {
		return TierHot
	}
	return classifyActivity(a.newest, now)
}

type repoSchedule struct {
	tier       ActivityTier
	nextPollAt time.Time
	lastPolled time.Time
}

// ScheduleInfo is an exported view of a repo's adaptive polling schedule.
type ScheduleInfo struct {
	Tier       ActivityTier
	NextPollAt time.Time
	LastPolled time.Time
}
