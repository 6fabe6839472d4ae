// Package usage turns foreground app stats into the day-budget summary shown
// on idle reminders.
//
// The day is treated as a fixed budget of 86400 seconds. Spent is foreground
// time on non-excluded apps so far today, potential is the time left until
// midnight, and saved is the elapsed time not spent on apps. All three are
// reported as percentages summing to exactly 100.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/clock"
	"github.com/jsai2001/GetYourLifeBack/internal/models"
)

// DayBudgetSeconds is the whole-day time budget.
const DayBudgetSeconds = 86400

// defaultExcludedNames are app display names never counted as spent time.
var defaultExcludedNames = map[string]struct{}{
	"System Launcher":      {},
	"GetYourLifeBack":      {},
	"Google Play services": {},
	"Settings":             {},
}

// Summary is the percentage breakdown of today's time budget.
type Summary struct {
	SpentPercent     int
	PotentialPercent int
	SavedPercent     int
}

// FormatLine renders the summary the way reminder overlays display it.
func (s Summary) FormatLine() string {
	return fmt.Sprintf("Daily budget 100%% | Spent %d%% | Potential %d%% | Saved %d%%",
		s.SpentPercent, s.PotentialPercent, s.SavedPercent)
}

// Calculator computes daily summaries from an AppController's usage stats.
type Calculator struct {
	controller    models.AppController
	clock         clock.Clock
	loc           *time.Location
	excludedNames map[string]struct{}
	excludedApps  map[models.AppID]struct{}
}

// NewCalculator creates a Calculator with the built-in name exclusions and
// the given extra app exclusions. The location anchors the day boundary.
func NewCalculator(controller models.AppController, ck clock.Clock, loc *time.Location, excludedApps []models.AppID) *Calculator {
	apps := make(map[models.AppID]struct{}, len(excludedApps))
	for _, a := range excludedApps {
		apps[a] = struct{}{}
	}
	return &Calculator{
		controller:    controller,
		clock:         ck,
		loc:           loc,
		excludedNames: defaultExcludedNames,
		excludedApps:  apps,
	}
}

// SpentSecondsToday sums foreground time on non-excluded apps since midnight.
func (c *Calculator) SpentSecondsToday(ctx context.Context) (int, error) {
	now := time.UnixMilli(c.clock.Now()).In(c.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)

	stats, err := c.controller.UsageStats(ctx, start, now)
	if err != nil {
		return 0, fmt.Errorf("failed to query usage stats: %w", err)
	}

	var total int
	for _, s := range stats {
		if _, ok := c.excludedNames[s.AppName]; ok {
			continue
		}
		if _, ok := c.excludedApps[s.App]; ok {
			continue
		}
		total += int(s.ForegroundMs / 1000)
	}
	return total, nil
}

// Today computes the current percentage breakdown. Usage query failures count
// as zero spent so the reminder still renders.
func (c *Calculator) Today(ctx context.Context) Summary {
	spent, err := c.SpentSecondsToday(ctx)
	if err != nil {
		slog.Error("usage summary falling back to zero spent", "error", err)
		spent = 0
	}

	now := time.UnixMilli(c.clock.Now()).In(c.loc)
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, int(999*time.Millisecond), c.loc)
	potential := int(endOfDay.Sub(now).Milliseconds() / 1000)
	if potential < 0 {
		potential = 0
	}

	return Compute(spent, potential)
}

// Compute derives the percentage breakdown from spent and potential seconds.
// Saved absorbs any rounding drift so the three always total 100.
func Compute(spentSeconds, potentialSeconds int) Summary {
	spentPct := roundPct(spentSeconds)
	potentialPct := roundPct(potentialSeconds)
	elapsed := DayBudgetSeconds - potentialSeconds
	savedPct := roundPct(elapsed - spentSeconds)

	if total := spentPct + potentialPct + savedPct; total != 100 {
		savedPct += 100 - total
	}
	return Summary{SpentPercent: spentPct, PotentialPercent: potentialPct, SavedPercent: savedPct}
}

func roundPct(seconds int) int {
	return int(math.Round(float64(seconds) * 100.0 / DayBudgetSeconds))
}
