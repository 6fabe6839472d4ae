package usage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/models"
)

func TestComputeTotalsOneHundred(t *testing.T) {
	cases := []struct {
		name      string
		spent     int
		potential int
	}{
		{"start of day", 0, DayBudgetSeconds},
		{"end of day", 3600, 0},
		{"mid day", 7200, 43200},
		{"rounding drift", 12345, 23456},
		{"heavy usage", 40000, 10000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Compute(tc.spent, tc.potential)
			if total := s.SpentPercent + s.PotentialPercent + s.SavedPercent; total != 100 {
				t.Errorf("percentages total %d, want 100 (%+v)", total, s)
			}
		})
	}
}

func TestComputeMidday(t *testing.T) {
	// Half the day left, 2h spent: spent 8%, potential 50%, saved 42%.
	s := Compute(7200, 43200)
	if s.SpentPercent != 8 || s.PotentialPercent != 50 || s.SavedPercent != 42 {
		t.Errorf("unexpected breakdown %+v", s)
	}
}

func TestFormatLine(t *testing.T) {
	line := Summary{SpentPercent: 8, PotentialPercent: 50, SavedPercent: 42}.FormatLine()
	for _, want := range []string{"100%", "8%", "50%", "42%"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}
}

type fakeController struct {
	stats []models.AppUsage
	err   error
}

func (f *fakeController) CurrentForegroundApp(ctx context.Context) (models.AppID, bool, error) {
	return "", false, nil
}

func (f *fakeController) UsageStats(ctx context.Context, start, end time.Time) ([]models.AppUsage, error) {
	return f.stats, f.err
}

func (f *fakeController) KillOrBackground(ctx context.Context, app models.AppID) error {
	return nil
}

type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64 { return c.now }

func TestSpentSecondsExcludesSystemApps(t *testing.T) {
	ctrl := &fakeController{stats: []models.AppUsage{
		{App: "com.example.social", AppName: "Socialgram", ForegroundMs: 120_000},
		{App: "com.android.settings", AppName: "Settings", ForegroundMs: 600_000},
		{App: "com.example.broker", AppName: "Broker", ForegroundMs: 60_000},
	}}
	ck := &fakeClock{now: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC).UnixMilli()}
	calc := NewCalculator(ctrl, ck, time.UTC, []models.AppID{"com.example.broker"})

	spent, err := calc.SpentSecondsToday(context.Background())
	if err != nil {
		t.Fatalf("SpentSecondsToday failed: %v", err)
	}
	if spent != 120 {
		t.Errorf("expected 120s spent after exclusions, got %d", spent)
	}
}

func TestTodaySurvivesStatsFailure(t *testing.T) {
	ctrl := &fakeController{err: errors.New("usage access denied")}
	ck := &fakeClock{now: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC).UnixMilli()}
	calc := NewCalculator(ctrl, ck, time.UTC, nil)

	s := calc.Today(context.Background())
	if s.SpentPercent != 0 {
		t.Errorf("expected zero spent on stats failure, got %d", s.SpentPercent)
	}
	if total := s.SpentPercent + s.PotentialPercent + s.SavedPercent; total != 100 {
		t.Errorf("percentages total %d, want 100", total)
	}
}
