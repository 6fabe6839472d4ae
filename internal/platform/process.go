// Package platform adapts the host operating system to the app-control
// contract. The process controller treats running processes as the apps
// under management: an app identifier matches the process comm name, the
// most recently launched watched process counts as foregrounded, and
// removal from the foreground is a SIGTERM.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jsai2001/GetYourLifeBack/internal/clock"
	"github.com/jsai2001/GetYourLifeBack/internal/models"
)

// DefaultProcRoot is the procfs mount scanned for running processes.
const DefaultProcRoot = "/proc"

// Opts holds configuration options for the process controller.
type Opts struct {
	ProcRoot string
}

// Option defines a configuration option for the process controller.
type Option func(*Opts)

// WithProcRoot overrides the procfs root (used in tests).
func WithProcRoot(root string) Option {
	return func(o *Opts) { o.ProcRoot = root }
}

type usageRecord struct {
	foregroundMs int64
	dayKey       string
}

// ProcessController implements models.AppController against procfs.
//
// Foreground time is accumulated from scan to scan: the app observed as
// foregrounded accrues the wall time since the previous scan. Totals roll
// over when the local day changes, so UsageStats reflects what the
// controller has seen since midnight, not the kernel's own accounting.
type ProcessController struct {
	procRoot string
	clock    clock.Clock
	loc      *time.Location

	mu         sync.Mutex
	usage      map[models.AppID]usageRecord
	lastScanMs int64
	lastApp    models.AppID
}

// NewProcessController creates a controller scanning the default procfs.
func NewProcessController(ck clock.Clock, loc *time.Location, opts ...Option) *ProcessController {
	cfg := Opts{ProcRoot: DefaultProcRoot}
	for _, opt := range opts {
		opt(&cfg)
	}
	if loc == nil {
		loc = time.Local
	}
	slog.Debug("ProcessController created", "proc_root", cfg.ProcRoot)
	return &ProcessController{
		procRoot: cfg.ProcRoot,
		clock:    ck,
		loc:      loc,
		usage:    make(map[models.AppID]usageRecord),
	}
}

type process struct {
	pid       int
	comm      string
	starttime uint64
}

// CurrentForegroundApp reports the most recently launched process as the
// foregrounded app and charges the elapsed interval to the previous one.
func (c *ProcessController) CurrentForegroundApp(ctx context.Context) (models.AppID, bool, error) {
	procs, err := c.scan(ctx)
	if err != nil {
		return "", false, err
	}

	var front *process
	for i := range procs {
		if front == nil || procs[i].starttime > front.starttime {
			front = &procs[i]
		}
	}

	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastApp != "" && c.lastScanMs > 0 {
		c.accrueLocked(c.lastApp, now-c.lastScanMs, now)
	}
	c.lastScanMs = now
	if front == nil {
		c.lastApp = ""
		return "", false, nil
	}
	c.lastApp = models.AppID(front.comm)
	return c.lastApp, true, nil
}

// UsageStats returns the per-app foreground durations observed today. The
// window is honored only at day granularity; windows that do not overlap
// the current local day come back empty.
func (c *ProcessController) UsageStats(ctx context.Context, start, end time.Time) ([]models.AppUsage, error) {
	today := time.UnixMilli(c.clock.Now()).In(c.loc).Format("2006-01-02")
	if start.In(c.loc).Format("2006-01-02") > today || end.In(c.loc).Format("2006-01-02") < today {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.AppUsage
	for app, rec := range c.usage {
		if rec.dayKey != today || rec.foregroundMs == 0 {
			continue
		}
		out = append(out, models.AppUsage{App: app, AppName: string(app), ForegroundMs: rec.foregroundMs})
	}
	return out, nil
}

// KillOrBackground terminates every process whose comm matches the app.
// An app with no running process counts as already gone.
func (c *ProcessController) KillOrBackground(ctx context.Context, app models.AppID) error {
	procs, err := c.scan(ctx)
	if err != nil {
		return err
	}
	for _, p := range procs {
		if p.comm != string(app) {
			continue
		}
		if err := syscall.Kill(p.pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
			return fmt.Errorf("failed to terminate %s (pid %d): %w", app, p.pid, err)
		}
		slog.Debug("ProcessController terminated process", "app", app, "pid", p.pid)
	}
	return nil
}

// accrueLocked charges elapsed foreground time to an app, resetting the
// bucket when the local day has rolled over. Caller holds c.mu.
func (c *ProcessController) accrueLocked(app models.AppID, elapsedMs, nowMs int64) {
	if elapsedMs <= 0 {
		return
	}
	today := time.UnixMilli(nowMs).In(c.loc).Format("2006-01-02")
	rec := c.usage[app]
	if rec.dayKey != today {
		rec = usageRecord{dayKey: today}
	}
	rec.foregroundMs += elapsedMs
	c.usage[app] = rec
}

// scan lists running processes with their comm names and start times.
func (c *ProcessController) scan(ctx context.Context) ([]process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(c.procRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.procRoot, err)
	}

	var procs []process
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(filepath.Join(c.procRoot, entry.Name(), "comm"))
		if err != nil {
			// Process exited between the listing and the read.
			continue
		}
		start, err := readStarttime(filepath.Join(c.procRoot, entry.Name(), "stat"))
		if err != nil {
			continue
		}
		procs = append(procs, process{
			pid:       pid,
			comm:      strings.TrimSpace(string(comm)),
			starttime: start,
		})
	}
	return procs, nil
}

// readStarttime extracts the starttime field from a procfs stat line. The
// comm field may contain spaces and parentheses, so parsing anchors on the
// last closing paren.
func readStarttime(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	idx := strings.LastIndexByte(string(data), ')')
	if idx < 0 {
		return 0, fmt.Errorf("malformed stat line in %s", path)
	}
	fields := strings.Fields(string(data)[idx+1:])
	// starttime is field 22 of the stat line, the 20th after comm.
	if len(fields) < 20 {
		return 0, fmt.Errorf("truncated stat line in %s", path)
	}
	return strconv.ParseUint(fields[19], 10, 64)
}
