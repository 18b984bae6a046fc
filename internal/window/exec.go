package window

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/flowtrack/internal/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

// ExecConfig holds the commands run by the Exec provider. Commands are split
// on whitespace and run without a shell.
type ExecConfig struct {
	FocusCommand      string
	RunningCommand    string
	InstalledCommand  string
	InstalledCacheTTL time.Duration
}

// Exec is a Provider backed by external commands.
type Exec struct {
	cfg    ExecConfig
	cache  *expirable.LRU[string, []App]
	logger zerolog.Logger
	run    func(ctx context.Context, command string) ([]byte, error)
}

// NewExec creates an Exec provider.
func NewExec(cfg ExecConfig, logger zerolog.Logger) *Exec {
	if cfg.InstalledCacheTTL <= 0 {
		cfg.InstalledCacheTTL = 10 * time.Minute
	}
	return &Exec{
		cfg:    cfg,
		cache:  expirable.NewLRU[string, []App](4, nil, cfg.InstalledCacheTTL),
		logger: logger.With().Str("component", "window").Logger(),
		run:    runCommand,
	}
}

// FocusedApplication runs the focus command and uses its first line as the app name.
func (e *Exec) FocusedApplication(ctx context.Context) (*App, error) {
	out, err := e.run(ctx, e.cfg.FocusCommand)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	name := firstLine(out)
	if name == "" {
		return nil, nil
	}
	return &App{Name: name}, nil
}

// RunningApplications runs the running command, expecting "pid name" lines.
func (e *Exec) RunningApplications(ctx context.Context) ([]App, error) {
	if e.cfg.RunningCommand == "" {
		return []App{}, nil
	}
	out, err := e.run(ctx, e.cfg.RunningCommand)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return parseRunning(out), nil
}

// InstalledApplications lists installed applications, cached for the configured TTL.
func (e *Exec) InstalledApplications(ctx context.Context) ([]App, error) {
	if e.cfg.InstalledCommand == "" {
		return []App{}, nil
	}
	if apps, ok := e.cache.Get(e.cfg.InstalledCommand); ok {
		metrics.WindowCacheHits.Inc()
		return append([]App(nil), apps...), nil
	}
	metrics.WindowCacheMisses.Inc()

	out, err := e.run(ctx, e.cfg.InstalledCommand)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	apps := parseInstalled(out)
	e.cache.Add(e.cfg.InstalledCommand, apps)

	e.logger.Debug().Int("count", len(apps)).Msg("Enumerated installed applications")
	return append([]App(nil), apps...), nil
}

func runCommand(ctx context.Context, command string) ([]byte, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no command configured")
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", fields[0], err, msg)
		}
		return nil, fmt.Errorf("%s: %w", fields[0], err)
	}
	return out, nil
}

func firstLine(out []byte) string {
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}

// parseRunning parses "pid name" lines, keeping one entry per name.
func parseRunning(out []byte) []App {
	apps := make([]App, 0)
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pidField, name, found := strings.Cut(line, " ")
		pid, err := strconv.ParseUint(pidField, 10, 64)
		if !found || err != nil {
			// No pid column
			pid, name = 0, line
		}
		name = filepath.Base(strings.TrimSpace(name))
		key := strings.ToLower(name)
		if name == "" || name == "." {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		apps = append(apps, App{Name: name, ProcessID: pid})
	}
	sort.Slice(apps, func(i, j int) bool {
		return strings.ToLower(apps[i].Name) < strings.ToLower(apps[j].Name)
	})
	return apps
}

// parseInstalled turns one path per line into apps named after the file.
func parseInstalled(out []byte) []App {
	apps := make([]App, 0)
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		path := strings.TrimSpace(scanner.Text())
		if path == "" {
			continue
		}
		base := filepath.Base(path)
		name := strings.TrimSuffix(strings.TrimSuffix(base, ".desktop"), ".app")
		if name == "" {
			continue
		}
		if _, dup := seen[strings.ToLower(name)]; dup {
			continue
		}
		seen[strings.ToLower(name)] = struct{}{}
		apps = append(apps, App{Name: name, Path: path})
	}
	sort.Slice(apps, func(i, j int) bool {
		return strings.ToLower(apps[i].Name) < strings.ToLower(apps[j].Name)
	})
	return apps
}
