package process

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"oszshare/internal/logging"
)

// KnownNames lists executable names of the game client, in preference order.
var KnownNames = []string{"osu!", "osu"}

// Identity distinguishes one process instance from a later one that reuses its PID.
type Identity struct {
	PID     int32
	Started int64
}

// Handle describes a running process.
type Handle struct {
	PID      int32
	Name     string
	Started  int64
	Windowed bool

	exe func(context.Context) (string, error)
}

// Identity returns the PID and start time pair for h.
func (h *Handle) Identity() Identity {
	return Identity{PID: h.PID, Started: h.Started}
}

// Executable returns the absolute path of the process image.
func (h *Handle) Executable(ctx context.Context) (string, error) {
	if h.exe == nil {
		return "", fmt.Errorf("executable path unavailable for pid %d", h.PID)
	}
	return h.exe(ctx)
}

// NewHandle builds a Handle with a fixed executable path.
func NewHandle(pid int32, name string, started int64, windowed bool, exe string) Handle {
	return Handle{
		PID:      pid,
		Name:     name,
		Started:  started,
		Windowed: windowed,
		exe: func(context.Context) (string, error) {
			if exe == "" {
				return "", fmt.Errorf("executable path unavailable for pid %d", pid)
			}
			return exe, nil
		},
	}
}

// Enumerator lists running processes.
type Enumerator interface {
	Processes(ctx context.Context) ([]Handle, error)
}

// SystemEnumerator lists processes of the local machine.
type SystemEnumerator struct{}

func (SystemEnumerator) Processes(ctx context.Context) ([]Handle, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	windowed := visibleWindowPIDs()
	handles := make([]Handle, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		started, _ := p.CreateTimeWithContext(ctx)
		_, hasWindow := windowed[uint32(p.Pid)]
		proc := p
		handles = append(handles, Handle{
			PID:      p.Pid,
			Name:     name,
			Started:  started,
			Windowed: hasWindow,
			exe:      proc.ExeWithContext,
		})
	}
	return handles, nil
}

// Locator finds the live game process.
type Locator struct {
	enum   Enumerator
	names  []string
	logger *slog.Logger
}

// NewLocator returns a Locator over enum. A nil enum uses SystemEnumerator.
func NewLocator(enum Enumerator, logger *slog.Logger) *Locator {
	if enum == nil {
		enum = SystemEnumerator{}
	}
	return &Locator{
		enum:   enum,
		names:  KnownNames,
		logger: logging.NewComponentLogger(logger, "process"),
	}
}

// FindLive returns the game process, or nil when none is running. For each
// known name in order, a windowed match wins over the first match.
func (l *Locator) FindLive(ctx context.Context) (*Handle, error) {
	handles, err := l.enum.Processes(ctx)
	if err != nil {
		return nil, err
	}
	for _, name := range l.names {
		var first *Handle
		for i := range handles {
			h := &handles[i]
			if !matchesName(h.Name, name) {
				continue
			}
			if h.Windowed {
				selected := *h
				return &selected, nil
			}
			if first == nil {
				first = h
			}
		}
		if first != nil {
			selected := *first
			l.logger.Debug("game process has no visible window; using first match",
				logging.Int("pid", int(selected.PID)),
				logging.String("name", selected.Name),
			)
			return &selected, nil
		}
	}
	return nil, nil
}

func matchesName(processName, want string) bool {
	trimmed := strings.TrimSpace(processName)
	if len(trimmed) > 4 && strings.EqualFold(trimmed[len(trimmed)-4:], ".exe") {
		trimmed = trimmed[:len(trimmed)-4]
	}
	return strings.EqualFold(trimmed, want)
}
