package xray

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/xtls/xray-core/core"

	"fastnodes/internal/logger"
)

// Instance is a running tunnel. Close stops it and releases everything it
// holds; it is safe to call more than once.
type Instance interface {
	Close() error
}

// Engine starts a tunnel from a rendered config document.
type Engine interface {
	Start(ctx context.Context, doc []byte) (Instance, error)
}

// ConfigPlaceholder is replaced by the temp config path in process args.
const ConfigPlaceholder = "{config}"

// ProcessEngine runs an external xray-compatible binary per tunnel.
type ProcessEngine struct {
	Path string
	Args []string
}

// NewProcessEngine returns an engine running path with args. Empty args
// default to "run -c {config}".
func NewProcessEngine(path string, args []string) *ProcessEngine {
	if len(args) == 0 {
		args = []string{"run", "-c", ConfigPlaceholder}
	}
	return &ProcessEngine{Path: path, Args: args}
}

type process struct {
	cmd    *exec.Cmd
	path   string
	stderr *bytes.Buffer
	once   sync.Once
	err    error
}

// Start writes doc to a unique temp file and spawns the engine on it. The
// process is killed when ctx ends or Close is called; either way the file
// is removed.
func (e *ProcessEngine) Start(ctx context.Context, doc []byte) (Instance, error) {
	f, err := os.CreateTemp("", "fastnodes-*.json")
	if err != nil {
		return nil, fmt.Errorf("create temp config: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(doc); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write temp config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write temp config: %w", err)
	}

	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = strings.ReplaceAll(a, ConfigPlaceholder, path)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Path, args...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("start %s: %w", e.Path, err)
	}
	return &process{cmd: cmd, path: path, stderr: &stderr}, nil
}

func (p *process) Close() error {
	p.once.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		waitErr := p.cmd.Wait()
		var exitErr *exec.ExitError
		if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, os.ErrProcessDone) {
			logger.Log.Debugf("engine wait: %v", waitErr)
		}
		if msg := strings.TrimSpace(p.stderr.String()); msg != "" {
			logger.Log.Debugf("engine stderr: %s", firstLine(msg))
		}
		if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.err = fmt.Errorf("remove temp config: %w", err)
		}
	})
	return p.err
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	if len(line) > 200 {
		line = line[:200] + "..."
	}
	return line
}

// EmbeddedEngine runs xray-core in-process from the same document.
type EmbeddedEngine struct{}

type embedded struct {
	instance *core.Instance
	done     chan struct{}
	once     sync.Once
	err      error
}

func (EmbeddedEngine) Start(ctx context.Context, doc []byte) (inst Instance, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("CRITICAL: Xray Core Panic recovered: %v", r)
			inst, err = nil, fmt.Errorf("xray core panic: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pb, err := Build(doc)
	if err != nil {
		return nil, err
	}
	instance, err := core.New(pb)
	if err != nil {
		return nil, fmt.Errorf("create xray instance: %w", err)
	}
	if err := instance.Start(); err != nil {
		instance.Close()
		return nil, fmt.Errorf("start xray instance: %w", err)
	}

	e := &embedded{instance: instance, done: make(chan struct{})}
	// Tie the instance to ctx like the process engine.
	go func() {
		select {
		case <-ctx.Done():
			e.Close()
		case <-e.done:
		}
	}()
	return e, nil
}

func (e *embedded) Close() error {
	e.once.Do(func() {
		close(e.done)
		e.err = e.instance.Close()
	})
	return e.err
}

// NewEngine selects an engine by name: "process" (default) or "embedded".
func NewEngine(name, path string, args []string) (Engine, error) {
	switch name {
	case "", "process":
		return NewProcessEngine(path, args), nil
	case "embedded":
		return EmbeddedEngine{}, nil
	}
	return nil, fmt.Errorf("unknown engine %q", name)
}
