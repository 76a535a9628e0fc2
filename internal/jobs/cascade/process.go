package cascade

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/yungbote/personaforge-backend/internal/modules/generators"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

// Event is one line of the generator CLI's --json output.
type Event struct {
	Event   string              `json:"event"`
	Label   string              `json:"label,omitempty"`
	Summary *generators.Summary `json:"summary,omitempty"`
	Message string              `json:"message,omitempty"`
}

const (
	EventPersona = "persona"
	EventSummary = "summary"
	EventError   = "error"
)

const stderrTail = 4 << 10

// ProcessExecutor runs each stage as a child process of the generator binary:
//
//	<binary> [args...] <stage> --empresaId <uuid> --json [--force]
type ProcessExecutor struct {
	Binary string
	Args   []string
	Env    []string
	log    *logger.Logger
}

func NewProcessExecutor(log *logger.Logger, binary string, args ...string) *ProcessExecutor {
	return &ProcessExecutor{
		Binary: binary,
		Args:   args,
		log:    log.With("component", "ProcessExecutor"),
	}
}

func (x *ProcessExecutor) Execute(ctx context.Context, inv Invocation) (generators.Summary, error) {
	args := append([]string{}, x.Args...)
	args = append(args, string(inv.Stage), "--empresaId", inv.CompanyID.String(), "--json")
	if inv.Force {
		args = append(args, "--force")
	}
	cmd := exec.CommandContext(ctx, x.Binary, args...)
	cmd.Env = append(os.Environ(), x.Env...)
	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return generators.Summary{}, err
	}
	if err := cmd.Start(); err != nil {
		return generators.Summary{}, fmt.Errorf("start generator: %w", err)
	}

	var (
		summary  *generators.Summary
		errorMsg string
	)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			x.log.Debug("Ignoring non-event output", "stage", inv.Stage, "line", string(line))
			continue
		}
		switch ev.Event {
		case EventPersona:
			if inv.OnPersona != nil {
				inv.OnPersona(ev.Label)
			}
		case EventSummary:
			summary = ev.Summary
		case EventError:
			errorMsg = ev.Message
		}
	}
	scanErr := scanner.Err()
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return generators.Summary{}, ctxErr
	}
	if waitErr != nil {
		msg := errorMsg
		if msg == "" {
			msg = strings.TrimSpace(stderr.String())
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return generators.Summary{}, fmt.Errorf("generator exited with status %d: %s", exitErr.ExitCode(), msg)
		}
		return generators.Summary{}, fmt.Errorf("generator: %w", waitErr)
	}
	if scanErr != nil {
		return generators.Summary{}, fmt.Errorf("read generator output: %w", scanErr)
	}
	if summary == nil {
		return generators.Summary{}, errors.New("generator exited without a summary")
	}
	return *summary, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
