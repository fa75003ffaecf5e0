package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"provify/internal/logging"
)

var _ Executor = (*CommandExecutor)(nil)

// CommandExecutor spawns an external automation agent per task. Args may use
// the placeholders {serial}, {package}, {goal}, {bug_id} and {app_name}. The
// agent's stdout must end with a JSON object carrying bug_reproduced.
type CommandExecutor struct {
	Path string
	Args []string
	Env  []string
	log  *slog.Logger
}

// NewCommandExecutor returns an executor that runs path with args.
func NewCommandExecutor(path string, args []string, env []string) *CommandExecutor {
	return &CommandExecutor{
		Path: path,
		Args: args,
		Env:  env,
		log:  logging.New("agent-cmd"),
	}
}

func (c *CommandExecutor) Execute(ctx context.Context, task Task) (Outcome, error) {
	repl := strings.NewReplacer(
		"{serial}", task.TargetID,
		"{package}", task.Package,
		"{goal}", task.Goal,
		"{bug_id}", task.BugID,
		"{app_name}", task.AppName,
	)
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = repl.Replace(a)
	}

	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Env = append(append(os.Environ(), c.Env...), "ANDROID_SERIAL="+task.TargetID)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.log.Debug("agent command start",
		slog.String("bug_id", task.BugID),
		slog.String("target_id", task.TargetID),
		slog.String("path", c.Path),
	)
	runErr := cmd.Run()
	raw := stdout.String()

	if ctx.Err() != nil {
		return Outcome{Raw: raw}, ctx.Err()
	}
	if runErr != nil {
		reason := strings.TrimSpace(lastLine(stderr.String()))
		if reason == "" {
			reason = runErr.Error()
		}
		return Outcome{Raw: raw}, &Error{Reason: reason, Partial: raw, Err: runErr}
	}

	out, err := ParseOutcome(raw)
	if err != nil {
		return Outcome{Raw: raw}, &Error{Reason: "unparseable agent output", Partial: raw, Err: err}
	}
	return out, nil
}

// ParseOutcome extracts the verdict object from agent output. The whole
// output is tried first, then each line from the last.
func ParseOutcome(raw string) (Outcome, error) {
	if out, ok := decodeOutcome(raw); ok {
		out.Raw = raw
		return out, nil
	}
	lines := strings.Split(raw, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		if out, ok := decodeOutcome(line); ok {
			out.Raw = raw
			return out, nil
		}
	}
	return Outcome{}, errors.New("no JSON verdict with bug_reproduced in agent output")
}

func decodeOutcome(s string) (Outcome, bool) {
	var probe struct {
		Reproduced   *bool    `json:"bug_reproduced"`
		Observations string   `json:"observations"`
		Steps        []string `json:"steps_executed"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &probe); err != nil || probe.Reproduced == nil {
		return Outcome{}, false
	}
	return Outcome{
		Reproduced:   *probe.Reproduced,
		Observations: probe.Observations,
		Steps:        probe.Steps,
	}, true
}

func lastLine(s string) string {
	sc := bufio.NewScanner(strings.NewReader(s))
	var last string
	for sc.Scan() {
		if t := strings.TrimSpace(sc.Text()); t != "" {
			last = t
		}
	}
	return last
}

// String is used in logs.
func (c *CommandExecutor) String() string {
	return fmt.Sprintf("command(%s)", c.Path)
}
