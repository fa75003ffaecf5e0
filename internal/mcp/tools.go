package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"provify/internal/agent"
	"provify/internal/bug"
	"provify/internal/lifecycle"
	"provify/internal/orchestrate"
	"provify/internal/store"
	"provify/internal/target"
	"provify/internal/verdict"
)

func (s *Server) registerOperatorTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_bugs",
		Description: "List tracked bugs, newest first. Optionally filter by status (pending, verified, not_reproducible, fixed) and/or app package.",
	}, s.handleListBugs)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_bug",
		Description: "Get one bug with its notes and reproduction steps.",
	}, s.handleGetBug)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_stats",
		Description: "Count bugs per status.",
	}, s.handleGetStats)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "add_bug",
		Description: "Submit a bug report. Returns the existing bug instead when a similar report exists for the same app.",
	}, s.handleAddBug)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "verify_bug",
		Description: "Verify a bug on every live device and apply the aggregated verdict. Blocks until all devices report.",
	}, s.handleVerify(lifecycle.IntentVerify))

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "reverify_bug",
		Description: "Re-verify a bug (usually one marked fixed) on every live device.",
	}, s.handleVerify(lifecycle.IntentReverify))

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "verify_pending",
		Description: "Verify every pending bug, one bug at a time.",
	}, s.handleBatch(func(o *orchestrate.Orchestrator) batchFunc { return o.VerifyPending }))

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "reverify_fixed",
		Description: "Re-verify every fixed bug, one bug at a time.",
	}, s.handleBatch(func(o *orchestrate.Orchestrator) batchFunc { return o.ReverifyFixed }))

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "mark_fixed",
		Description: "Mark a verified bug as fixed.",
	}, s.handleMarkFixed)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "update_bug",
		Description: "Manually set a bug's status and/or notes without running a verification.",
	}, s.handleUpdateBug)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "delete_bug",
		Description: "Delete a bug.",
	}, s.handleDeleteBug)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_targets",
		Description: "List known devices and whether they are live.",
	}, s.handleListTargets)
}

func (s *Server) registerAgentTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "next_task",
		Description: "Device agents: wait for the next verification task, optionally only for your device (target_id). Returns available=false on timeout.",
	}, s.handleNextTask)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "submit_result",
		Description: "Device agents: report whether the bug reproduced for a dispatch_id from next_task. Set error instead when the run could not be completed.",
	}, s.handleSubmitResult)
}

// --- Tool input/output types ---

type bugView struct {
	ID           string   `json:"id"`
	AppName      string   `json:"app_name"`
	Package      string   `json:"app_package,omitempty"`
	Description  string   `json:"bug"`
	Status       string   `json:"status"`
	Severity     int      `json:"severity,omitempty"`
	CreatedAt    string   `json:"created_at"`
	LastVerified string   `json:"last_verified,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	Steps        []string `json:"steps,omitempty"`
}

func viewOf(b *bug.Bug) bugView {
	v := bugView{
		ID:          b.ID,
		AppName:     b.AppName,
		Package:     b.Package,
		Description: b.Description,
		Status:      string(b.Status),
		Severity:    b.Severity,
		CreatedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
		Notes:       b.Notes,
		Steps:       b.Steps,
	}
	if b.LastVerified != nil {
		v.LastVerified = b.LastVerified.UTC().Format(time.RFC3339)
	}
	return v
}

type listBugsInput struct {
	Status  string `json:"status,omitempty" jsonschema:"only bugs in this status"`
	Package string `json:"app_package,omitempty" jsonschema:"only bugs for this app package"`
}

type listBugsOutput struct {
	Bugs  []bugView `json:"bugs"`
	Count int       `json:"count"`
}

type bugIDInput struct {
	BugID string `json:"bug_id" jsonschema:"8-character bug ID"`
}

type bugOutput struct {
	Bug bugView `json:"bug"`
}

type statsInput struct{}

type addBugInput struct {
	AppName     string `json:"app_name" jsonschema:"app display name"`
	Package     string `json:"app_package,omitempty" jsonschema:"app package identifier; resolved from the name when omitted"`
	Description string `json:"bug" jsonschema:"what goes wrong"`
	Severity    int    `json:"severity,omitempty" jsonschema:"1 (cosmetic) to 5 (crash or data loss)"`
}

type addBugOutput struct {
	Bug     bugView `json:"bug"`
	Created bool    `json:"created"`
}

type runOutput struct {
	RunID      string               `json:"run_id"`
	Intent     string               `json:"intent"`
	Reproduced bool                 `json:"reproduced"`
	Confidence string               `json:"confidence"`
	Summary    string               `json:"summary"`
	Results    []verdict.Result     `json:"results"`
	Transition lifecycle.Transition `json:"transition"`
	Bug        bugView              `json:"bug"`
	// Error is set when the verdict was reached but could not be saved.
	Error string `json:"error,omitempty"`
}

type batchInput struct{}

type batchItemView struct {
	BugID      string `json:"bug_id"`
	Intent     string `json:"intent,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	Reproduced bool   `json:"reproduced,omitempty"`
	Confidence string `json:"confidence,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Error      string `json:"error,omitempty"`
}

type batchOutput struct {
	Items  []batchItemView `json:"items"`
	Failed int             `json:"failed"`
}

type updateBugInput struct {
	BugID  string  `json:"bug_id" jsonschema:"8-character bug ID"`
	Status *string `json:"status,omitempty" jsonschema:"new status"`
	Notes  *string `json:"notes,omitempty" jsonschema:"replacement notes"`
}

type okOutput struct {
	OK string `json:"ok"`
}

type listTargetsInput struct{}

type listTargetsOutput struct {
	Targets []target.Target `json:"targets"`
	Live    int             `json:"live"`
}

type nextTaskInput struct {
	TargetID  string `json:"target_id,omitempty" jsonschema:"only tasks for this device serial"`
	TimeoutMS int    `json:"timeout_ms,omitempty" jsonschema:"max wait in milliseconds"`
}

type nextTaskOutput struct {
	Available   bool   `json:"available"`
	DispatchID  int64  `json:"dispatch_id,omitempty"`
	BugID       string `json:"bug_id,omitempty"`
	AppName     string `json:"app_name,omitempty"`
	Package     string `json:"app_package,omitempty"`
	Description string `json:"bug,omitempty"`
	TargetID    string `json:"target_id,omitempty"`
	Goal        string `json:"goal,omitempty"`
}

type submitResultInput struct {
	DispatchID   int64    `json:"dispatch_id" jsonschema:"dispatch ID from next_task"`
	Reproduced   bool     `json:"bug_reproduced,omitempty" jsonschema:"whether the bug was observed"`
	Observations string   `json:"observations,omitempty" jsonschema:"what the agent saw"`
	Steps        []string `json:"steps_executed,omitempty" jsonschema:"UI steps performed"`
	Error        string   `json:"error,omitempty" jsonschema:"set when the run could not be completed"`
	Partial      string   `json:"partial_trace,omitempty" jsonschema:"trace produced before the failure"`
}

// --- Tool handlers ---

func (s *Server) handleListBugs(ctx context.Context, _ *sdkmcp.CallToolRequest, in listBugsInput) (*sdkmcp.CallToolResult, listBugsOutput, error) {
	f := store.Filter{Package: in.Package}
	if in.Status != "" {
		st, err := bug.ParseStatus(in.Status)
		if err != nil {
			return nil, listBugsOutput{}, err
		}
		f.Status = st
	}
	bugs, err := s.deps.Store.ListBugs(ctx, f)
	if err != nil {
		return nil, listBugsOutput{}, fmt.Errorf("list_bugs: %w", err)
	}
	out := listBugsOutput{Bugs: make([]bugView, 0, len(bugs)), Count: len(bugs)}
	for _, b := range bugs {
		out.Bugs = append(out.Bugs, viewOf(b))
	}
	return nil, out, nil
}

func (s *Server) handleGetBug(ctx context.Context, _ *sdkmcp.CallToolRequest, in bugIDInput) (*sdkmcp.CallToolResult, bugOutput, error) {
	b, err := s.deps.Store.LoadBug(ctx, in.BugID)
	if err != nil {
		return nil, bugOutput{}, err
	}
	return nil, bugOutput{Bug: viewOf(b)}, nil
}

func (s *Server) handleGetStats(ctx context.Context, _ *sdkmcp.CallToolRequest, _ statsInput) (*sdkmcp.CallToolResult, bug.Stats, error) {
	bugs, err := s.deps.Store.ListBugs(ctx, store.Filter{})
	if err != nil {
		return nil, bug.Stats{}, fmt.Errorf("get_stats: %w", err)
	}
	return nil, bug.ComputeStats(bugs), nil
}

func (s *Server) handleAddBug(ctx context.Context, _ *sdkmcp.CallToolRequest, in addBugInput) (*sdkmcp.CallToolResult, addBugOutput, error) {
	b, created, err := s.deps.Intake.Add(ctx, bug.Input{
		AppName:     in.AppName,
		Package:     in.Package,
		Description: in.Description,
		Severity:    in.Severity,
	})
	if err != nil {
		return nil, addBugOutput{}, err
	}
	return nil, addBugOutput{Bug: viewOf(b), Created: created}, nil
}

func (s *Server) handleVerify(intent lifecycle.Intent) sdkmcp.ToolHandlerFor[bugIDInput, runOutput] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, in bugIDInput) (*sdkmcp.CallToolResult, runOutput, error) {
		rep, err := s.deps.Orchestrator.Run(ctx, in.BugID, intent)
		if rep == nil {
			return nil, runOutput{}, err
		}
		out := runOutput{
			RunID:      rep.RunID,
			Intent:     string(rep.Intent),
			Reproduced: rep.Verdict.Reproduced,
			Confidence: string(rep.Verdict.Confidence),
			Summary:    rep.Verdict.Summary,
			Results:    rep.Verdict.Results,
			Transition: rep.Transition,
			Bug:        viewOf(rep.Bug),
		}
		if err != nil {
			out.Error = err.Error()
		}
		return nil, out, nil
	}
}

type batchFunc func(context.Context) (orchestrate.BatchReport, error)

func (s *Server) handleBatch(pick func(*orchestrate.Orchestrator) batchFunc) sdkmcp.ToolHandlerFor[batchInput, batchOutput] {
	return func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ batchInput) (*sdkmcp.CallToolResult, batchOutput, error) {
		rep, err := pick(s.deps.Orchestrator)(ctx)
		if err != nil && len(rep.Items) == 0 {
			return nil, batchOutput{}, err
		}
		out := batchOutput{Items: make([]batchItemView, 0, len(rep.Items)), Failed: rep.Failed()}
		for _, it := range rep.Items {
			v := batchItemView{BugID: it.BugID, Intent: string(it.Intent), Skipped: it.Skipped}
			if it.Report != nil {
				v.Reproduced = it.Report.Verdict.Reproduced
				v.Confidence = string(it.Report.Verdict.Confidence)
				v.From = string(it.Report.Transition.From)
				v.To = string(it.Report.Transition.To)
			}
			if it.Err != nil {
				v.Error = it.Err.Error()
			}
			out.Items = append(out.Items, v)
		}
		return nil, out, err
	}
}

func (s *Server) handleMarkFixed(ctx context.Context, _ *sdkmcp.CallToolRequest, in bugIDInput) (*sdkmcp.CallToolResult, bugOutput, error) {
	b, err := s.deps.Orchestrator.MarkFixed(ctx, in.BugID)
	if err != nil {
		return nil, bugOutput{}, err
	}
	return nil, bugOutput{Bug: viewOf(b)}, nil
}

func (s *Server) handleUpdateBug(ctx context.Context, _ *sdkmcp.CallToolRequest, in updateBugInput) (*sdkmcp.CallToolResult, bugOutput, error) {
	if in.Status == nil && in.Notes == nil {
		return nil, bugOutput{}, errors.New("nothing to update: set status and/or notes")
	}
	var status *bug.Status
	if in.Status != nil {
		st, err := bug.ParseStatus(*in.Status)
		if err != nil {
			return nil, bugOutput{}, err
		}
		status = &st
	}
	b, err := s.deps.Orchestrator.Edit(ctx, in.BugID, status, in.Notes)
	if err != nil {
		return nil, bugOutput{}, err
	}
	return nil, bugOutput{Bug: viewOf(b)}, nil
}

func (s *Server) handleDeleteBug(ctx context.Context, _ *sdkmcp.CallToolRequest, in bugIDInput) (*sdkmcp.CallToolResult, okOutput, error) {
	if err := s.deps.Orchestrator.Delete(ctx, in.BugID); err != nil {
		return nil, okOutput{}, err
	}
	return nil, okOutput{OK: "deleted " + in.BugID}, nil
}

func (s *Server) handleListTargets(ctx context.Context, _ *sdkmcp.CallToolRequest, _ listTargetsInput) (*sdkmcp.CallToolResult, listTargetsOutput, error) {
	all, err := s.deps.Registry.All(ctx)
	if err != nil {
		return nil, listTargetsOutput{}, fmt.Errorf("list_targets: %w", err)
	}
	out := listTargetsOutput{Targets: all}
	for _, t := range all {
		if t.Live {
			out.Live++
		}
	}
	if out.Targets == nil {
		out.Targets = []target.Target{}
	}
	return nil, out, nil
}

func (s *Server) handleNextTask(ctx context.Context, _ *sdkmcp.CallToolRequest, in nextTaskInput) (*sdkmcp.CallToolResult, nextTaskOutput, error) {
	timeout := DefaultNextTaskTimeout
	if in.TimeoutMS > 0 {
		timeout = time.Duration(in.TimeoutMS) * time.Millisecond
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	task, err := s.deps.Mux.NextTask(waitCtx, in.TargetID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, nextTaskOutput{Available: false}, nil
		}
		return nil, nextTaskOutput{}, fmt.Errorf("next_task: %w", err)
	}
	s.log.Info("task handed to agent",
		slog.Int64("dispatch_id", task.DispatchID),
		slog.String("bug_id", task.BugID),
		slog.String("target_id", task.TargetID),
	)
	return nil, nextTaskOutput{
		Available:   true,
		DispatchID:  task.DispatchID,
		BugID:       task.BugID,
		AppName:     task.AppName,
		Package:     task.Package,
		Description: task.Description,
		TargetID:    task.TargetID,
		Goal:        task.Goal,
	}, nil
}

func (s *Server) handleSubmitResult(_ context.Context, _ *sdkmcp.CallToolRequest, in submitResultInput) (*sdkmcp.CallToolResult, okOutput, error) {
	sub := agent.Submission{
		Outcome: agent.Outcome{
			Reproduced:   in.Reproduced,
			Observations: in.Observations,
			Steps:        in.Steps,
			Raw:          in.Observations,
		},
		Error:   in.Error,
		Partial: in.Partial,
	}
	if err := s.deps.Mux.SubmitResult(in.DispatchID, sub); err != nil {
		return nil, okOutput{}, fmt.Errorf("submit_result: %w", err)
	}
	return nil, okOutput{OK: "result accepted"}, nil
}
