package cascade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/yungbote/personaforge-backend/internal/data/repos"
	"github.com/yungbote/personaforge-backend/internal/domain"
	"github.com/yungbote/personaforge-backend/internal/jobs/progress"
	"github.com/yungbote/personaforge-backend/internal/modules/generators"
	"github.com/yungbote/personaforge-backend/internal/platform/dbctx"
	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

const DefaultStageTimeout = 10 * time.Minute

// ErrInvalidRequest is returned for requests that name neither a stage nor executeAll.
var ErrInvalidRequest = errors.New("either executeAll or a stage id is required")

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
	outcomeTimeout   = "timeout"
)

type Config struct {
	StageTimeout time.Duration
	// BaseContext parents asynchronous runs; canceling it stops them.
	BaseContext context.Context
}

// Engine sequences the generation stages of one company at a time.
type Engine struct {
	log       *logger.Logger
	companies repos.CompanyRepo
	runs      repos.CascadeRunRepo
	status    CompletionChecker
	exec      Executor
	progress  progress.Store
	metrics   StageMetrics
	tracer    trace.Tracer

	timeout time.Duration
	baseCtx context.Context
	now     func() time.Time

	locks sync.Map // company id -> run id
	wg    sync.WaitGroup
}

type EngineDeps struct {
	Log       *logger.Logger
	Companies repos.CompanyRepo
	Runs      repos.CascadeRunRepo
	Status    CompletionChecker
	Executor  Executor
	Progress  progress.Store
	Metrics   StageMetrics
	Tracer    trace.Tracer
}

func NewEngine(deps EngineDeps, cfg Config) *Engine {
	timeout := cfg.StageTimeout
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	base := cfg.BaseContext
	if base == nil {
		base = context.Background()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("cascade")
	}
	store := deps.Progress
	if store == nil {
		store = progress.NewMemoryStore()
	}
	return &Engine{
		log:       deps.Log.With("service", "CascadeEngine"),
		companies: deps.Companies,
		runs:      deps.Runs,
		status:    deps.Status,
		exec:      deps.Executor,
		progress:  store,
		metrics:   deps.Metrics,
		tracer:    tracer,
		timeout:   timeout,
		baseCtx:   base,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Progress exposes the store runs report to.
func (e *Engine) Progress() progress.Store { return e.progress }

type plan struct {
	req     Request
	company *domain.Company
	stages  []domain.StageID
	started time.Time
}

func (e *Engine) prepare(ctx context.Context, req Request) (*plan, error) {
	var stages []domain.StageID
	switch {
	case req.ExecuteAll:
		stages = append(stages, domain.StageOrder...)
	case req.StageID != "":
		id, err := domain.ParseStageID(string(req.StageID))
		if err != nil {
			return nil, err
		}
		stages = []domain.StageID{id}
	default:
		return nil, ErrInvalidRequest
	}
	company, err := e.companies.GetByID(dbctx.Background(ctx), req.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	if company == nil {
		return nil, &domain.NotFoundError{Entity: "company", Key: req.CompanyID.String()}
	}
	if req.RunID == uuid.Nil {
		req.RunID = uuid.New()
	}
	if _, busy := e.locks.LoadOrStore(company.ID, req.RunID); busy {
		if e.metrics != nil {
			e.metrics.IncBusy()
		}
		return nil, domain.ErrCompanyBusy
	}
	p := &plan{req: req, company: company, stages: stages, started: e.now()}
	if err := e.createRun(ctx, p); err != nil {
		e.locks.Delete(company.ID)
		return nil, err
	}
	return p, nil
}

// Run executes the request and blocks until the run ends. Canceling ctx stops
// the run after the current stage is interrupted.
func (e *Engine) Run(ctx context.Context, req Request) (Summary, error) {
	p, err := e.prepare(ctx, req)
	if err != nil {
		return Summary{}, err
	}
	return e.execute(ctx, p), nil
}

// Start validates and locks synchronously, then runs in the background under
// the engine's base context. It returns the run id.
func (e *Engine) Start(ctx context.Context, req Request) (uuid.UUID, error) {
	p, err := e.prepare(ctx, req)
	if err != nil {
		return uuid.Nil, err
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.execute(e.baseCtx, p)
	}()
	return p.req.RunID, nil
}

// Wait blocks until every background run has finished.
func (e *Engine) Wait() { e.wg.Wait() }

// Busy reports whether company has a run in flight.
func (e *Engine) Busy(companyID uuid.UUID) bool {
	_, ok := e.locks.Load(companyID)
	return ok
}

func (e *Engine) execute(ctx context.Context, p *plan) Summary {
	defer e.locks.Delete(p.company.ID)

	req := p.req
	log := e.log.With("run_id", req.RunID, "company", p.company.Code, "mode", req.mode())
	started := p.started
	sum := Summary{
		RunID:       req.RunID,
		CompanyID:   p.company.ID,
		CompanyCode: p.company.Code,
		Mode:        req.mode(),
		Status:      domain.RunStatusRunning,
		Results:     make([]StepResult, 0, len(p.stages)),
	}
	// Bookkeeping writes outlive a canceled run so the stop is recorded.
	bg := dbctx.Background(context.WithoutCancel(ctx))

	tracker := progress.NewTracker(e.log, e.progress, req.RunID, p.company, len(p.stages))
	tracker.Start(ctx)
	if err := e.companies.SetStatus(bg, p.company.ID, domain.CompanyStatusProcessing); err != nil {
		log.Warn("Failed to mark company processing", "error", err)
	}
	log.Info("Cascade started", "stages", len(p.stages))

	ctx, span := e.tracer.Start(ctx, "cascade.run", trace.WithAttributes(
		attribute.String("run.id", req.RunID.String()),
		attribute.String("company.code", p.company.Code),
		attribute.Bool("run.force", req.ForceMode),
	))
	defer span.End()

	status := domain.RunStatusCompleted
	var runErr string
	for i, stage := range p.stages {
		if ctx.Err() != nil {
			status = domain.RunStatusStopped
			runErr = ctx.Err().Error()
			break
		}
		tracker.Step(ctx, i+1, stage)
		e.updateRun(bg, log, req.RunID, map[string]interface{}{"current_step": i + 1})

		res := e.runStage(ctx, log, p, stage, tracker)
		sum.Results = append(sum.Results, res)
		e.updateRun(bg, log, req.RunID, map[string]interface{}{"results": domain.EncodeJSON(sum.Results)})

		if !res.Success {
			runErr = res.ErrorMessage
			status = domain.RunStatusFailed
			if ctx.Err() != nil {
				status = domain.RunStatusStopped
			}
			break
		}
	}

	finished := e.now()
	sum.Status = status
	sum.Success = status == domain.RunStatusCompleted
	sum.TotalDurationMs = finished.Sub(started).Milliseconds()
	if !sum.Success {
		span.SetStatus(codes.Error, runErr)
	}

	if err := e.companies.SetStatus(bg, p.company.ID, domain.CompanyStatusActive); err != nil {
		log.Warn("Failed to mark company active", "error", err)
	}
	e.updateRun(bg, log, req.RunID, map[string]interface{}{
		"status":      status,
		"error":       runErr,
		"results":     domain.EncodeJSON(sum.Results),
		"finished_at": finished,
		"duration_ms": sum.TotalDurationMs,
	})
	tracker.Finish(ctx, status, runErr)
	if e.metrics != nil {
		e.metrics.ObserveRun(sum.Mode, status)
	}
	log.Info("Cascade finished", "status", status, "steps", len(sum.Results), "duration_ms", sum.TotalDurationMs)
	return sum
}

func (e *Engine) runStage(ctx context.Context, log *logger.Logger, p *plan, stage domain.StageID, tracker *progress.Tracker) StepResult {
	start := e.now()
	res := StepResult{StageID: stage, Timestamp: start}
	ctx, span := e.tracer.Start(ctx, "cascade.stage", trace.WithAttributes(attribute.String("stage", string(stage))))
	defer span.End()

	finish := func(outcome string, err error) StepResult {
		res.DurationMs = e.now().Sub(start).Milliseconds()
		if err != nil {
			res.ErrorMessage = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Warn("Stage failed", "stage", stage, "outcome", outcome, "error", err)
		}
		if e.metrics != nil {
			e.metrics.ObserveStage(string(stage), outcome, time.Duration(res.DurationMs)*time.Millisecond)
		}
		return res
	}

	if !p.req.ForceMode && e.status != nil {
		done, err := e.status.IsComplete(ctx, p.company.ID, stage)
		if err != nil {
			return finish(outcomeFailed, fmt.Errorf("status check: %w", err))
		}
		if done {
			res.Success = true
			res.Skipped = true
			log.Info("Stage already complete, skipping", "stage", stage)
			return finish(outcomeSkipped, nil)
		}
	}

	inv := Invocation{
		Stage:     stage,
		CompanyID: p.company.ID,
		Force:     p.req.ForceMode,
		OnPersona: func(label string) { tracker.Persona(ctx, label) },
	}
	gsum, err := e.invoke(ctx, inv)
	if err != nil {
		var te *domain.TimeoutError
		if errors.As(err, &te) {
			return finish(outcomeTimeout, err)
		}
		return finish(outcomeFailed, err)
	}
	res.Success = true
	res.Summary = &gsum
	log.Info("Stage succeeded", "stage", stage, "created", gsum.RecordsCreated, "failed", gsum.RecordsFailed)
	return finish(outcomeSucceeded, nil)
}

// invoke bounds the executor by the stage timeout. A stage that does not
// return after its deadline is abandoned.
func (e *Engine) invoke(ctx context.Context, inv Invocation) (generators.Summary, error) {
	tctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	type out struct {
		sum generators.Summary
		err error
	}
	ch := make(chan out, 1)
	go func() {
		s, err := e.exec.Execute(tctx, inv)
		ch <- out{sum: s, err: err}
	}()
	timeout := func() error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.TimeoutError{Stage: inv.Stage, Timeout: e.timeout}
	}
	select {
	case <-tctx.Done():
		return generators.Summary{}, timeout()
	case o := <-ch:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && tctx.Err() != nil {
			return o.sum, timeout()
		}
		return o.sum, o.err
	}
}

// createRun reserves the run id before anything runs under it. An id that
// already names a run, in the progress store or the database, is rejected.
func (e *Engine) createRun(ctx context.Context, p *plan) error {
	snap, err := e.progress.Get(ctx, p.req.RunID)
	if err != nil {
		e.log.Warn("Progress lookup failed", "run_id", p.req.RunID, "error", err)
	}
	if snap != nil {
		return fmt.Errorf("%w: %s", domain.ErrRunExists, p.req.RunID)
	}
	if e.runs == nil {
		return nil
	}
	dbc := dbctx.Background(ctx)
	existing, err := e.runs.GetByID(dbc, p.req.RunID)
	if err != nil {
		return fmt.Errorf("load cascade run: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", domain.ErrRunExists, p.req.RunID)
	}
	run := &domain.CascadeRun{
		ID:          p.req.RunID,
		CompanyID:   p.company.ID,
		CompanyCode: p.company.Code,
		Mode:        p.req.mode(),
		ExecuteAll:  p.req.ExecuteAll,
		Status:      domain.RunStatusRunning,
		TotalSteps:  len(p.stages),
		Results:     domain.EncodeJSON([]StepResult{}),
		StartedAt:   p.started,
	}
	if !p.req.ExecuteAll {
		run.StageID = string(p.stages[0])
	}
	if _, err := e.runs.Create(dbc, run); err != nil {
		// Lost a race with another request for the same id.
		if existing, _ := e.runs.GetByID(dbc, p.req.RunID); existing != nil {
			return fmt.Errorf("%w: %s", domain.ErrRunExists, p.req.RunID)
		}
		return fmt.Errorf("persist cascade run: %w", err)
	}
	return nil
}

func (e *Engine) updateRun(dbc dbctx.Context, log *logger.Logger, id uuid.UUID, fields map[string]interface{}) {
	if e.runs == nil {
		return
	}
	if err := e.runs.UpdateFields(dbc, id, fields); err != nil {
		log.Warn("Failed to update cascade run", "error", err)
	}
}
