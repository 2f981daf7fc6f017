package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// OrchestratorOptions configures an Orchestrator. Every field is optional.
type OrchestratorOptions struct {
	// Publisher receives every state transition.
	Publisher StatusPublisher

	// Recorder persists run history.
	Recorder RunRecorder

	// Observer wraps each provisioner call.
	Observer OperationObserver

	// Logger is the base logger. Defaults to the global zerolog logger.
	Logger *zerolog.Logger

	// Quiet suppresses the welcome banner.
	Quiet bool
}

// Orchestrator drives a Provisioner through the fixed provisioning sequence for one
// ResourceGraph. It runs once; it is neither re-entrant nor restarted on failure.
type Orchestrator struct {
	provisioner Provisioner
	publisher   StatusPublisher
	recorder    RunRecorder
	observer    OperationObserver
	logger      zerolog.Logger
	quiet       bool

	mu      sync.Mutex
	started bool
	runID   string
	cancel  context.CancelFunc
	done    chan struct{}
	result  *RunResult
}

// NewOrchestrator creates an orchestrator for the given provisioner.
func NewOrchestrator(provisioner Provisioner, opts OrchestratorOptions) *Orchestrator {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Orchestrator{
		provisioner: provisioner,
		publisher:   opts.Publisher,
		recorder:    opts.Recorder,
		observer:    opts.Observer,
		logger:      logger.With().Str("component", "orchestrator").Logger(),
		quiet:       opts.Quiet,
		done:        make(chan struct{}),
	}
}

// Start snapshots the graph and provisions it on a detached goroutine with its own
// lifetime. It returns the run ID immediately without waiting for provisioning.
func (o *Orchestrator) Start(graph *ResourceGraph) (string, error) {
	if graph == nil {
		return "", NewValidationError("resource graph is nil").WithOperation("start")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return "", NewPermanentError("orchestrator already started", nil).
			WithCode(ErrCodeAlreadyStarted).WithResource(graph.ProjectName())
	}
	if err := graph.claim(); err != nil {
		return "", err
	}

	snapshot := graph.Snapshot()
	runCtx, cancel := context.WithCancel(context.Background())

	o.started = true
	o.runID = uuid.New().String()
	o.cancel = cancel

	runID := o.runID
	go func() {
		defer cancel()
		result := o.run(runCtx, runID, graph, snapshot)

		o.mu.Lock()
		o.result = result
		o.mu.Unlock()
		close(o.done)
	}()

	return runID, nil
}

// Provision starts the run and waits for it. Cancelling ctx cancels the run.
func (o *Orchestrator) Provision(ctx context.Context, graph *ResourceGraph) (*RunResult, error) {
	if _, err := o.Start(graph); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, o.Cancel)
	defer stop()

	<-o.done
	return o.Result(), nil
}

// Wait blocks until the run is finished or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) (*RunResult, error) {
	select {
	case <-o.done:
		return o.Result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed when the run has finished.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Result returns the terminal result, or nil while the run is in progress.
func (o *Orchestrator) Result() *RunResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// RunID returns the ID of the current run, or "" before Start.
func (o *Orchestrator) RunID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runID
}

// Cancel cancels the background run. The step in flight fails and the graph moves to
// FailedToStart.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// step is one state of the sequence and the provisioner work done in it.
type step struct {
	state ProvisioningState
	run   func(ctx context.Context) error
}

// run executes the sequence. Steps run strictly one after another; the first error
// moves the graph to FailedToStart and the remaining steps are skipped.
func (o *Orchestrator) run(ctx context.Context, runID string, graph *ResourceGraph, snap *GraphSnapshot) *RunResult {
	project := snap.Project.Name
	logger := o.logger.With().Str("resource", project).Str("run_id", runID).Logger()

	result := &RunResult{
		RunID:     runID,
		Project:   project,
		StartedAt: time.Now(),
	}

	if !o.quiet {
		logBanner(logger)
	}

	if o.recorder != nil {
		if err := o.recorder.BeginRun(ctx, runID, snap); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run start")
		}
	}

	r := &runner{
		Orchestrator: o,
		runID:        runID,
		graph:        graph,
		snap:         snap,
		logger:       logger,
	}

	steps := []step{
		{StateStarting, r.initProvisioner},
		{StateEnsuringProject, r.ensureProject},
		{StateSelectingProject, r.selectProject},
		{StateLoadingProjectDetails, r.loadProjectDetails},
		{StateEnsuringApplications, r.ensureApplications},
		{StateEnsuringServices, r.ensurePubSubs},
		{StateEnsuringKvStores, r.ensureKvStores},
		{StateEnsuringComponents, r.ensureComponents},
	}

	for _, s := range steps {
		r.publish(ctx, s.state, nil)

		if err := s.run(ctx); err != nil {
			err = classifyRunError(ctx, err)
			logger.Error().Err(err).Str("state", string(s.state)).Msg(err.Error())
			r.publish(ctx, StateFailedToStart, err)

			result.State = StateFailedToStart
			result.Err = err
			return o.finish(ctx, result, logger)
		}
	}

	r.publish(ctx, StateFinished, nil)
	logger.Info().
		Int("apps", len(snap.Apps)).
		Int("pubsubs", len(snap.PubSubs)).
		Int("kv_stores", len(snap.KvStores)).
		Int("components", len(snap.Components)).
		Msg("Catalyst environment provisioned")

	result.State = StateFinished
	return o.finish(ctx, result, logger)
}

func (o *Orchestrator) finish(ctx context.Context, result *RunResult, logger zerolog.Logger) *RunResult {
	result.FinishedAt = time.Now()

	if o.recorder != nil {
		// The run context may already be cancelled; history is still written.
		if err := o.recorder.FinishRun(context.WithoutCancel(ctx), result); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run result")
		}
	}
	return result
}

// runner holds the per-run state shared by the steps.
type runner struct {
	*Orchestrator
	runID  string
	graph  *ResourceGraph
	snap   *GraphSnapshot
	logger zerolog.Logger
}

func (r *runner) initProvisioner(ctx context.Context) error {
	return r.observe(ctx, "init", "", func(ctx context.Context) error {
		return r.provisioner.Init(ctx)
	})
}

func (r *runner) ensureProject(ctx context.Context) error {
	project := r.snap.Project
	return r.observe(ctx, "create-project", project.Name, func(ctx context.Context) error {
		outcome, err := r.provisioner.CreateProject(ctx, project)
		if err != nil {
			return err
		}
		r.recordResource(ctx, ResourceKindProject, project.Name, outcome)
		return nil
	})
}

func (r *runner) selectProject(ctx context.Context) error {
	name := r.snap.Project.Name
	return r.observe(ctx, "use-project", name, func(ctx context.Context) error {
		return r.provisioner.UseProject(ctx, name)
	})
}

func (r *runner) loadProjectDetails(ctx context.Context) error {
	name := r.snap.Project.Name
	return r.observe(ctx, "get-project", name, func(ctx context.Context) error {
		details, err := r.provisioner.GetProjectDetails(ctx, name)
		if err != nil {
			return err
		}
		if details == nil {
			return NewPermanentError("no project details returned", nil).
				WithCode(ErrCodeNotFound).WithResource(name)
		}

		r.graph.HTTPEndpoint().Set(details.HTTPEndpoint)
		r.graph.GRPCEndpoint().Set(details.GRPCEndpoint)

		r.logger.Info().
			Str("http_endpoint", details.HTTPEndpoint).
			Str("grpc_endpoint", details.GRPCEndpoint).
			Msg("Project endpoints resolved")
		return nil
	})
}

func (r *runner) ensureApplications(ctx context.Context) error {
	project := r.snap.Project.Name

	for _, app := range r.snap.Apps {
		err := r.observe(ctx, "create-app", app.Name, func(ctx context.Context) error {
			outcome, err := r.provisioner.CreateApp(ctx, app, project)
			if err != nil {
				return err
			}
			r.recordResource(ctx, ResourceKindApp, app.Name, outcome)
			return nil
		})
		if err != nil {
			return err
		}

		err = r.observe(ctx, "get-app", app.Name, func(ctx context.Context) error {
			details, err := r.provisioner.GetAppDetails(ctx, app.Name)
			if err != nil {
				return err
			}
			if details == nil {
				return NewPermanentError("no app details returned", nil).
					WithCode(ErrCodeNotFound).WithResource(app.Name)
			}

			future, ok := r.graph.AppDetails(app.Name)
			if !ok {
				return NewPermanentError("app has no credentials future", nil).
					WithCode(ErrCodeInternal).WithResource(app.Name)
			}
			future.Set(*details)
			return nil
		})
		if err != nil {
			return err
		}

		r.logger.Info().Str("app", app.Name).Msg("App identity ready")
	}
	return nil
}

func (r *runner) ensurePubSubs(ctx context.Context) error {
	for _, ps := range r.snap.PubSubs {
		err := r.observe(ctx, "create-pubsub", ps.Name, func(ctx context.Context) error {
			outcome, err := r.provisioner.CreatePubSub(ctx, ps.Name, ps.PubSubDescriptor)
			if err != nil {
				return err
			}
			r.recordResource(ctx, ResourceKindPubSub, ps.Name, outcome)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) ensureKvStores(ctx context.Context) error {
	for _, kv := range r.snap.KvStores {
		var exists bool
		err := r.observe(ctx, "check-kvstore", kv.Name, func(ctx context.Context) error {
			var err error
			exists, err = r.provisioner.CheckKvStoreExists(ctx, kv.Name, r.snap.Project.Name)
			return err
		})
		if err != nil {
			return err
		}

		if exists {
			r.logger.Debug().Str("kv_store", kv.Name).Msg("KV store already exists")
			r.recordResource(ctx, ResourceKindKvStore, kv.Name, OutcomeExisting)
			continue
		}

		err = r.observe(ctx, "create-kvstore", kv.Name, func(ctx context.Context) error {
			outcome, err := r.provisioner.CreateKvStore(ctx, kv.Name, kv.KvStoreDescriptor)
			if err != nil {
				return err
			}
			r.recordResource(ctx, ResourceKindKvStore, kv.Name, outcome)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) ensureComponents(ctx context.Context) error {
	project := r.snap.Project.Name

	for _, component := range r.snap.Components {
		err := r.observe(ctx, "create-component", component.Name, func(ctx context.Context) error {
			outcome, err := r.provisioner.CreateComponent(ctx, component, project)
			if err != nil {
				return err
			}
			r.recordResource(ctx, ResourceKindComponent, component.Name, outcome)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// observe runs fn through the configured observer.
func (r *runner) observe(ctx context.Context, operation, resource string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.observer == nil {
		return fn(ctx)
	}
	return r.observer.ObserveOperation(ctx, operation, resource, fn)
}

// publish moves the graph to state and notifies the publisher and recorder.
func (r *runner) publish(ctx context.Context, state ProvisioningState, cause error) {
	update := StatusUpdate{
		RunID:     r.runID,
		Project:   r.snap.Project.Name,
		State:     state,
		Style:     state.Style(),
		Message:   state.DisplayName(),
		Timestamp: time.Now(),
	}
	if cause != nil {
		update.Error = cause.Error()
	}

	if err := r.graph.transition(update, cause); err != nil {
		r.logger.Error().Err(err).Msg("Rejected state transition")
		return
	}

	r.logger.Info().Str("state", string(state)).Msg(update.Message)

	// Publishing must not be cut short by the run's own cancellation.
	pubCtx := context.WithoutCancel(ctx)
	if r.publisher != nil {
		if err := r.publisher.PublishStatus(pubCtx, update); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to publish status")
		}
	}
	if r.recorder != nil {
		if err := r.recorder.RecordTransition(pubCtx, update); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to record transition")
		}
	}
}

func (r *runner) recordResource(ctx context.Context, kind ResourceKind, name string, outcome ResourceOutcome) {
	r.logger.Debug().
		Str("kind", string(kind)).
		Str("name", name).
		Str("outcome", string(outcome)).
		Msg("Resource ensured")

	if r.recorder == nil {
		return
	}
	record := ResourceRecord{
		RunID:     r.runID,
		Kind:      kind,
		Name:      name,
		Project:   r.snap.Project.Name,
		Outcome:   outcome,
		Timestamp: time.Now(),
	}
	if err := r.recorder.RecordResource(context.WithoutCancel(ctx), record); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to record resource")
	}
}

// classifyRunError tags cancellation so it is distinguishable from backend failures.
func classifyRunError(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || GetErrorCode(err) == "") {
		return NewTransientError("provisioning cancelled", err).WithCode(ErrCodeCancelled)
	}
	return err
}
