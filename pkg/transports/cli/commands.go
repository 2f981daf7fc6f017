package cli

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InvocationRecorder is notified after every CLI invocation.
type InvocationRecorder interface {
	RecordCLIInvocation(command string, exitCode int, duration time.Duration)
}

// Client issues typed provisioning commands through a Runner.
type Client struct {
	runner   Runner
	markers  []string
	recorder InvocationRecorder
	logger   zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAlreadyExistsMarkers overrides the substrings treated as "resource already exists".
func WithAlreadyExistsMarkers(markers ...string) ClientOption {
	return func(c *Client) {
		c.markers = append([]string(nil), markers...)
	}
}

// WithInvocationRecorder reports every invocation to r.
func WithInvocationRecorder(r InvocationRecorder) ClientOption {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client on top of runner.
func NewClient(runner Runner, opts ...ClientOption) *Client {
	c := &Client{
		runner:  runner,
		markers: []string{DefaultAlreadyExistsMarker},
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "catalyst-cli").Logger()
	return c
}

// UseCatalyst selects the Catalyst product context: "product use catalyst".
func (c *Client) UseCatalyst(ctx context.Context) error {
	_, err := c.run(ctx, "", newArgs("product", "use", "catalyst"))
	return err
}

// CreateProject runs "project create".
func (c *Client) CreateProject(ctx context.Context, name string, opts CreateProjectOptions) (engine.ResourceOutcome, error) {
	if err := requireName(name, "project name required", "project create"); err != nil {
		return "", err
	}

	args := newArgs("project", "create", name)
	args.optional("--region", opts.Region)
	args.boolean("--deploy-managed-pubsub", opts.DeployManagedPubSub)
	args.boolean("--deploy-managed-kv", opts.DeployManagedKv)
	args.flag("--enable-managed-workflow", opts.EnableManagedWorkflow)
	args.flag("--wait", opts.Wait)
	args.flag("--use", opts.Use)
	args.flag("--disable-app-tunnels", opts.DisableAppTunnels)

	return c.create(ctx, name, args)
}

// UseProject runs "project use".
func (c *Client) UseProject(ctx context.Context, name string) error {
	if err := requireName(name, "project name required", "project use"); err != nil {
		return err
	}
	_, err := c.run(ctx, name, newArgs("project", "use", name))
	return err
}

// GetProject runs "project get --output json".
func (c *Client) GetProject(ctx context.Context, name string) (*ProjectOutput, error) {
	if err := requireName(name, "project name required", "project get"); err != nil {
		return nil, err
	}

	result, err := c.run(ctx, name, newArgs("project", "get", name, "--output", "json"))
	if err != nil {
		return nil, err
	}

	var out ProjectOutput
	if err := decode(result, name, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateApp runs "appid create".
func (c *Client) CreateApp(ctx context.Context, appID string, opts CreateAppOptions) (engine.ResourceOutcome, error) {
	if err := requireName(appID, "app id required", "appid create"); err != nil {
		return "", err
	}

	args := newArgs("appid", "create", appID)
	args.optional("--project", opts.Project)
	args.optional("--app-endpoint", opts.AppEndpoint)
	args.optional("--app-token", opts.AppToken)
	args.optional("--app-protocol", opts.AppProtocol)
	args.optional("--app-config", opts.AppConfig)
	args.flag("--enable-app-health-check", opts.EnableAppHealthCheck)
	args.optional("--app-health-check-path", opts.AppHealthCheckPath)
	args.optionalInt("--app-health-probe-interval", opts.AppHealthProbeInterval)
	args.optionalInt("--app-health-probe-timeout", opts.AppHealthProbeTimeout)
	args.optionalInt("--app-health-threshold", opts.AppHealthThreshold)
	args.optionalInt("--app-channel-timeout-seconds", opts.AppChannelTimeoutSeconds)
	args.flag("--wait", opts.Wait)

	return c.create(ctx, appID, args)
}

// GetApp runs "appid get --output json".
func (c *Client) GetApp(ctx context.Context, appID string) (*AppOutput, error) {
	if err := requireName(appID, "app id required", "appid get"); err != nil {
		return nil, err
	}

	result, err := c.run(ctx, appID, newArgs("appid", "get", appID, "--output", "json"))
	if err != nil {
		return nil, err
	}

	var out AppOutput
	if err := decode(result, appID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateComponent runs "component create". The descriptor is validated first; an
// invalid descriptor never reaches the CLI.
func (c *Client) CreateComponent(ctx context.Context, desc engine.ComponentDescriptor, opts CreateComponentOptions) (engine.ResourceOutcome, error) {
	if err := desc.Validate(); err != nil {
		return "", err
	}

	args := newArgs("component", "create", desc.Name, "--type", desc.Type)
	args.metadata(desc)
	args.scopes(desc.Scopes)
	args.optional("--project", opts.Project)
	args.flag("--wait", opts.Wait)

	return c.create(ctx, desc.Name, args)
}

// CreatePubSub runs "pubsub create".
func (c *Client) CreatePubSub(ctx context.Context, name string, opts CreatePubSubOptions) (engine.ResourceOutcome, error) {
	if err := requireName(name, "pub/sub broker name required", "pubsub create"); err != nil {
		return "", err
	}

	args := newArgs("pubsub", "create", name)
	args.optional("--project", opts.Project)
	args.scopes(opts.Scopes)
	args.flag("--wait", opts.Wait)

	return c.create(ctx, name, args)
}

// CreateKvStore runs "kv create".
func (c *Client) CreateKvStore(ctx context.Context, name string, opts CreateKvStoreOptions) (engine.ResourceOutcome, error) {
	if err := requireName(name, "kv store name required", "kv create"); err != nil {
		return "", err
	}

	args := newArgs("kv", "create", name)
	args.optional("--project", opts.Project)
	args.scopes(opts.Scopes)
	args.flag("--wait", opts.Wait)

	return c.create(ctx, name, args)
}

// ListKvStores runs "kv list --output json --project P".
func (c *Client) ListKvStores(ctx context.Context, project string) (*ListOutput, error) {
	if err := requireName(project, "project name required", "kv list"); err != nil {
		return nil, err
	}

	result, err := c.run(ctx, project, newArgs("kv", "list", "--output", "json", "--project", project))
	if err != nil {
		return nil, err
	}

	var out ListOutput
	if err := decode(result, project, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// KvStoreExists reports whether the project has a KV store named exactly name.
func (c *Client) KvStoreExists(ctx context.Context, name, project string) (bool, error) {
	if err := requireName(name, "kv store name required", "kv list"); err != nil {
		return false, err
	}

	list, err := c.ListKvStores(ctx, project)
	if err != nil {
		return false, err
	}
	return list.Contains(name), nil
}

// DevRunArgs returns the arguments of "dev run" for one app identity.
func DevRunArgs(opts DevRunOptions) []string {
	args := newArgs("dev", "run")
	args.flag("--approve", opts.Approve)
	args.optional("--project", opts.Project)
	args.optional("--app-id", opts.AppID)
	if opts.AppPort > 0 {
		args.add("--app-port", strconv.Itoa(opts.AppPort))
	}
	return args.strings()
}

// DevRun runs the local proxy for one app identity until ctx ends.
func DevRun(ctx context.Context, streamer Streamer, opts DevRunOptions, stdout, stderr io.Writer) error {
	if err := requireName(opts.AppID, "app id required", "dev run"); err != nil {
		return err
	}
	return streamer.Stream(ctx, DevRunArgs(opts), stdout, stderr)
}

// create runs a create command. A failure whose output says the resource already
// exists is reported as engine.OutcomeExisting.
func (c *Client) create(ctx context.Context, resource string, args *argList) (engine.ResourceOutcome, error) {
	result, err := c.invoke(ctx, args.strings())
	if err != nil {
		return "", withResource(err, resource)
	}

	if result.ExitCode == 0 {
		return engine.OutcomeCreated, nil
	}
	if c.alreadyExists(result) {
		c.logger.Debug().
			Str("command", commandName(result.Args)).
			Str("resource", resource).
			Msg("Resource already exists")
		return engine.OutcomeExisting, nil
	}
	return "", cliError(result, resource)
}

// run runs a non-create command. Any non-zero exit is a failure.
func (c *Client) run(ctx context.Context, resource string, args *argList) (*Result, error) {
	result, err := c.invoke(ctx, args.strings())
	if err != nil {
		return nil, withResource(err, resource)
	}
	if result.ExitCode != 0 {
		return nil, cliError(result, resource)
	}
	return result, nil
}

func (c *Client) invoke(ctx context.Context, args []string) (*Result, error) {
	result, err := c.runner.Run(ctx, args)
	if c.recorder != nil && result != nil {
		c.recorder.RecordCLIInvocation(commandName(args), result.ExitCode, result.Duration)
	}
	return result, err
}

func (c *Client) alreadyExists(result *Result) bool {
	output := result.Output()
	for _, marker := range c.markers {
		if marker != "" && strings.Contains(output, marker) {
			return true
		}
	}
	return false
}

func cliError(result *Result, resource string) error {
	e := engine.NewPermanentError(
		"provisioning command failed with exit code "+strconv.Itoa(result.ExitCode), nil,
	).
		WithCode(engine.ErrCodeCLIFailed).
		WithOperation(commandName(result.Args)).
		WithDetail("exit_code", result.ExitCode).
		WithDetail("stdout", result.Stdout).
		WithDetail("stderr", result.Stderr)
	if output := result.Output(); output != "" {
		e.Message += ": " + output
	}
	if resource != "" {
		e = e.WithResource(resource)
	}
	return e
}

func decode(result *Result, resource string, v any) error {
	if err := json.Unmarshal([]byte(result.Stdout), v); err != nil {
		return engine.NewPermanentError("malformed CLI output", err).
			WithCode(engine.ErrCodeMalformed).
			WithOperation(commandName(result.Args)).
			WithResource(resource).
			WithDetail("stdout", result.Stdout)
	}
	return nil
}

func requireName(name, message, operation string) error {
	if strings.TrimSpace(name) == "" {
		return engine.NewValidationError(message).WithOperation(operation)
	}
	return nil
}

func withResource(err error, resource string) error {
	if e, ok := err.(*engine.EngineError); ok && e.Resource == "" && resource != "" {
		return e.WithResource(resource)
	}
	return err
}
