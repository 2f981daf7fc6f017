package cli

import (
	"context"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
)

// Provisioner implements engine.Provisioner on top of the CLI client.
type Provisioner struct {
	client *Client
}

var _ engine.Provisioner = (*Provisioner)(nil)

// NewProvisioner wraps client.
func NewProvisioner(client *Client) *Provisioner {
	return &Provisioner{client: client}
}

// Init selects the Catalyst product context.
func (p *Provisioner) Init(ctx context.Context) error {
	return p.client.UseCatalyst(ctx)
}

// CreateProject creates the project and waits for it to be ready.
func (p *Provisioner) CreateProject(ctx context.Context, project engine.ProjectDescriptor) (engine.ResourceOutcome, error) {
	opts := DefaultCreateProjectOptions()
	opts.Region = project.Region
	opts.DeployManagedPubSub = project.DeployManagedPubSub
	opts.DeployManagedKv = project.DeployManagedKv
	opts.EnableManagedWorkflow = project.EnableManagedWorkflow
	opts.DisableAppTunnels = project.DisableAppTunnels

	return p.client.CreateProject(ctx, project.Name, opts)
}

// UseProject makes name the active project.
func (p *Provisioner) UseProject(ctx context.Context, name string) error {
	return p.client.UseProject(ctx, name)
}

// GetProjectDetails reads the project's HTTP and gRPC endpoints.
func (p *Provisioner) GetProjectDetails(ctx context.Context, name string) (*engine.ProjectDetails, error) {
	out, err := p.client.GetProject(ctx, name)
	if err != nil {
		return nil, err
	}

	details := &engine.ProjectDetails{
		HTTPEndpoint: out.Status.Endpoints.HTTP.URL,
		GRPCEndpoint: out.Status.Endpoints.GRPC.URL,
	}
	if details.HTTPEndpoint == "" || details.GRPCEndpoint == "" {
		return nil, engine.NewPermanentError("project has no endpoints", nil).
			WithCode(engine.ErrCodeMalformed).
			WithOperation("project get").
			WithResource(name).
			WithDetail("status", out.Status.Status)
	}
	return details, nil
}

// CreateApp creates an app identity in project.
func (p *Provisioner) CreateApp(ctx context.Context, app engine.AppDescriptor, project string) (engine.ResourceOutcome, error) {
	opts := DefaultCreateAppOptions()
	opts.Project = project
	opts.AppProtocol = app.Protocol

	return p.client.CreateApp(ctx, app.Name, opts)
}

// GetAppDetails reads the credentials of an app identity.
func (p *Provisioner) GetAppDetails(ctx context.Context, name string) (*engine.AppDetails, error) {
	out, err := p.client.GetApp(ctx, name)
	if err != nil {
		return nil, err
	}

	if out.Status.APIToken == "" {
		return nil, engine.NewPermanentError("app identity has no API token", nil).
			WithCode(engine.ErrCodeMalformed).
			WithOperation("appid get").
			WithResource(name).
			WithDetail("status", out.Status.Status)
	}

	return &engine.AppDetails{
		APIToken: out.Status.APIToken,
		SpiffeID: out.Status.SpiffeID,
		Status:   out.Status.Status,
	}, nil
}

// CreateComponent creates a generic component in project.
func (p *Provisioner) CreateComponent(ctx context.Context, component engine.ComponentDescriptor, project string) (engine.ResourceOutcome, error) {
	return p.client.CreateComponent(ctx, component, CreateComponentOptions{
		Project: project,
		Wait:    true,
	})
}

// CreatePubSub creates a pub/sub broker.
func (p *Provisioner) CreatePubSub(ctx context.Context, name string, desc engine.PubSubDescriptor) (engine.ResourceOutcome, error) {
	return p.client.CreatePubSub(ctx, name, CreatePubSubOptions{
		Project: desc.Project,
		Scopes:  desc.Scopes,
		Wait:    true,
	})
}

// CreateKvStore creates a key-value store.
func (p *Provisioner) CreateKvStore(ctx context.Context, name string, desc engine.KvStoreDescriptor) (engine.ResourceOutcome, error) {
	return p.client.CreateKvStore(ctx, name, CreateKvStoreOptions{
		Project: desc.Project,
		Scopes:  desc.Scopes,
		Wait:    true,
	})
}

// CheckKvStoreExists reports whether project has a KV store named exactly name.
func (p *Provisioner) CheckKvStoreExists(ctx context.Context, name, project string) (bool, error) {
	return p.client.KvStoreExists(ctx, name, project)
}
