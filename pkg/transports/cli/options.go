package cli

// CreateProjectOptions are the flags of "project create".
type CreateProjectOptions struct {
	Region                string
	DeployManagedPubSub   bool
	DeployManagedKv       bool
	EnableManagedWorkflow bool
	Wait                  bool
	Use                   bool
	DisableAppTunnels     bool
}

// DefaultCreateProjectOptions waits for the project and deploys no managed services.
func DefaultCreateProjectOptions() CreateProjectOptions {
	return CreateProjectOptions{Wait: true}
}

// CreateAppOptions are the flags of "appid create".
type CreateAppOptions struct {
	Project                  string
	AppEndpoint              string
	AppToken                 string
	AppProtocol              string
	AppConfig                string
	EnableAppHealthCheck     bool
	AppHealthCheckPath       string
	AppHealthProbeInterval   *int
	AppHealthProbeTimeout    *int
	AppHealthThreshold       *int
	AppChannelTimeoutSeconds *int
	Wait                     bool
}

// DefaultCreateAppOptions waits for the app identity.
func DefaultCreateAppOptions() CreateAppOptions {
	return CreateAppOptions{Wait: true}
}

// CreateComponentOptions are the flags of "component create" beyond the descriptor.
type CreateComponentOptions struct {
	Project string
	Wait    bool
}

// CreatePubSubOptions are the flags of "pubsub create".
type CreatePubSubOptions struct {
	Project string
	Scopes  []string
	Wait    bool
}

// CreateKvStoreOptions are the flags of "kv create".
type CreateKvStoreOptions struct {
	Project string
	Scopes  []string
	Wait    bool
}

// DevRunOptions are the flags of "dev run", the local proxy for one app identity.
type DevRunOptions struct {
	Project string
	AppID   string
	AppPort int
	Approve bool
}
