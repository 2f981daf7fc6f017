package cli

// ProjectOutput is the JSON printed by "project get --output json".
type ProjectOutput struct {
	APIVersion string        `json:"apiVersion"`
	Kind       string        `json:"kind"`
	Metadata   ResourceMeta  `json:"metadata"`
	Spec       ProjectSpec   `json:"spec"`
	Status     ProjectStatus `json:"status"`
}

// ResourceMeta is the metadata block shared by CLI resources.
type ResourceMeta struct {
	CreatedAt       string `json:"createdAt"`
	Name            string `json:"name"`
	ResourceVersion string `json:"resourceVersion"`
	UID             string `json:"uid"`
	UpdatedAt       string `json:"updatedAt"`
}

// ProjectSpec is the spec block of a project.
type ProjectSpec struct {
	DefaultWorkflowStoreEnabled bool   `json:"defaultWorkflowStoreEnabled"`
	DisableAppTunnels           bool   `json:"disableAppTunnels"`
	DisplayName                 string `json:"displayName"`
	PrivateRegion               bool   `json:"privateRegion"`
	Region                      string `json:"region"`
}

// ProjectStatus is the status block of a project.
type ProjectStatus struct {
	Endpoints ProjectEndpoints `json:"endpoints"`
	Status    string           `json:"status"`
	UpdatedAt string           `json:"updatedAt"`
}

// ProjectEndpoints lists the project's Dapr API endpoints.
type ProjectEndpoints struct {
	GRPC EndpointDetails `json:"grpc"`
	HTTP EndpointDetails `json:"http"`
}

// EndpointDetails is one endpoint.
type EndpointDetails struct {
	Port int    `json:"port"`
	URL  string `json:"url"`
}

// AppOutput is the JSON printed by "appid get --output json".
type AppOutput struct {
	APIVersion string       `json:"apiVersion"`
	Kind       string       `json:"kind"`
	Metadata   ResourceMeta `json:"metadata"`
	Spec       AppSpec      `json:"spec"`
	Status     AppStatus    `json:"status"`
}

// AppSpec is the spec block of an app identity.
type AppSpec struct {
	APITokenRevision int         `json:"apiTokenRevision"`
	HealthCheck      HealthCheck `json:"healthCheck"`
	ProjectID        string      `json:"projectId"`
	Protocol         string      `json:"protocol"`
}

// HealthCheck is the app health check configuration.
type HealthCheck struct {
	Path  string           `json:"path"`
	Probe HealthCheckProbe `json:"probe"`
}

// HealthCheckProbe is the probe configuration of a health check.
type HealthCheckProbe struct {
	Enabled          bool `json:"enabled"`
	FailureThreshold int  `json:"failureThreshold"`
	IntervalInSec    int  `json:"intervalInSec"`
	TimeoutInMs      int  `json:"timeoutInMs"`
}

// AppStatus is the status block of an app identity.
type AppStatus struct {
	APIToken  string `json:"apiToken"`
	SpiffeID  string `json:"spiffeId"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updatedAt"`
}

// ListOutput is the JSON printed by list commands such as "kv list --output json".
type ListOutput struct {
	Items []ListItem `json:"items"`
}

// ListItem is one entry of a list response.
type ListItem struct {
	Metadata ResourceMeta `json:"metadata"`
}

// Contains reports whether an item named exactly name is present. Matching is case-sensitive.
func (l *ListOutput) Contains(name string) bool {
	for _, item := range l.Items {
		if item.Metadata.Name == name {
			return true
		}
	}
	return false
}
