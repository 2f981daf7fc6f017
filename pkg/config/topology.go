package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// TopologyVersion is the topology format version understood by this build.
const TopologyVersion = "1.0.0"

// LoadTopology loads a topology from a .cue file, a .yaml/.yml file or a directory
// holding a CUE package.
func LoadTopology(ctx context.Context, path string) (*Topology, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat topology %s: %w", path, err)
	}

	var parsed *ParsedTopology
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case info.IsDir(), ext == ".cue":
		parsed, err = NewCUEParser().Parse(ctx, []string{path})
	case ext == ".yaml", ext == ".yml":
		parsed, err = ParseYAMLFile(path)
	default:
		return nil, fmt.Errorf("unsupported topology format %q (expected .cue, .yaml or .yml)", ext)
	}
	if err != nil {
		return nil, err
	}

	if err := parsed.Err(); err != nil {
		return nil, err
	}
	return parsed.Topology, nil
}

// ParseYAMLFile parses a YAML topology file.
func ParseYAMLFile(path string) (*ParsedTopology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology %s: %w", path, err)
	}
	return parseYAML(data, path), nil
}

// ParseYAML parses YAML topology content. The document may hold the topology at its
// root or under a top-level "topology" key.
func ParseYAML(data []byte) *ParsedTopology {
	return parseYAML(data, "inline")
}

func parseYAML(data []byte, source string) *ParsedTopology {
	parsed := &ParsedTopology{
		SourceFiles: []string{source},
		ParsedAt:    time.Now(),
	}

	var probe map[string]yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		parsed.Errors = append(parsed.Errors, yamlError(source, err))
		return parsed
	}

	var doc struct {
		Topology *Topology `yaml:"topology"`
	}
	var err error
	if _, nested := probe[TopologyField]; nested {
		err = decodeYAMLStrict(data, &doc)
	} else if len(probe) > 0 {
		doc.Topology = &Topology{}
		err = decodeYAMLStrict(data, doc.Topology)
	}
	if err != nil {
		parsed.Errors = append(parsed.Errors, yamlError(source, err))
		return parsed
	}
	if doc.Topology == nil {
		parsed.Errors = append(parsed.Errors, ValidationError{
			File:     source,
			Path:     TopologyField,
			Message:  "field is required",
			Severity: "error",
		})
		return parsed
	}

	topology := doc.Topology
	if strings.TrimSpace(topology.Project.Name) == "" {
		topology.Project.Name = engine.DefaultProjectName
	}

	if errs := validateTopology(validator.New(), topology); len(errs) > 0 {
		for i := range errs {
			errs[i].File = source
		}
		parsed.Errors = append(parsed.Errors, errs...)
		return parsed
	}

	parsed.Topology = topology
	return parsed
}

func decodeYAMLStrict(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(v)
}

func yamlError(source string, err error) ValidationError {
	ve := ValidationError{File: source, Message: err.Error(), Severity: "error"}
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		ve.Message = strings.Join(typeErr.Errors, "; ")
	}
	return ve
}

// validateTopology runs struct-tag validation and the cross-reference checks the tags
// cannot express.
func validateTopology(v *validator.Validate, topology *Topology) []ValidationError {
	var out []ValidationError

	if err := v.Struct(topology); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []ValidationError{{Path: TopologyField, Message: err.Error(), Severity: "error"}}
		}
		for _, fe := range verrs {
			out = append(out, ValidationError{
				Path:     fe.Namespace(),
				Message:  fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
				Severity: "error",
			})
		}
	}

	if topology.Version != "" {
		if err := checkVersion(topology.Version); err != nil {
			out = append(out, ValidationError{
				Path:     TopologyField + ".version",
				Message:  err.Error(),
				Severity: "error",
			})
		}
	}

	seen := make(map[string]bool)
	for _, name := range topology.componentNames() {
		if seen[name] {
			out = append(out, ValidationError{
				Path:     TopologyField,
				Message:  fmt.Sprintf("component %s declared more than once", name),
				Severity: "error",
			})
		}
		seen[name] = true
	}

	return out
}

// checkVersion reports whether a topology written for version can be read by this
// build, using a caret constraint on TopologyVersion.
func checkVersion(version string) error {
	constraint, err := semver.NewConstraint("^" + TopologyVersion)
	if err != nil {
		return fmt.Errorf("invalid topology format version: %w", err)
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", version, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("version %s is not supported (expected ^%s)", version, TopologyVersion)
	}
	return nil
}

func (t *Topology) componentNames() []string {
	var names []string
	for _, c := range t.Components {
		names = append(names, c.Name)
	}
	for _, c := range t.DiagridPubSubs {
		names = append(names, c.Name)
	}
	for _, c := range t.DiagridStateStores {
		names = append(names, c.Name)
	}
	return names
}

// Graph builds a resource graph holding the topology's descriptors in declaration
// order. Typed Diagrid components follow the generic components.
func (t *Topology) Graph() (*engine.ResourceGraph, error) {
	graph := engine.NewResourceGraph(engine.ProjectDescriptor{
		Name:                  t.Project.Name,
		Region:                t.Project.Region,
		DeployManagedPubSub:   t.Project.DeployManagedPubSub,
		DeployManagedKv:       t.Project.DeployManagedKv,
		EnableManagedWorkflow: t.Project.EnableManagedWorkflow,
		DisableAppTunnels:     t.Project.DisableAppTunnels,
	})
	project := graph.ProjectName()

	for _, app := range t.Apps {
		if _, err := graph.AddApp(engine.AppDescriptor{Name: app.Name, Port: app.Port, Protocol: app.Protocol}); err != nil {
			return nil, err
		}
	}
	for _, ps := range t.PubSubs {
		if err := graph.AddPubSub(ps.Name, engine.PubSubDescriptor{Project: project, Scopes: ps.Scopes}); err != nil {
			return nil, err
		}
	}
	for _, kv := range t.KvStores {
		if err := graph.AddKvStore(kv.Name, engine.KvStoreDescriptor{Project: project, Scopes: kv.Scopes}); err != nil {
			return nil, err
		}
	}
	for _, c := range t.Components {
		if err := graph.AddComponent(engine.ComponentDescriptor{
			Name:     c.Name,
			Type:     c.Type,
			Scopes:   c.Scopes,
			Metadata: c.Metadata,
		}); err != nil {
			return nil, err
		}
	}
	for _, c := range t.DiagridPubSubs {
		desc := engine.DiagridPubSub{Name: c.Name, Scopes: c.Scopes, PubSub: c.PubSub, ConsumerID: c.ConsumerID}
		if err := graph.AddComponent(desc.Descriptor()); err != nil {
			return nil, err
		}
	}
	for _, c := range t.DiagridStateStores {
		desc := engine.DiagridStateStore{
			Name:                          c.Name,
			Scopes:                        c.Scopes,
			State:                         c.State,
			KeyPrefix:                     c.KeyPrefix,
			OutboxDiscardWhenMissingState: c.OutboxDiscardWhenMissingState,
			OutboxPublishPubSub:           c.OutboxPublishPubSub,
			OutboxPublishTopic:            c.OutboxPublishTopic,
			OutboxPubSub:                  c.OutboxPubSub,
		}
		if err := graph.AddComponent(desc.Descriptor()); err != nil {
			return nil, err
		}
	}

	return graph, nil
}
