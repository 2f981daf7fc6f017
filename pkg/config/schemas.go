package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// TopologySchema is the name of the built-in topology schema.
const TopologySchema = "topology"

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]schemaEntry
	mu      sync.RWMutex
}

type schemaEntry struct {
	value cue.Value
	entry cue.Path
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	return newSchemaRegistry(cuecontext.New())
}

func newSchemaRegistry(ctx *cue.Context) *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]schemaEntry),
	}

	if err := sr.RegisterSchema(TopologySchema, "#Topology", builtinTopologySchema); err != nil {
		panic(fmt.Sprintf("built-in topology schema: %v", err))
	}

	return sr
}

// RegisterSchema registers a CUE schema with the given name. entry names the definition
// values are unified with (e.g. "#Topology").
func (sr *SchemaRegistry) RegisterSchema(name, entry, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	path := cue.ParsePath(entry)
	if err := path.Err(); err != nil {
		return fmt.Errorf("invalid entry %q for schema %s: %w", entry, name, err)
	}
	if !val.LookupPath(path).Exists() {
		return fmt.Errorf("schema %s does not define %s", name, entry)
	}

	sr.schemas[name] = schemaEntry{value: val, entry: path}
	return nil
}

// GetSchema retrieves the entry definition of a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	s, ok := sr.schemas[name]
	if !ok {
		return cue.Value{}, false
	}
	return s.value.LookupPath(s.entry), true
}

// Unify unifies val with the named schema and checks that the result is concrete.
// val must come from the registry's CUE context.
func (sr *SchemaRegistry) Unify(schemaName string, val cue.Value) (cue.Value, error) {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", schemaName)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return cue.Value{}, err
	}
	return unified, nil
}

// ValidateAgainstSchema validates Go data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	if _, err := sr.Unify(schemaName, dataVal); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Built-in schema definitions

const builtinTopologySchema = `
import "strings"

#Name: string & =~"^[a-z0-9]([-a-z0-9]*[a-z0-9])?$" & strings.MaxRunes(63)

#Project: {
	name:                     #Name | *"aspire"
	region?:                  string
	deploy_managed_pubsub?:   bool
	deploy_managed_kv?:       bool
	enable_managed_workflow?: bool
	disable_app_tunnels?:     bool
}

#App: {
	name:      #Name
	port?:     int & >0 & <65536
	protocol?: "http" | "grpc"
}

#Broker: {
	name:    #Name
	scopes?: [...#Name]
}

#Component: {
	name:     #Name
	type:     string & != ""
	scopes?:  [...#Name]
	metadata: {[string]: _}
}

#DiagridPubSub: {
	name:         #Name
	scopes?:      [...#Name]
	pubsub:       #Name
	consumer_id?: string
}

#DiagridStateStore: {
	name:                               #Name
	scopes?:                            [...#Name]
	state:                              #Name
	key_prefix?:                        string
	outbox_discard_when_missing_state?: string
	outbox_publish_pubsub?:             #Name
	outbox_publish_topic?:              string
	outbox_pubsub?:                     #Name
}

#Topology: {
	version?:              string
	project:               #Project
	apps?:                 [...#App]
	pubsubs?:              [...#Broker]
	kv_stores?:            [...#Broker]
	components?:           [...#Component]
	diagrid_pubsubs?:      [...#DiagridPubSub]
	diagrid_state_stores?: [...#DiagridStateStore]
}
`
