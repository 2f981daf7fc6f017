package engine

// Component types understood by Catalyst.
const (
	ComponentTypeDiagridPubSub = "pubsub.diagrid"
	ComponentTypeDiagridState  = "state.diagrid"
)

// DiagridPubSub is a component bound to a Catalyst pub/sub broker.
type DiagridPubSub struct {
	Name       string
	Scopes     []string
	PubSub     string
	ConsumerID string
}

// Descriptor converts the declaration into a generic component descriptor.
func (p DiagridPubSub) Descriptor() ComponentDescriptor {
	return ComponentDescriptor{
		Name:   p.Name,
		Type:   ComponentTypeDiagridPubSub,
		Scopes: cloneStrings(p.Scopes),
		Metadata: map[string]any{
			"pubsub":     optional(p.PubSub),
			"consumerID": optional(p.ConsumerID),
		},
	}
}

// DiagridStateStore is a component bound to a Catalyst KV store, optionally publishing
// state changes through an outbox.
type DiagridStateStore struct {
	Name                          string
	Scopes                        []string
	State                         string
	KeyPrefix                     string
	OutboxDiscardWhenMissingState string
	OutboxPublishPubSub           string
	OutboxPublishTopic            string
	OutboxPubSub                  string
}

// Descriptor converts the declaration into a generic component descriptor.
func (s DiagridStateStore) Descriptor() ComponentDescriptor {
	return ComponentDescriptor{
		Name:   s.Name,
		Type:   ComponentTypeDiagridState,
		Scopes: cloneStrings(s.Scopes),
		Metadata: map[string]any{
			"state":                         optional(s.State),
			"keyPrefix":                     optional(s.KeyPrefix),
			"outboxDiscardWhenMissingState": optional(s.OutboxDiscardWhenMissingState),
			"outboxPublishPubsub":           optional(s.OutboxPublishPubSub),
			"outboxPublishTopic":            optional(s.OutboxPublishTopic),
			"outboxPubsub":                  optional(s.OutboxPubSub),
		},
	}
}

// optional maps an unset string to nil so that it is left out of the CLI arguments.
func optional(v string) any {
	if v == "" {
		return nil
	}
	return v
}
