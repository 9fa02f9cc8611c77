package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/steward-ai/steward/pkg/models"
)

// bridgePrefix is reserved for externally bridged tools and may not start a
// capability name.
const bridgePrefix = "mcp_"

// Registry is an immutable capability table resolved once at startup.
// Lookups after construction are read-only, so the registry is safe for
// concurrent use without locking.
type Registry struct {
	caps    map[string]Capability
	actions map[string]map[string]Action
	schemas map[string]*jsonschema.Schema
	names   []string
}

// NewRegistry builds a registry from the given capabilities. It rejects
// capability names that contain the qualified-name separator or collide with
// the bridge prefix, and compiles every declared action schema up front so a
// malformed contract fails at startup rather than mid-conversation.
func NewRegistry(caps ...Capability) (*Registry, error) {
	r := &Registry{
		caps:    make(map[string]Capability, len(caps)),
		actions: make(map[string]map[string]Action, len(caps)),
		schemas: make(map[string]*jsonschema.Schema),
	}
	for _, c := range caps {
		name := c.Name()
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("capability has empty name")
		}
		if strings.Contains(name, Separator) {
			return nil, fmt.Errorf("capability name %q contains reserved separator %q", name, Separator)
		}
		if strings.HasPrefix(name, bridgePrefix) {
			return nil, fmt.Errorf("capability name %q collides with bridge prefix %q", name, bridgePrefix)
		}
		if _, exists := r.caps[name]; exists {
			return nil, fmt.Errorf("duplicate capability %q", name)
		}

		declared := c.Actions()
		if len(declared) == 0 {
			return nil, fmt.Errorf("capability %q declares no actions", name)
		}
		byAction := make(map[string]Action, len(declared))
		for _, action := range declared {
			if action.Name == "" {
				return nil, fmt.Errorf("capability %q declares an unnamed action", name)
			}
			if _, exists := byAction[action.Name]; exists {
				return nil, fmt.Errorf("capability %q declares duplicate action %q", name, action.Name)
			}
			byAction[action.Name] = action

			if len(action.InputSchema) > 0 {
				qualified := name + Separator + action.Name
				compiled, err := jsonschema.CompileString(qualified, string(action.InputSchema))
				if err != nil {
					return nil, fmt.Errorf("capability %q action %q: invalid input schema: %w", name, action.Name, err)
				}
				r.schemas[qualified] = compiled
			}
		}

		r.caps[name] = c
		r.actions[name] = byAction
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns a capability by name.
func (r *Registry) Get(name string) (Capability, bool) {
	c, ok := r.caps[name]
	return c, ok
}

// Names returns all registered capability names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	return len(r.caps)
}

// All returns the registered capabilities in name order.
func (r *Registry) All() []Capability {
	out := make([]Capability, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.caps[name])
	}
	return out
}

// Execute runs one capability action. It is total: unknown capabilities,
// unknown actions, schema violations, executor errors, and executor panics
// all come back as failure results, never as errors or panics.
func (r *Registry) Execute(ctx context.Context, capName, action string, input json.RawMessage) (result *models.CapabilityResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = models.Failure(fmt.Sprintf("capability %s panicked running %s: %v", capName, action, rec))
		}
	}()

	c, ok := r.caps[capName]
	if !ok {
		return models.Failure(fmt.Sprintf("unknown capability: %s", capName))
	}
	if _, ok := r.actions[capName][action]; !ok {
		return models.Failure(fmt.Sprintf("capability %s has no action %s", capName, action))
	}

	if schema := r.schemas[capName+Separator+action]; schema != nil {
		var payload any
		if len(input) == 0 {
			payload = map[string]any{}
		} else if err := json.Unmarshal(input, &payload); err != nil {
			return models.Failure(fmt.Sprintf("capability %s action %s: input is not valid JSON: %v", capName, action, err))
		}
		if err := schema.Validate(payload); err != nil {
			return models.Failure(fmt.Sprintf("capability %s action %s: input rejected by schema: %v", capName, action, err))
		}
	}

	res, err := c.Execute(ctx, action, input)
	if err != nil {
		return models.Failure(fmt.Sprintf("capability %s action %s failed: %v", capName, action, err))
	}
	if res == nil {
		return models.Failure(fmt.Sprintf("capability %s action %s returned no result", capName, action))
	}
	return res
}
