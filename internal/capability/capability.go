// Package capability defines the subagent contract consumed by the dispatch
// resolver and the plan executor. A capability is a named provider of one or
// more actions; each action declares a JSON-schema input contract and every
// invocation produces the uniform models.CapabilityResult shape.
package capability

import (
	"context"
	"encoding/json"

	"github.com/steward-ai/steward/pkg/models"
)

// Separator joins a capability name and an action name into the qualified
// tool name exposed to the model ("time__get"). Capability names are
// separator-free by construction (enforced at registration); action names may
// contain underscores, so qualified names are split on the first occurrence
// only.
const Separator = "__"

// Action describes one operation a capability exposes.
type Action struct {
	// Name is the action identifier, unique within its capability.
	Name string

	// Description tells the model when to use the action.
	Description string

	// InputSchema is the JSON Schema for the action's input object.
	InputSchema json.RawMessage
}

// Capability is a named provider of actions. Implementations must be safe for
// concurrent use: the plan executor runs parallel step groups against the
// same capability value.
type Capability interface {
	// Name returns the capability identifier (lowercase, separator-free).
	Name() string

	// Actions returns the declared action set.
	Actions() []Action

	// Execute runs one action. Failures are reported through the result
	// (Success=false), not through the error return; a non-nil error is
	// reserved for programming mistakes and is converted to a failure
	// result by the registry.
	Execute(ctx context.Context, action string, input json.RawMessage) (*models.CapabilityResult, error)
}
