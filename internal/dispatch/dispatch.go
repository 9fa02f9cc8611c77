// Package dispatch routes wire-level tool names to their executors. Three
// tiers are tried in order: registered capabilities (qualified names), flat
// legacy tools, and bridged server tools. Dispatch is total; every failure
// mode comes back as a result, never a panic or error that escapes to the
// turn loop.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/steward-ai/steward/internal/bridge"
	"github.com/steward-ai/steward/internal/capability"
	"github.com/steward-ai/steward/internal/observability"
	"github.com/steward-ai/steward/pkg/models"
)

// Tool is a flat legacy tool exposed directly to the model without a
// capability namespace.
type Tool interface {
	// Name returns the wire name. Must not contain the qualified-name
	// separator.
	Name() string

	// Description helps the model decide when to call the tool.
	Description() string

	// Schema returns the JSON Schema for the tool's input.
	Schema() json.RawMessage

	// Execute runs the tool.
	Execute(ctx context.Context, input json.RawMessage) (*models.CapabilityResult, error)
}

// BridgeCaller is the slice of the bridge manager the dispatcher needs.
type BridgeCaller interface {
	Connected(serverID string) bool
	ConnectedServers() []bridge.Server
	CallTool(ctx context.Context, serverID, toolID string, input json.RawMessage) (*models.CapabilityResult, error)
}

// ToolSpec describes one dispatchable tool for the model's tool block.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Dispatcher resolves wire names against the capability registry, legacy
// tools, and the bridge. All collaborators are fixed at construction.
type Dispatcher struct {
	registry *capability.Registry
	legacy   map[string]Tool
	bridge   BridgeCaller
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New builds a dispatcher. The bridge may be nil when no external servers
// are configured; bridged names then resolve to a failure result. Legacy
// tool names must be unique and separator free.
func New(registry *capability.Registry, legacy []Tool, br BridgeCaller, logger *slog.Logger, metrics *observability.Metrics) (*Dispatcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("dispatch requires a capability registry")
	}
	if logger == nil {
		logger = slog.Default()
	}

	tools := make(map[string]Tool, len(legacy))
	for _, t := range legacy {
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("legacy tool name must not be empty")
		}
		if parsed := ParseName(name); parsed.Kind != KindLegacy {
			return nil, fmt.Errorf("legacy tool name %q collides with a namespaced form", name)
		}
		if _, dup := tools[name]; dup {
			return nil, fmt.Errorf("duplicate legacy tool name %q", name)
		}
		tools[name] = t
	}

	return &Dispatcher{
		registry: registry,
		legacy:   tools,
		bridge:   br,
		logger:   logger.With("component", "dispatch"),
		metrics:  metrics,
	}, nil
}

// Dispatch resolves and executes one tool call. It always returns a result.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, input json.RawMessage) *models.CapabilityResult {
	start := time.Now()
	parsed := ParseName(name)
	result := d.execute(ctx, parsed, input)
	d.observe(name, result, time.Since(start))
	return result
}

func (d *Dispatcher) execute(ctx context.Context, parsed ParsedName, input json.RawMessage) *models.CapabilityResult {
	switch parsed.Kind {
	case KindQualified:
		return d.registry.Execute(ctx, parsed.Capability, parsed.Action, input)

	case KindBridge:
		if d.bridge == nil || !d.bridge.Connected(parsed.Server) {
			return models.Failure(fmt.Sprintf("bridge server %s is not connected", parsed.Server))
		}
		result, err := d.bridge.CallTool(ctx, parsed.Server, parsed.Tool, input)
		if err != nil {
			return models.Failure(err.Error())
		}
		if result == nil {
			return models.Failure(fmt.Sprintf("bridge tool %s returned no result", parsed.Raw))
		}
		return result

	default:
		return d.executeLegacy(ctx, parsed.Raw, input)
	}
}

func (d *Dispatcher) executeLegacy(ctx context.Context, name string, input json.RawMessage) (result *models.CapabilityResult) {
	tool, ok := d.legacy[name]
	if !ok {
		return models.Failure(fmt.Sprintf("unknown tool: %s", name))
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("legacy tool panicked", "tool", name, "panic", r)
			result = models.Failure(fmt.Sprintf("tool %s panicked: %v", name, r))
		}
	}()

	res, err := tool.Execute(ctx, input)
	if err != nil {
		return models.Failure(err.Error())
	}
	if res == nil {
		return models.Failure(fmt.Sprintf("tool %s returned no result", name))
	}
	return res
}

func (d *Dispatcher) observe(name string, result *models.CapabilityResult, elapsed time.Duration) {
	status := "success"
	if !result.Success {
		status = "error"
		d.logger.Debug("dispatch failed", "tool", name, "error", result.Error)
	}
	if d.metrics != nil {
		d.metrics.CapabilityCounter.WithLabelValues(name, status).Inc()
		d.metrics.CapabilityDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
}

// Specs enumerates every dispatchable tool: each capability action under its
// qualified name, each legacy tool, and each connected bridge tool under its
// wire name. The slice is sorted by name so the model sees a stable block.
func (d *Dispatcher) Specs() []ToolSpec {
	var specs []ToolSpec

	for _, name := range d.registry.Names() {
		c, _ := d.registry.Get(name)
		for _, action := range c.Actions() {
			specs = append(specs, ToolSpec{
				Name:        name + capability.Separator + action.Name,
				Description: action.Description,
				InputSchema: action.InputSchema,
			})
		}
	}

	for name, tool := range d.legacy {
		specs = append(specs, ToolSpec{
			Name:        name,
			Description: tool.Description(),
			InputSchema: tool.Schema(),
		})
	}

	if d.bridge != nil {
		for _, server := range d.bridge.ConnectedServers() {
			for _, tool := range server.Tools {
				specs = append(specs, ToolSpec{
					Name:        bridge.WireName(server.ID, tool.Name),
					Description: tool.Description,
					InputSchema: tool.InputSchema,
				})
			}
		}
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}
