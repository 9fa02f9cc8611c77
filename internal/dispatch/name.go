package dispatch

import (
	"strings"

	"github.com/steward-ai/steward/internal/bridge"
	"github.com/steward-ai/steward/internal/capability"
)

// Kind classifies a wire-level tool name.
type Kind int

const (
	// KindLegacy is a flat tool name with no namespace.
	KindLegacy Kind = iota
	// KindQualified is a capability action name ("capability__action").
	KindQualified
	// KindBridge is a bridged server tool ("mcp_<server>__<tool>").
	KindBridge
)

// ParsedName is a wire tool name decomposed into its addressing parts.
// Names are parsed exactly once at dispatch entry; everything downstream
// works from this structure.
type ParsedName struct {
	Kind Kind

	// Raw is the original wire name, kept for lookups and error messages.
	Raw string

	// Capability and Action are set for KindQualified.
	Capability string
	Action     string

	// Server and Tool are set for KindBridge.
	Server string
	Tool   string
}

// ParseName classifies a wire name. The separator is matched on its first
// occurrence only, so action and tool ids may themselves contain the
// separator. A bridge-prefixed name without a separator degrades to a legacy
// lookup rather than failing the parse.
func ParseName(name string) ParsedName {
	if rest, ok := strings.CutPrefix(name, bridge.Prefix); ok {
		if server, tool, found := strings.Cut(rest, bridge.Separator); found && server != "" && tool != "" {
			return ParsedName{Kind: KindBridge, Raw: name, Server: server, Tool: tool}
		}
		return ParsedName{Kind: KindLegacy, Raw: name}
	}
	if cap, action, found := strings.Cut(name, capability.Separator); found && cap != "" && action != "" {
		return ParsedName{Kind: KindQualified, Raw: name, Capability: cap, Action: action}
	}
	return ParsedName{Kind: KindLegacy, Raw: name}
}
