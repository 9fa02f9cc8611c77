// Package bridge surfaces externally connected tool servers to the agent
// under namespaced wire names. The core treats the bridge as a narrow
// contract: enumerate connected servers and call one tool, with every outcome
// normalized into the uniform capability result shape.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/steward-ai/steward/pkg/models"
)

// Prefix marks bridged tool names on the wire ("mcp_<server>__<tool>").
const Prefix = "mcp_"

// Separator splits the server id from the tool id in a bridged name.
const Separator = "__"

// Tool describes one tool exposed by a connected server.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Server is a connected server and its advertised tools.
type Server struct {
	ID    string `json:"id"`
	Tools []Tool `json:"tools"`
}

// Conn is one live server connection. Implementations own their transport;
// the manager only routes calls.
type Conn interface {
	// Tools returns the server's advertised tool list.
	Tools() []Tool

	// Call invokes a tool by id and returns its result.
	Call(ctx context.Context, toolID string, input json.RawMessage) (*models.CapabilityResult, error)
}

// Manager tracks connected servers and routes tool calls to them. It is safe
// for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// NewManager creates an empty bridge manager.
func NewManager() *Manager {
	return &Manager{conns: make(map[string]Conn)}
}

// Connect registers a server connection under the given id, replacing any
// previous connection with the same id.
func (m *Manager) Connect(serverID string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[serverID] = conn
}

// Disconnect removes a server connection.
func (m *Manager) Disconnect(serverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, serverID)
}

// Connected reports whether a server is currently connected.
func (m *Manager) Connected(serverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.conns[serverID]
	return ok
}

// ConnectedServers lists connected servers and their tools, sorted by id.
func (m *Manager) ConnectedServers() []Server {
	m.mu.RLock()
	defer m.mu.RUnlock()

	servers := make([]Server, 0, len(m.conns))
	for id, conn := range m.conns {
		servers = append(servers, Server{ID: id, Tools: conn.Tools()})
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].ID < servers[j].ID })
	return servers
}

// CallTool invokes a tool on a connected server. An unknown server yields an
// error; the dispatch layer converts it to a failure result naming the
// server.
func (m *Manager) CallTool(ctx context.Context, serverID, toolID string, input json.RawMessage) (*models.CapabilityResult, error) {
	m.mu.RLock()
	conn, ok := m.conns[serverID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("bridge server %s is not connected", serverID)
	}
	return conn.Call(ctx, toolID, input)
}

// WireName builds the namespaced wire name for a server tool.
func WireName(serverID, toolID string) string {
	return Prefix + serverID + Separator + toolID
}
