package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/steward-ai/steward/pkg/models"
)

type staticConn struct {
	tools []Tool
}

func (c *staticConn) Tools() []Tool { return c.tools }

func (c *staticConn) Call(_ context.Context, toolID string, _ json.RawMessage) (*models.CapabilityResult, error) {
	return &models.CapabilityResult{Success: true, Text: "ran " + toolID}, nil
}

func TestManagerConnectAndCall(t *testing.T) {
	m := NewManager()
	m.Connect("linear", &staticConn{tools: []Tool{{Name: "create_issue"}}})

	if !m.Connected("linear") {
		t.Fatal("linear not connected")
	}

	res, err := m.CallTool(context.Background(), "linear", "create_issue", nil)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.Success || res.Text != "ran create_issue" {
		t.Errorf("result = %+v", res)
	}
}

func TestManagerUnknownServer(t *testing.T) {
	m := NewManager()
	_, err := m.CallTool(context.Background(), "ghost", "tool", nil)
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("err = %v, want one naming the server", err)
	}
	if m.Connected("ghost") {
		t.Error("ghost reported connected")
	}
}

func TestManagerDisconnect(t *testing.T) {
	m := NewManager()
	m.Connect("linear", &staticConn{})
	m.Disconnect("linear")
	if m.Connected("linear") {
		t.Error("still connected after disconnect")
	}
}

func TestConnectedServersSorted(t *testing.T) {
	m := NewManager()
	m.Connect("zeta", &staticConn{})
	m.Connect("alpha", &staticConn{tools: []Tool{{Name: "t"}}})

	servers := m.ConnectedServers()
	if len(servers) != 2 || servers[0].ID != "alpha" || servers[1].ID != "zeta" {
		t.Errorf("servers = %+v", servers)
	}
}

func TestWireName(t *testing.T) {
	if got := WireName("linear", "create_issue"); got != "mcp_linear__create_issue" {
		t.Errorf("WireName = %q", got)
	}
}
