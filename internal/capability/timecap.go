package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/steward-ai/steward/pkg/models"
)

// TimeCapability reports the current time, optionally in a requested IANA
// timezone. It is the smallest useful subagent and doubles as the reference
// implementation for the capability contract.
type TimeCapability struct {
	now func() time.Time
}

// NewTimeCapability creates a time capability using the system clock.
func NewTimeCapability() *TimeCapability {
	return &TimeCapability{now: time.Now}
}

// NewTimeCapabilityWithClock creates a time capability with an injected clock
// for tests.
func NewTimeCapabilityWithClock(now func() time.Time) *TimeCapability {
	return &TimeCapability{now: now}
}

func (t *TimeCapability) Name() string { return "time" }

func (t *TimeCapability) Actions() []Action {
	return []Action{
		{
			Name:        "get",
			Description: "Get the current date and time, optionally in a specific IANA timezone (e.g. Australia/Sydney).",
			InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "timezone": {"type": "string", "description": "IANA timezone name; defaults to the server's local zone"}
  }
}`),
		},
	}
}

func (t *TimeCapability) Execute(_ context.Context, action string, input json.RawMessage) (*models.CapabilityResult, error) {
	if action != "get" {
		return models.Failure("time: unknown action " + action), nil
	}

	var params struct {
		Timezone string `json:"timezone"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &params); err != nil {
			return models.Failure(fmt.Sprintf("time: invalid input: %v", err)), nil
		}
	}

	now := t.now()
	zone := strings.TrimSpace(params.Timezone)
	if zone != "" {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return models.Failure(fmt.Sprintf("time: unknown timezone %q", zone)), nil
		}
		now = now.In(loc)
	}

	payload, _ := json.Marshal(map[string]string{
		"iso":      now.Format(time.RFC3339),
		"timezone": now.Location().String(),
	})
	return &models.CapabilityResult{
		Success: true,
		Text:    now.Format("Monday, 2 January 2006 15:04:05 MST"),
		Data:    payload,
	}, nil
}
