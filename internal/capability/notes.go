package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/steward-ai/steward/pkg/models"
)

// notePrefix namespaces note entries inside the fact table.
const notePrefix = "note:"

// FactStore is the slice of the memory store the notes capability needs.
type FactStore interface {
	SetFact(ctx context.Context, key, value string) error
	Facts(ctx context.Context) (map[string]string, error)
}

// NotesCapability stores free-form notes in the durable fact table so they
// survive restarts and compaction.
type NotesCapability struct {
	store FactStore
}

// NewNotesCapability creates a notes capability backed by the given store.
func NewNotesCapability(store FactStore) *NotesCapability {
	return &NotesCapability{store: store}
}

func (n *NotesCapability) Name() string { return "notes" }

func (n *NotesCapability) Actions() []Action {
	return []Action{
		{
			Name:        "add",
			Description: "Save a short note for the user.",
			InputSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "text": {"type": "string", "minLength": 1}
  },
  "required": ["text"]
}`),
		},
		{
			Name:        "list",
			Description: "List all saved notes.",
			InputSchema: json.RawMessage(`{"type": "object"}`),
		},
	}
}

func (n *NotesCapability) Execute(ctx context.Context, action string, input json.RawMessage) (*models.CapabilityResult, error) {
	switch action {
	case "add":
		return n.add(ctx, input)
	case "list":
		return n.list(ctx)
	default:
		return models.Failure("notes: unknown action " + action), nil
	}
}

func (n *NotesCapability) add(ctx context.Context, input json.RawMessage) (*models.CapabilityResult, error) {
	var params struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return models.Failure(fmt.Sprintf("notes: invalid input: %v", err)), nil
	}
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return models.Failure("notes: text is required"), nil
	}
	if err := n.store.SetFact(ctx, notePrefix+uuid.NewString(), text); err != nil {
		return nil, fmt.Errorf("saving note: %w", err)
	}
	return &models.CapabilityResult{Success: true, Text: "Note saved."}, nil
}

func (n *NotesCapability) list(ctx context.Context) (*models.CapabilityResult, error) {
	facts, err := n.store.Facts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}

	notes := make([]string, 0, len(facts))
	for key, value := range facts {
		if strings.HasPrefix(key, notePrefix) {
			notes = append(notes, value)
		}
	}
	sort.Strings(notes)

	if len(notes) == 0 {
		return &models.CapabilityResult{Success: true, Text: "No notes saved."}, nil
	}
	payload, _ := json.Marshal(notes)
	return &models.CapabilityResult{
		Success: true,
		Text:    "- " + strings.Join(notes, "\n- "),
		Data:    payload,
	}, nil
}
