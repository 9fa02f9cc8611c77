// Package agent implements the turn loop: one user message in, one final
// answer out, with bounded tool-use iterations in between and the memory
// lifecycle handed off in the background once the answer is committed.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/steward-ai/steward/internal/capability"
	"github.com/steward-ai/steward/internal/config"
	"github.com/steward-ai/steward/internal/dispatch"
	"github.com/steward-ai/steward/internal/memory"
	"github.com/steward-ai/steward/internal/observability"
	"github.com/steward-ai/steward/pkg/models"
)

// apologyFormat is the only user-visible text for an exhausted loop. It is
// a designed fallback, not an error.
const apologyFormat = "I could not complete that request within %d steps. Please try rephrasing."

const eventBufferSize = 16

// EventType tags a streaming turn event.
type EventType string

const (
	// EventText is an incremental piece of answer text.
	EventText EventType = "text"
	// EventToolStart marks a tool call about to execute.
	EventToolStart EventType = "tool_start"
	// EventToolEnd carries a finished tool call's result.
	EventToolEnd EventType = "tool_end"
	// EventDone carries the complete final answer. Always the last event
	// on a successful turn.
	EventDone EventType = "done"
	// EventError terminates the stream; the turn produced no answer.
	EventError EventType = "error"
)

// Event is one element of a streaming turn.
type Event struct {
	Type     EventType
	Text     string
	ToolName string
	CallID   string
	Result   *models.CapabilityResult
	Err      error
}

// LoopConfig wires a turn loop. Provider, Dispatcher, and Registry are
// required; Memory may be nil for a stateless loop.
type LoopConfig struct {
	Provider   LLMProvider
	Dispatcher *dispatch.Dispatcher
	Registry   *capability.Registry
	Memory     *memory.Manager

	// Persona is the fixed base block of every system prompt.
	Persona string

	Model     string
	MaxTokens int

	// MaxIterations bounds LLM calls per turn. This is the sole circuit
	// breaker against tool-use loops that never converge. Default: 10.
	MaxIterations int

	// RecentWindow is how many stored messages feed each turn. Default: 25.
	RecentWindow int

	// ToolTimeout bounds one tool dispatch. Default: config.DefaultToolTimeout.
	ToolTimeout time.Duration

	// LLMTimeout bounds one model call, stream included. Default:
	// config.DefaultLLMTimeout.
	LLMTimeout time.Duration

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Loop runs turns against one provider with a fixed tool surface.
type Loop struct {
	provider   LLMProvider
	dispatcher *dispatch.Dispatcher
	registry   *capability.Registry
	memory     *memory.Manager

	persona       string
	model         string
	maxTokens     int
	maxIterations int
	recentWindow  int
	toolTimeout   time.Duration
	llmTimeout    time.Duration

	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewLoop validates the wiring and builds a loop.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Provider == nil {
		return nil, ErrNoProvider
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("loop requires a dispatcher")
	}
	if cfg.Registry == nil {
		return nil, errors.New("loop requires a capability registry")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 25
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = config.DefaultToolTimeout
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = config.DefaultLLMTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		provider:      cfg.Provider,
		dispatcher:    cfg.Dispatcher,
		registry:      cfg.Registry,
		memory:        cfg.Memory,
		persona:       cfg.Persona,
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		maxIterations: cfg.MaxIterations,
		recentWindow:  cfg.RecentWindow,
		toolTimeout:   cfg.ToolTimeout,
		llmTimeout:    cfg.LLMTimeout,
		logger:        logger.With("component", "agent.loop"),
		metrics:       cfg.Metrics,
	}, nil
}

// RunTurn processes one user message and returns the final answer text. A
// returned error means the model call itself failed; tool failures never
// abort a turn. fallback seeds history only when the store has none.
func (l *Loop) RunTurn(ctx context.Context, channel, userMessage string, fallback []*models.Message) (string, error) {
	events, err := l.RunTurnStream(ctx, channel, userMessage, fallback)
	if err != nil {
		return "", err
	}
	final := ""
	for ev := range events {
		switch ev.Type {
		case EventDone:
			final = ev.Text
		case EventError:
			return "", ev.Err
		}
	}
	return final, nil
}

// RunTurnStream is the streaming variant of RunTurn. The channel closes
// after an EventDone or EventError.
func (l *Loop) RunTurnStream(ctx context.Context, channel, userMessage string, fallback []*models.Message) (<-chan Event, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, errors.New("user message is empty")
	}
	if channel == "" {
		return nil, errors.New("channel is required")
	}

	events := make(chan Event, eventBufferSize)
	go func() {
		defer close(events)
		l.run(ctx, channel, userMessage, fallback, events)
	}()
	return events, nil
}

func (l *Loop) run(ctx context.Context, channel, userMessage string, fallback []*models.Message, events chan<- Event) {
	start := time.Now()

	system, history, err := l.prepare(ctx, channel, fallback)
	if err != nil {
		l.finish(channel, "error", start)
		events <- Event{Type: EventError, Err: err}
		return
	}

	messages := append(history, CompletionMessage{Role: "user", Content: userMessage})
	tools := l.dispatcher.Specs()

	var finalText string
	answered := false

loop:
	for iteration := 0; iteration < l.maxIterations; iteration++ {
		select {
		case <-ctx.Done():
			l.finish(channel, "error", start)
			events <- Event{Type: EventError, Err: ctx.Err()}
			return
		default:
		}

		text, toolCalls, stop, err := l.completeOnce(ctx, system, messages, tools, events)
		if err != nil {
			l.finish(channel, "error", start)
			events <- Event{Type: EventError, Err: err}
			return
		}

		switch stop {
		case StopEndOfTurn:
			finalText = text
			answered = true
			break loop

		case StopToolUse:
			messages = append(messages, CompletionMessage{
				Role:      "assistant",
				Content:   text,
				ToolCalls: toolCalls,
			})
			results := make([]ToolResultBlock, 0, len(toolCalls))
			for _, call := range toolCalls {
				events <- Event{Type: EventToolStart, ToolName: call.Name, CallID: call.ID}
				toolCtx, cancel := context.WithTimeout(ctx, l.toolTimeout)
				result := l.dispatcher.Dispatch(toolCtx, call.Name, call.Input)
				cancel()
				events <- Event{Type: EventToolEnd, ToolName: call.Name, CallID: call.ID, Result: result}
				results = append(results, ToolResultBlock{CallID: call.ID, Result: result})
			}
			messages = append(messages, CompletionMessage{Role: "tool", ToolResults: results})

		default:
			// Unexpected stop reason: treat the answer as absent and
			// let the fallback below speak.
			l.logger.Warn("unexpected stop reason", "stop_reason", string(stop), "channel", channel)
			break loop
		}
	}

	status := "success"
	if !answered {
		finalText = fmt.Sprintf(apologyFormat, l.maxIterations)
		status = "iteration_limit"
	}

	l.persistAndHandOff(ctx, channel, userMessage, finalText)
	l.finish(channel, status, start)
	events <- Event{Type: EventDone, Text: finalText}
}

// prepare rebuilds the channel's memory context and renders it into the
// system prompt and starting history.
func (l *Loop) prepare(ctx context.Context, channel string, fallback []*models.Message) (string, []CompletionMessage, error) {
	var (
		facts   map[string]string
		summary string
		recent  []*models.Message
	)
	if l.memory != nil {
		store := l.memory.Store()
		var err error
		facts, err = store.Facts(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("load facts: %w", err)
		}
		if s, err := store.LatestSummary(ctx, channel); err == nil {
			summary = s.Text
		} else if !errors.Is(err, memory.ErrNoSummary) {
			return "", nil, fmt.Errorf("load summary: %w", err)
		}
		recent, err = store.RecentMessages(ctx, channel, l.recentWindow)
		if err != nil {
			return "", nil, fmt.Errorf("load recent messages: %w", err)
		}
	}

	// The store's window when it has one, the caller's fallback otherwise.
	// Never both.
	source := recent
	if len(source) == 0 {
		source = fallback
	}
	history := make([]CompletionMessage, 0, len(source))
	for _, msg := range source {
		history = append(history, CompletionMessage{Role: string(msg.Role), Content: msg.Content})
	}

	return l.buildSystemPrompt(facts, summary), history, nil
}

func (l *Loop) buildSystemPrompt(facts map[string]string, summary string) string {
	var b strings.Builder
	b.WriteString(l.persona)

	if len(facts) > 0 {
		keys := make([]string, 0, len(facts))
		for k := range facts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n\nThings you know about the user:\n")
		for _, k := range keys {
			b.WriteString("- ")
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(facts[k])
			b.WriteString("\n")
		}
	}

	if summary != "" {
		b.WriteString("\nSummary of the earlier conversation:\n")
		b.WriteString(summary)
		b.WriteString("\n")
	}

	if l.registry.Len() > 0 {
		b.WriteString("\nYour capabilities:\n")
		for _, name := range l.registry.Names() {
			c, _ := l.registry.Get(name)
			actions := make([]string, 0, len(c.Actions()))
			for _, a := range c.Actions() {
				actions = append(actions, a.Name)
			}
			b.WriteString("- ")
			b.WriteString(name)
			b.WriteString(": ")
			b.WriteString(strings.Join(actions, ", "))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// completeOnce performs one model call, forwarding text deltas and collecting
// tool calls until the stream finishes.
func (l *Loop) completeOnce(ctx context.Context, system string, messages []CompletionMessage, tools []dispatch.ToolSpec, events chan<- Event) (string, []models.ToolCall, StopReason, error) {
	ctx, cancel := context.WithTimeout(ctx, l.llmTimeout)
	defer cancel()

	req := &CompletionRequest{
		Model:     l.model,
		System:    system,
		Messages:  messages,
		Tools:     tools,
		MaxTokens: l.maxTokens,
	}

	callStart := time.Now()
	chunks, err := l.provider.Complete(ctx, req)
	if err != nil {
		l.observeLLM("error", 0, 0, time.Since(callStart))
		return "", nil, "", fmt.Errorf("LLM call failed: %w", err)
	}

	var (
		text      strings.Builder
		toolCalls []models.ToolCall
		stop      = StopOther
	)
	for chunk := range chunks {
		switch {
		case chunk.Error != nil:
			l.observeLLM("error", 0, 0, time.Since(callStart))
			return "", nil, "", fmt.Errorf("LLM stream failed: %w", chunk.Error)
		case chunk.ToolCall != nil:
			toolCalls = append(toolCalls, *chunk.ToolCall)
		case chunk.Done:
			stop = chunk.StopReason
			l.observeLLM("success", chunk.InputTokens, chunk.OutputTokens, time.Since(callStart))
		case chunk.Text != "":
			text.WriteString(chunk.Text)
			events <- Event{Type: EventText, Text: chunk.Text}
		}
	}

	return text.String(), toolCalls, stop, nil
}

// persistAndHandOff commits the exchange and queues the memory lifecycle.
// Persistence failures are logged, not surfaced; the answer is already
// committed to the caller.
func (l *Loop) persistAndHandOff(ctx context.Context, channel, userMessage, finalText string) {
	if l.memory == nil {
		return
	}
	store := l.memory.Store()

	userMsg := &models.Message{Channel: channel, Role: models.RoleUser, Content: userMessage}
	if err := store.SaveMessage(ctx, userMsg); err != nil {
		l.logger.Error("failed to persist user message", "channel", channel, "error", err)
		return
	}
	assistantMsg := &models.Message{Channel: channel, Role: models.RoleAssistant, Content: finalText}
	if err := store.SaveMessage(ctx, assistantMsg); err != nil {
		l.logger.Error("failed to persist assistant message", "channel", channel, "error", err)
		return
	}

	l.memory.ProcessExchange(channel, userMsg.ID, userMessage, finalText)
}

func (l *Loop) finish(channel, status string, start time.Time) {
	if l.metrics == nil {
		return
	}
	l.metrics.TurnCounter.WithLabelValues(channel, status).Inc()
	l.metrics.TurnDuration.WithLabelValues(channel).Observe(time.Since(start).Seconds())
}

func (l *Loop) observeLLM(status string, inputTokens, outputTokens int, elapsed time.Duration) {
	if l.metrics == nil {
		return
	}
	l.metrics.LLMRequestCounter.WithLabelValues(l.provider.Name(), l.model, status).Inc()
	l.metrics.LLMRequestDuration.WithLabelValues(l.provider.Name(), l.model).Observe(elapsed.Seconds())
	if inputTokens > 0 {
		l.metrics.LLMTokensUsed.WithLabelValues(l.provider.Name(), l.model, "prompt").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		l.metrics.LLMTokensUsed.WithLabelValues(l.provider.Name(), l.model, "completion").Add(float64(outputTokens))
	}
}
