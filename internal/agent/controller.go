package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/n0tssss/MCPLink-sub000/internal/llm"
)

// DefaultMaxIterations bounds a chat call when neither the request nor the
// controller sets a limit.
const DefaultMaxIterations = 10

// Options configures a Controller.
type Options struct {
	Provider        llm.Provider
	Tools           ToolProvider // may be nil
	Model           string
	Selector        *StrategySelector
	SystemPrompt    string
	MaxIterations   int
	MaxOutputTokens int
	Temperature     float32

	Now   func() time.Time
	NewID func() string
}

// Turn is one prior exchange supplied with a chat request.
type Turn struct {
	Role    llm.Role `json:"role" yaml:"role"`
	Content string   `json:"content" yaml:"content"`
}

// ChatRequest is the input of one chat call.
type ChatRequest struct {
	Message       string
	History       []Turn
	AllowedTools  []string // nil or empty allows every tool
	MaxIterations int      // overrides the controller limit when > 0
	Strategy      Strategy // overrides the selector when set
}

// Controller runs the agent iteration loop. A Controller holds no per-call
// state and may serve concurrent chat calls.
type Controller struct {
	opts Options
}

func NewController(opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return &Controller{opts: opts}
}

// Strategy reports the strategy a request would run with.
func (c *Controller) Strategy(req ChatRequest) Strategy {
	if req.Strategy != "" {
		return req.Strategy
	}
	return c.opts.Selector.Select(c.opts.Model)
}

func (c *Controller) invoker(strategy Strategy) ModelInvoker {
	if strategy == StrategyNative {
		return NewNativeInvoker(c.opts.Provider)
	}
	return NewPromptInvoker(c.opts.Provider, c.opts.NewID)
}

// Chat starts one chat call. The returned stream always ends with exactly
// one Complete event; closing it early cancels outstanding work.
func (c *Controller) Chat(ctx context.Context, req ChatRequest) *EventStream {
	return newEventStream(ctx, c.opts.Now, func(ctx context.Context, em *emitter) {
		c.run(ctx, req, em)
	})
}

func (c *Controller) run(ctx context.Context, req ChatRequest, em *emitter) {
	start := c.opts.Now()
	var (
		iterations int
		usage      llm.Usage
	)
	defer func() {
		done := &Complete{
			TotalIterations: iterations,
			TotalDurationMs: c.opts.Now().Sub(start).Milliseconds(),
		}
		if usage.InputTokens > 0 || usage.OutputTokens > 0 {
			u := usage
			done.Usage = &u
		}
		_ = em.emit(done)
	}()
	fail := func(err error) {
		_ = em.emit(&Error{Message: err.Error(), Err: err})
	}

	specs, err := c.listTools(ctx, req.AllowedTools)
	if err != nil {
		fail(err)
		return
	}

	maxIterations := c.opts.MaxIterations
	if req.MaxIterations > 0 {
		maxIterations = req.MaxIterations
	}
	strategy := c.Strategy(req)
	invoker := c.invoker(strategy)
	builder := NewHistoryBuilder(strategy)
	dispatcher := NewDispatcher(c.opts.Tools, specs, c.opts.Now)
	history := c.initialHistory(req)

	slog.Debug("chat started", "model", c.opts.Model, "strategy", strategy,
		"tools", len(specs), "max_iterations", maxIterations)

	for iteration := 1; iteration <= maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}
		iterations = iteration
		if em.emit(&IterationStart{Iteration: iteration}) != nil {
			return
		}
		slog.Debug("iteration", "n", iteration, "messages", len(history))

		round, err := invoker.Invoke(ctx, InvokeRequest{
			Model:           c.opts.Model,
			Messages:        history,
			Tools:           specs,
			MaxOutputTokens: c.opts.MaxOutputTokens,
			Temperature:     c.opts.Temperature,
		}, em.emit)
		usage.Add(&round.Usage)
		if errors.Is(err, errAbandoned) {
			return
		}
		if err != nil {
			fail(err)
			_ = em.emit(&IterationEnd{Iteration: iteration})
			return
		}

		if len(round.Calls) == 0 {
			_ = em.emit(&IterationEnd{Iteration: iteration})
			return
		}

		results, err := c.execute(ctx, dispatcher, round.Calls, em)
		if errors.Is(err, errAbandoned) {
			return
		}
		if err != nil {
			// cancelled between calls: the round is not recorded
			fail(err)
			_ = em.emit(&IterationEnd{Iteration: iteration, ToolCalls: len(results)})
			return
		}
		history = builder.Append(history, round, results)
		if em.emit(&IterationEnd{Iteration: iteration, ToolCalls: len(results)}) != nil {
			return
		}
	}
	slog.Debug("iteration limit reached", "max_iterations", maxIterations)
}

// execute runs calls one at a time, in order.
func (c *Controller) execute(ctx context.Context, d *Dispatcher, calls []ToolCallRequest, em *emitter) ([]ToolCallResult, error) {
	results := make([]ToolCallResult, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if err := em.emit(&ToolExecuting{ID: call.ID, Name: call.Name}); err != nil {
			return results, err
		}
		res := d.Execute(ctx, call)
		results = append(results, res)
		if err := em.emit(&ToolResult{ToolCallResult: res}); err != nil {
			return results, err
		}
	}
	return results, nil
}

func (c *Controller) listTools(ctx context.Context, allowed []string) ([]llm.ToolSpec, error) {
	if c.opts.Tools == nil {
		return nil, nil
	}
	specs, err := c.opts.Tools.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	if len(allowed) == 0 {
		return specs, nil
	}
	keep := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		keep[name] = true
	}
	filtered := specs[:0:0]
	for _, spec := range specs {
		if keep[spec.Name] {
			filtered = append(filtered, spec)
		}
	}
	return filtered, nil
}

func (c *Controller) initialHistory(req ChatRequest) []llm.Message {
	history := make([]llm.Message, 0, len(req.History)+2)
	if c.opts.SystemPrompt != "" {
		history = append(history, llm.SystemText(c.opts.SystemPrompt))
	}
	for _, turn := range req.History {
		switch turn.Role {
		case llm.RoleAssistant:
			history = append(history, llm.AssistantText(turn.Content))
		case llm.RoleSystem:
			history = append(history, llm.SystemText(turn.Content))
		default:
			history = append(history, llm.UserText(turn.Content))
		}
	}
	return append(history, llm.UserText(req.Message))
}
