// Package pipeline wraps the external model call in a one-node processing
// graph and resolves its loosely shaped responses into a Result.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hyperjump/docchat/internal/llm"
	"go.uber.org/zap"
)

const (
	// ProcessorNode is the name of the single node the pipeline registers.
	ProcessorNode = "processor"
	// ProcessorTemplate is the prompt template bound to ProcessorNode.
	ProcessorTemplate = "Process and enhance this text: {input}"

	inputPlaceholder = "{input}"
)

// Node is a named processing step with a prompt template.
type Node struct {
	Name     string
	Template string
}

// Render substitutes input into the template verbatim.
func (n *Node) Render(input string) string {
	return strings.ReplaceAll(n.Template, inputPlaceholder, input)
}

// Pipeline is safe for concurrent use. Its node is registered on the first
// Respond call and reused for the life of the Pipeline.
type Pipeline struct {
	provider llm.Provider
	logger   *zap.Logger // optional

	mu     sync.Mutex
	nodes  map[string]*Node
	entry  string
	finish string
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets a logger for node registration and call outcomes.
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// New returns an uninitialized Pipeline that sends prompts to provider.
func New(provider llm.Provider, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{provider: provider, nodes: make(map[string]*Node)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Initialized reports whether the processor node has been registered.
func (p *Pipeline) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.nodes[ProcessorNode]
	return ok
}

// Nodes returns the registered node names in sorted order.
func (p *Pipeline) Nodes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.nodes))
	for name := range p.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EntryPoint returns the entry node name, empty before initialization.
func (p *Pipeline) EntryPoint() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entry
}

// FinishPoint returns the finish node name, empty before initialization.
func (p *Pipeline) FinishPoint() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finish
}

// processor registers the processor node if absent and returns it.
func (p *Pipeline) processor() *Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.nodes[ProcessorNode]; ok {
		return n
	}
	n := &Node{Name: ProcessorNode, Template: ProcessorTemplate}
	p.nodes[n.Name] = n
	p.entry = n.Name
	p.finish = n.Name
	if p.logger != nil {
		p.logger.Debug("pipeline node registered", zap.String("node", n.Name))
	}
	return n
}

// Respond runs prompt through the pipeline. Failures come back as an Error
// result; Respond never returns a nil Result and never panics.
func (p *Pipeline) Respond(ctx context.Context, prompt string) (res Result) {
	node := p.processor()
	defer func() {
		if rec := recover(); rec != nil {
			res = Error{Message: fmt.Sprintf("model call panicked: %v", rec)}
		}
		if p.logger != nil {
			p.logger.Debug("pipeline responded",
				zap.String("node", node.Name),
				zap.String("kind", string(res.Kind())),
				zap.Int("prompt_len", len(prompt)))
		}
	}()

	if p.provider == nil {
		return Error{Message: "no model provider configured"}
	}
	c, err := p.provider.Generate(ctx, node.Render(prompt))
	return resolve(c, err)
}

// resolve maps a provider outcome onto exactly one Result variant.
func resolve(c *llm.Completion, err error) Result {
	switch {
	case err != nil:
		return Error{Message: err.Error()}
	case c == nil:
		return Error{Message: "empty response"}
	case c.Content != "":
		return Output{Text: c.Content}
	case c.Raw != "":
		return RawFallback{Text: c.Raw}
	default:
		return Error{Message: "empty response"}
	}
}
