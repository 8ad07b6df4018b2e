package core

import "sync"

// Context is an explicit, LIFO "current graph" stack (§9 "Global/context
// state": the teacher's process-wide thread-local is made explicit here
// as an ordinary value callers construct and thread through, rather than
// a hidden global). NewNodeCtx registers new Nodes against whichever
// Graph is on top.
type Context struct {
	mu    sync.Mutex
	stack []*Graph
}

// NewContext returns an empty Context.
func NewContext() *Context { return &Context{} }

// DefaultContext is a process-wide convenience instance for callers who
// don't need multiple independent graph-construction scopes; using it is
// optional — nothing in the engine reads it implicitly: NewNodeCtx takes
// the *Context to use, and NewNode takes a *Graph directly.
var DefaultContext = NewContext()

// Push makes g the current graph on this context.
func (c *Context) Push(g *Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stack = append(c.stack, g)
}

// Pop removes the current graph. Popping an empty context is a no-op.
func (c *Context) Pop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stack) == 0 {
		return
	}
	c.stack = c.stack[:len(c.stack)-1]
}

// Current returns the graph on top of the stack, or nil if empty.
func (c *Context) Current() *Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

// Enter pushes g onto ctx and returns a closer that pops it, for
// "with-style" scoping (§6 Contexts):
//
//	g := core.NewGraph()
//	defer g.Enter(ctx)()
//	... build nodes ...
func (g *Graph) Enter(ctx *Context) func() {
	ctx.Push(g)
	return func() { ctx.Pop() }
}

// WithGraph opens g on ctx, runs fn, then leaves the scope and — when
// closeOnExit is true — closes g with the given strictness, mirroring
// the teacher's context-manager `close_on_exit` option (§6).
func WithGraph(ctx *Context, g *Graph, closeOnExit, strict bool, fn func(*Graph) error) error {
	leave := g.Enter(ctx)
	defer leave()

	if err := fn(g); err != nil {
		return err
	}
	if closeOnExit {
		return g.Close(strict, false)
	}
	return nil
}
