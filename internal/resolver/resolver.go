// Package resolver expands snippets whose content references other triggers
// and fills in their {name} placeholders.
package resolver

import (
	"strings"
	"time"

	"github.com/MrSnakeDoc/snip/internal/domain"
)

const (
	// DefaultMaxDepth bounds nested expansion when no limit is configured.
	DefaultMaxDepth = 10
	// DefaultMaxExpansions bounds the number of references replaced in one
	// expansion, however they are spread across the tree.
	DefaultMaxExpansions = 1000
)

// TriggerSource finds the trigger starting at a byte offset. An
// index.Snapshot satisfies it.
type TriggerSource interface {
	MatchAt(content string, pos int) (domain.MergedSnippet, bool)
}

// Prompter asks the user for a variable nobody supplied. It returns false
// when the user gives no answer.
type Prompter interface {
	Prompt(v domain.Variable) (string, bool)
}

// Env describes where the expansion happens, for {url} and {hostname}.
type Env struct {
	URL      string
	Hostname string
}

type DiagnosticKind string

const (
	// DiagnosticCycle marks a reference to a trigger already being expanded.
	DiagnosticCycle DiagnosticKind = "cycle"
	// DiagnosticDepth marks a reference nested deeper than MaxDepth.
	DiagnosticDepth DiagnosticKind = "depth"
	// DiagnosticBudget marks the first reference left once MaxExpansions
	// replacements were made. Later references stay literal silently.
	DiagnosticBudget DiagnosticKind = "budget"
)

// Diagnostic records a reference that was left as literal text.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Trigger string         `json:"trigger"`
	// Path is the chain of triggers being expanded, outermost first.
	Path []string `json:"path"`
}

type Result struct {
	Text        string
	Diagnostics []Diagnostic
	// Unresolved lists user variables that kept their literal placeholder.
	Unresolved []string
}

type Resolver struct {
	maxDepth      int
	maxExpansions int
	prompter Prompter
	env      Env
	now      func() time.Time
}

type Option func(*Resolver)

// WithMaxDepth sets the nesting limit. Values below 1 keep the default.
func WithMaxDepth(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxDepth = n
		}
	}
}

// WithMaxExpansions caps how many references one expansion replaces.
// Values below 1 keep the default.
func WithMaxExpansions(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxExpansions = n
		}
	}
}

func WithPrompter(p Prompter) Option {
	return func(r *Resolver) { r.prompter = p }
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func New(opts ...Option) *Resolver {
	r := &Resolver{maxDepth: DefaultMaxDepth, maxExpansions: DefaultMaxExpansions, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// WithEnv returns a copy of r that expands in env.
func (r *Resolver) WithEnv(env Env) *Resolver {
	c := *r
	c.env = env
	return &c
}

func (r *Resolver) MaxDepth() int { return r.maxDepth }

func (r *Resolver) MaxExpansions() int { return r.maxExpansions }

// Expand resolves the dependencies of s, then its placeholders from
// defaults, the prompter and the built-ins.
func (r *Resolver) Expand(s domain.Snippet, src TriggerSource) Result {
	return r.ExpandWithVariables(s, nil, src)
}

// ExpandWithVariables is Expand with caller supplied values, which take
// precedence over defaults and the prompter.
func (r *Resolver) ExpandWithVariables(s domain.Snippet, values map[string]string, src TriggerSource) Result {
	st := &state{
		src:      src,
		maxDepth: r.maxDepth,
		budget:   r.maxExpansions,
		onStack:  map[string]bool{},
		vars:     map[string]domain.Variable{},
	}
	st.collect(s.Variables)

	if s.Trigger != "" {
		st.push(s.Trigger)
	}
	text := st.expand(s.Content, 0)

	res := Result{Diagnostics: st.diags}
	res.Text, res.Unresolved = r.substitute(text, values, st.vars)
	return res
}

type state struct {
	src      TriggerSource
	maxDepth int
	stack    []string
	onStack  map[string]bool
	diags    []Diagnostic
	vars     map[string]domain.Variable

	// budget is the number of replacements left.
	budget    int
	exhausted bool
}

func (st *state) push(trigger string) {
	st.stack = append(st.stack, trigger)
	st.onStack[trigger] = true
}

func (st *state) pop() {
	last := st.stack[len(st.stack)-1]
	st.stack = st.stack[:len(st.stack)-1]
	delete(st.onStack, last)
}

// collect registers variable definitions. The first definition of a name
// wins, so the outer snippet overrides its dependencies.
func (st *state) collect(vars []domain.Variable) {
	for _, v := range vars {
		if _, ok := st.vars[v.Name]; !ok {
			st.vars[v.Name] = v
		}
	}
}

func (st *state) cut(kind DiagnosticKind, trigger string) {
	path := make([]string, len(st.stack), len(st.stack)+1)
	copy(path, st.stack)
	st.diags = append(st.diags, Diagnostic{Kind: kind, Trigger: trigger, Path: append(path, trigger)})
}

// expand scans content left to right, replacing the longest trigger found
// at each position with that trigger's own expansion.
func (st *state) expand(content string, depth int) string {
	if st.src == nil {
		return content
	}
	var b strings.Builder
	b.Grow(len(content))

	for i := 0; i < len(content); {
		m, ok := st.src.MatchAt(content, i)
		if !ok {
			b.WriteByte(content[i])
			i++
			continue
		}
		trigger := m.Trigger
		i += len(trigger)

		switch {
		case st.onStack[trigger]:
			st.cut(DiagnosticCycle, trigger)
			b.WriteString(trigger)
		case depth >= st.maxDepth:
			st.cut(DiagnosticDepth, trigger)
			b.WriteString(trigger)
		case st.budget <= 0:
			if !st.exhausted {
				st.exhausted = true
				st.cut(DiagnosticBudget, trigger)
			}
			b.WriteString(trigger)
		default:
			st.budget--
			st.collect(m.Variables)
			st.push(trigger)
			b.WriteString(st.expand(m.Content, depth+1))
			st.pop()
		}
	}
	return b.String()
}
