package dag

// GraphHash is the deterministic identity of a BuildGraph.
//
// It is computed solely from action definitions, their emission order and the
// derived dependency structure.
type GraphHash string

// String returns the string representation of the GraphHash.
func (h GraphHash) String() string { return string(h) }

// Rule names the transformation an action performs.
type Rule string

const (
	RuleCompile Rule = "compile"
	RuleEmbed   Rule = "embed"
	RuleLink    Rule = "link"
	RuleExtract Rule = "extract"
	RuleVerify  Rule = "verify"
)

// Valid reports whether r is one of the known rules.
func (r Rule) Valid() bool {
	switch r {
	case RuleCompile, RuleEmbed, RuleLink, RuleExtract, RuleVerify:
		return true
	default:
		return false
	}
}

// Action is one node of the build graph: a single deterministic transformation
// from input artifacts to one output artifact.
//
// Output is the action's identity and must be unique across the graph, as must
// every path in ImplicitOutputs.
type Action struct {
	Rule Rule `json:"rule"`

	// Output is the primary artifact written by the action.
	Output string `json:"output"`

	// Inputs are explicit inputs, passed to the rule's command in order.
	Inputs []string `json:"inputs"`

	// Implicit are dependencies that trigger a rebuild but are not passed as
	// explicit command arguments. Order is preserved.
	Implicit []string `json:"implicit,omitempty"`

	// ImplicitOutputs are side artifacts written by the same action (the map
	// file of a link, for example).
	ImplicitOutputs []string `json:"implicit_outputs,omitempty"`

	// Vars are per-action variables made available to the rule's command.
	Vars map[string]string `json:"vars,omitempty"`
}

// Deps returns the explicit inputs followed by the implicit dependencies.
func (a Action) Deps() []string {
	out := make([]string, 0, len(a.Inputs)+len(a.Implicit))
	out = append(out, a.Inputs...)
	return append(out, a.Implicit...)
}

func (a Action) clone() Action {
	c := a
	c.Inputs = cloneStrings(a.Inputs)
	c.Implicit = cloneStrings(a.Implicit)
	c.ImplicitOutputs = cloneStrings(a.ImplicitOutputs)
	if a.Vars != nil {
		c.Vars = make(map[string]string, len(a.Vars))
		for k, v := range a.Vars {
			c.Vars[k] = v
		}
	}
	return c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Edge represents a dependency relation between two actions, named by their
// primary outputs: To can only run after From completes successfully.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}
