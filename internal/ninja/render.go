package ninja

import (
	"bytes"
	"fmt"
	"strings"

	"romforge/internal/config"
	"romforge/internal/dag"
)

var ruleNames = map[dag.Rule]string{
	dag.RuleCompile: "as",
	dag.RuleEmbed:   "bin",
	dag.RuleLink:    "ld",
	dag.RuleExtract: "z64",
	dag.RuleVerify:  "verify",
}

// Render produces the ninja build file for g.
//
// Actions are written in emission order. Implicit link dependencies that no
// action produces are toolchain symbol tables; they are passed to the linker
// with -T through the per-build "ldscripts" variable.
func Render(g *dag.BuildGraph, tc config.Toolchain) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	w.Comment("Generated by romforge configure. Do not edit.")
	w.Comment("graph " + g.Hash().String())
	w.Newline()

	cpp := tc.Cross + "cpp"
	as := tc.Cross + "as"
	ld := tc.Cross + "ld"
	objcopy := tc.Cross + "objcopy"

	w.Rule("as",
		join(cpp, tc.Includes, tc.Defines, "$in", "|", as, tc.ASFlags, tc.Includes, "-o $out"),
		"as $in")
	w.Rule("bin",
		join(ld, "-r -b binary $in -o $out"),
		"bin $in")
	w.Rule("ld",
		join(ld, "$ldscripts -Map $mapfile -T $in -o $out"),
		"link $out")
	w.Rule("z64",
		join(objcopy, "$in $out -O binary"),
		"rom $out")
	w.Rule("verify", tc.Verify, "verify $in")

	for _, a := range g.Actions() {
		rule, ok := ruleNames[a.Rule]
		if !ok {
			return nil, fmt.Errorf("ninja: no rule for action %q (%s)", a.Output, a.Rule)
		}
		vars := a.Vars
		if a.Rule == dag.RuleLink {
			vars = linkVars(g, a)
		}
		w.Build([]string{a.Output}, rule, a.Inputs, a.Implicit, a.ImplicitOutputs, vars)
	}

	w.Default(g.Goal().Output)

	if err := w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func linkVars(g *dag.BuildGraph, a dag.Action) map[string]string {
	vars := make(map[string]string, len(a.Vars)+1)
	for k, v := range a.Vars {
		vars[k] = v
	}
	// Ninja shell-quotes $in and $out itself, but not custom variables.
	if m, ok := vars["mapfile"]; ok {
		vars["mapfile"] = shellQuote(m)
	}
	var scripts []string
	for _, dep := range a.Implicit {
		if _, produced := g.Producer(dep); !produced {
			scripts = append(scripts, "-T "+shellQuote(dep))
		}
	}
	if len(scripts) > 0 {
		vars["ldscripts"] = strings.Join(scripts, " ")
	}
	return vars
}

func join(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// shellQuote returns p unchanged when it holds only characters the shell
// passes through literally, and single-quoted otherwise.
func shellQuote(p string) string {
	if p != "" && strings.IndexFunc(p, unsafeShellRune) < 0 {
		return p
	}
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}

func unsafeShellRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("_-./+=,@%:", r)
}
