package policy

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"golang.org/x/net/html"
)

// Mode selects how the enforcer suppresses a matched control.
type Mode string

const (
	// ModeHide removes the control from layout and from click hit-testing.
	ModeHide Mode = "hide"
	// ModeDisable keeps the control visible but non-interactive, so read-only
	// affordances such as a reply counter stay on screen.
	ModeDisable Mode = "disable"
)

// Control maps one class of interactive UI element to a suppression mode.
type Control struct {
	Selector string
	Mode     Mode
	matcher  Matcher
}

// Matches reports whether the control's selector matches the given node.
func (c Control) Matches(n *html.Node) bool {
	return c.matcher != nil && c.matcher.Match(n)
}

// Spec is the serialized form of a policy table.
type Spec struct {
	Version           string        `yaml:"version" json:"version"`
	GraphQLOperations []string      `yaml:"graphql_operations" json:"graphql_operations"`
	RESTPatterns      []string      `yaml:"rest_patterns" json:"rest_patterns"`
	Controls          []ControlSpec `yaml:"controls" json:"controls"`
}

// ControlSpec is the serialized form of one control descriptor.
type ControlSpec struct {
	Selector string `yaml:"selector" json:"selector"`
	Mode     Mode   `yaml:"mode" json:"mode"`
}

// Table is the immutable policy consulted by classifier and enforcer.
type Table struct {
	version    string
	graphQLOps []string
	restPaths  []string
	controls   []Control
}

// New builds a table from a spec, compiling every control selector.
// A selector that fails to compile fails table construction.
func New(spec Spec) (*Table, error) {
	t := &Table{
		version:    spec.Version,
		graphQLOps: append([]string{}, spec.GraphQLOperations...),
		restPaths:  append([]string{}, spec.RESTPatterns...),
	}

	for _, cs := range spec.Controls {
		if cs.Mode != ModeHide && cs.Mode != ModeDisable {
			return nil, fmt.Errorf("control %q: unknown mode %q", cs.Selector, cs.Mode)
		}
		m, err := CompileSelector(cs.Selector)
		if err != nil {
			return nil, fmt.Errorf("control %q: %w", cs.Selector, err)
		}
		t.controls = append(t.controls, Control{
			Selector: cs.Selector,
			Mode:     cs.Mode,
			matcher:  m,
		})
	}

	return t, nil
}

// Load reads a YAML policy table from disk.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy table: %w", err)
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse policy table: %w", err)
	}

	return New(spec)
}

// Version returns the table's version string.
func (t *Table) Version() string {
	return t.version
}

// GraphQLOperations returns the blocked operation identifiers.
func (t *Table) GraphQLOperations() []string {
	return append([]string{}, t.graphQLOps...)
}

// RESTPatterns returns the blocked REST path fragments.
func (t *Table) RESTPatterns() []string {
	return append([]string{}, t.restPaths...)
}

// Controls returns all control descriptors.
func (t *Table) Controls() []Control {
	return append([]Control{}, t.controls...)
}

// ControlsByMode returns the controls using the given suppression mode.
func (t *Table) ControlsByMode(mode Mode) []Control {
	var out []Control
	for _, c := range t.controls {
		if c.Mode == mode {
			out = append(out, c)
		}
	}
	return out
}

// Snapshot returns the serializable form of the table, for the /policy
// endpoint and for operators diffing a running gateway against a file.
func (t *Table) Snapshot() Spec {
	spec := Spec{
		Version:           t.version,
		GraphQLOperations: append([]string{}, t.graphQLOps...),
		RESTPatterns:      append([]string{}, t.restPaths...),
	}
	for _, c := range t.controls {
		spec.Controls = append(spec.Controls, ControlSpec{Selector: c.Selector, Mode: c.Mode})
	}
	return spec
}
