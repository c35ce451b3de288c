package quantizer

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zerfoo/ztosa/pkg/graph"
)

// Match is the outcome of one rule.
type Match struct {
	Rule  string
	Nodes []*graph.Node
}

// Annotator runs registered rules over graphs.
type Annotator struct {
	rules  *Registry
	cfg    *Config
	filter FilterFunc
	log    logrus.FieldLogger
}

// NewAnnotator returns an annotator that hands out specs from cfg.
func NewAnnotator(rules *Registry, cfg *Config) *Annotator {
	return &Annotator{rules: rules, cfg: cfg, log: logrus.StandardLogger()}
}

// WithFilter restricts every rule to the nodes filter admits.
func (a *Annotator) WithFilter(filter FilterFunc) *Annotator {
	a.filter = filter
	return a
}

// WithLogger sets the logger.
func (a *Annotator) WithLogger(l logrus.FieldLogger) *Annotator {
	a.log = l
	return a
}

// Annotate runs the named rules in order, or every registered rule when no
// names are given.
func (a *Annotator) Annotate(g *graph.Graph, names ...string) ([]Match, error) {
	if len(names) == 0 {
		names = a.rules.Names()
	}
	matches := make([]Match, 0, len(names))
	for _, name := range names {
		rule, ok := a.rules.Lookup(name)
		if !ok {
			return nil, errors.Errorf("no quantization rule named %q", name)
		}
		nodes := rule(g, a.cfg, a.filter)
		a.log.WithField("rule", name).Debugf("matched %d nodes", len(nodes))
		matches = append(matches, Match{Rule: name, Nodes: nodes})
	}
	return matches, nil
}
