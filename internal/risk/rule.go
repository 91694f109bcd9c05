// Package risk implements the per-symbol and global risk state and the
// chained rule evaluation described in §4.5. The manager is driven from the
// pre/post processor's single main task (§5); no locking is required for
// that access path, but State's exported methods take its mutex, so they are
// also safe to call from other goroutines.
package risk

import (
	"time"

	"github.com/tradingctl/controlplane/pkg/types"
)

// Rule is the capability contract §4.5 requires.
type Rule interface {
	Name() string
	Check(signal types.Signal, state *State) (bool, error)
	IsCritical() bool
}

// Outcome captures what a single rule decided, for logging and testing.
type Outcome struct {
	Rule      string
	Passed    bool
	Critical  bool
	SoftVeto  bool
	Err       error
}

// ChainResult is what evaluating the whole rule chain against a signal produces.
type ChainResult struct {
	Vetoed     bool // a critical rule failed or errored — pipeline must stop
	VetoReason string
	VetoRule   string
	SoftVetoes []string // rules that failed but were non-critical
	Outcomes   []Outcome
}

// Chain evaluates rules in registration order per the semantics table in §4.5:
//
//	Ok(true)  any      -> continue
//	Ok(false) critical -> stop, veto
//	Ok(false) soft     -> continue, remember as soft-veto
//	Err       critical -> stop, propagate error
//	Err       soft     -> continue
type Chain struct {
	rules []Rule
}

// NewChain creates an empty rule chain.
func NewChain() *Chain {
	return &Chain{}
}

// Register appends a rule to the chain, in evaluation order.
func (c *Chain) Register(r Rule) {
	c.rules = append(c.rules, r)
}

// Evaluate runs every rule against signal and state, short-circuiting on the
// first critical failure or error.
func (c *Chain) Evaluate(signal types.Signal, state *State) ChainResult {
	result := ChainResult{}

	for _, rule := range c.rules {
		ok, err := rule.Check(signal, state)
		critical := rule.IsCritical()

		outcome := Outcome{Rule: rule.Name(), Passed: ok, Critical: critical, Err: err}

		switch {
		case err != nil && critical:
			outcome.SoftVeto = false
			result.Outcomes = append(result.Outcomes, outcome)
			result.Vetoed = true
			result.VetoReason = err.Error()
			result.VetoRule = rule.Name()
			return result

		case err != nil && !critical:
			result.Outcomes = append(result.Outcomes, outcome)
			continue

		case !ok && critical:
			result.Outcomes = append(result.Outcomes, outcome)
			result.Vetoed = true
			result.VetoReason = "rule veto: " + rule.Name()
			result.VetoRule = rule.Name()
			return result

		case !ok && !critical:
			outcome.SoftVeto = true
			result.Outcomes = append(result.Outcomes, outcome)
			result.SoftVetoes = append(result.SoftVetoes, rule.Name())
			continue

		default: // ok && any
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}
	}

	return result
}

// nowFunc is overridable in tests.
var nowFunc = func() time.Time { return time.Now().UTC() }
