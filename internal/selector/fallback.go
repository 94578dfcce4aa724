package selector

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/schema-engine/internal/model"
)

// FallbackPolicy decides how a caller presents a result without a primary.
// Policies never change the selector's own output; they return a new result.
type FallbackPolicy interface {
	Name() string
	Apply(res *model.SelectionResult) *model.SelectionResult
}

// StrictPolicy leaves results untouched.
type StrictPolicy struct{}

func (StrictPolicy) Name() string { return "strict" }

func (StrictPolicy) Apply(res *model.SelectionResult) *model.SelectionResult { return res }

// ExploratoryPolicy promotes the top-ranked schema to an exploratory primary
// when none cleared the threshold. Confidence stays 0.
type ExploratoryPolicy struct{}

func (ExploratoryPolicy) Name() string { return "exploratory" }

func (ExploratoryPolicy) Apply(res *model.SelectionResult) *model.SelectionResult {
	if res == nil || res.Primary != nil || len(res.Ranked) == 0 {
		return res
	}
	out := *res
	top := res.Ranked[0]
	out.Primary = &top
	out.Exploratory = true
	out.SelectionNotes = append(append([]string(nil), res.SelectionNotes...),
		fmt.Sprintf("exploratory primary: %s (T=%.2f) promoted below threshold", top.ClinicalID, top.TScore))
	return &out
}

// PolicyByName resolves a configured fallback policy.
func PolicyByName(name string) (FallbackPolicy, error) {
	switch name {
	case "", "strict":
		return StrictPolicy{}, nil
	case "exploratory":
		return ExploratoryPolicy{}, nil
	default:
		return nil, eris.Errorf("selector: unknown fallback policy %q", name)
	}
}
