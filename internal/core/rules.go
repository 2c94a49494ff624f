package core

import (
	"context"
	"fmt"
	"time"

	"roster/pkg/domain"
)

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewRegionMembershipRule())
	engine.Register(NewBirthDateSanityRule(nil))
	return engine
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in evaluation order.
func (e *RulesEngine) Rules() []string {
	names := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		names = append(names, r.Name())
	}
	return names
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		combined.Merge(res)
	}
	return combined, nil
}

// regionMembershipRule warns when a written employee lives outside the region list.
type regionMembershipRule struct{}

// NewRegionMembershipRule returns the region_membership rule.
func NewRegionMembershipRule() Rule { return regionMembershipRule{} }

func (regionMembershipRule) Name() string { return "region_membership" }

func (r regionMembershipRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	var res Result
	for _, change := range changes {
		if change.After == nil || domain.IsRegion(change.After.State) {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: SeverityWarn,
			Message:  fmt.Sprintf("state %q is not a known region", change.After.State),
			Entity:   EntityEmployee,
			EntityID: change.After.ID,
		})
	}
	return res, nil
}

// birthDateSanityRule warns on malformed or future dates of birth.
type birthDateSanityRule struct {
	now func() time.Time
}

// NewBirthDateSanityRule returns the birth_date_sanity rule. A nil clock uses time.Now.
func NewBirthDateSanityRule(now func() time.Time) Rule {
	if now == nil {
		now = time.Now
	}
	return birthDateSanityRule{now: now}
}

func (birthDateSanityRule) Name() string { return "birth_date_sanity" }

func (r birthDateSanityRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	var res Result
	today := r.now().UTC().Format(domain.DateLayout)
	for _, change := range changes {
		if change.After == nil {
			continue
		}
		var msg string
		dob, err := time.Parse(domain.DateLayout, change.After.DOB)
		switch {
		case err != nil:
			msg = fmt.Sprintf("date of birth %q is not a YYYY-MM-DD date", change.After.DOB)
		case dob.Format(domain.DateLayout) > today:
			msg = fmt.Sprintf("date of birth %s is in the future", change.After.DOB)
		default:
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: SeverityWarn,
			Message:  msg,
			Entity:   EntityEmployee,
			EntityID: change.After.ID,
		})
	}
	return res, nil
}
