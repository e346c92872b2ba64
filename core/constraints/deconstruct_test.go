package constraints_test

import (
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/go-extras/go-kit/must"

	"github.com/stokaro/pgconstraints/core/constraints"
	"github.com/stokaro/pgconstraints/core/ddl"
	"github.com/stokaro/pgconstraints/core/expr"
)

func TestExclusionConstraint_DeconstructRoundTrip(t *testing.T) {
	indexTypes := []string{"", "gist", "spgist"}
	conditions := []*expr.Q{nil, expr.Where("status", expr.Exact, "active")}
	deferrables := []ddl.Deferrable{ddl.DeferrableUnset, ddl.NotDeferrable, ddl.DeferrableImmediate, ddl.DeferrableDeferred}

	for _, it := range indexTypes {
		for _, cond := range conditions {
			for _, d := range deferrables {
				if cond != nil && d.IsSet() {
					continue
				}
				t.Run(fmt.Sprintf("%s/%v/%s", it, cond != nil, d), func(t *testing.T) {
					c := qt.New(t)

					var opts []constraints.ExclusionOption
					if it != "" {
						opts = append(opts, constraints.WithIndexType(it))
					}
					if cond != nil {
						opts = append(opts, constraints.WithCondition(cond))
					}
					if d.IsSet() {
						opts = append(opts, constraints.WithDeferrable(d))
					}
					original := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap(), opts...))

					rebuilt, err := constraints.Reconstruct(original.Deconstruct())
					c.Assert(err, qt.IsNil)
					c.Assert(rebuilt.Equal(original), qt.IsTrue)
					c.Assert(original.Equal(rebuilt), qt.IsTrue)
				})
			}
		}
	}
}

func TestExclusionConstraint_DeconstructKwargs(t *testing.T) {
	c := qt.New(t)

	plain := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap(), constraints.WithIndexType("GiST")))
	d := plain.Deconstruct()
	c.Assert(d.Path, qt.Equals, constraints.ExclusionConstraintPath)
	c.Assert(d.Keys(), qt.DeepEquals, []string{"expressions", "name"})

	full := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap(),
		constraints.WithIndexType("spgist"), constraints.WithDeferrable(ddl.DeferrableDeferred)))
	d = full.Deconstruct()
	c.Assert(d.Keys(), qt.DeepEquals, []string{"deferrable", "expressions", "index_type", "name"})
	c.Assert(d.Kwargs["index_type"], qt.Equals, "SPGIST")
	c.Assert(d.Kwargs["deferrable"], qt.Equals, ddl.DeferrableDeferred)
}

func TestConstraintTrigger_DeconstructRoundTrip(t *testing.T) {
	conditions := []*expr.Q{nil, expr.Where(expr.New("status"), expr.NotEqual, expr.Old("status"))}
	deferrables := []ddl.Deferrable{ddl.DeferrableUnset, ddl.NotDeferrable, ddl.DeferrableImmediate, ddl.DeferrableDeferred}

	for _, cond := range conditions {
		for _, d := range deferrables {
			t.Run(fmt.Sprintf("%v/%s", cond != nil, d), func(t *testing.T) {
				c := qt.New(t)

				var opts []constraints.TriggerOption
				if cond != nil {
					opts = append(opts, constraints.WithTriggerCondition(cond))
				}
				if d.IsSet() {
					opts = append(opts, constraints.WithTriggerDeferrable(d))
				}
				original := must.Must(constraints.NewConstraintTrigger("audit_trigger", auditEvents(), expr.NewFunc("audit_fn", expr.Val("x")), opts...))

				decon := original.Deconstruct()
				c.Assert(decon.Path, qt.Equals, constraints.ConstraintTriggerPath)
				_, hasCondition := decon.Kwargs["condition"]
				c.Assert(hasCondition, qt.Equals, cond != nil)
				_, hasDeferrable := decon.Kwargs["deferrable"]
				c.Assert(hasDeferrable, qt.Equals, d.IsSet())

				rebuilt, err := constraints.Reconstruct(decon)
				c.Assert(err, qt.IsNil)
				c.Assert(rebuilt.Equal(original), qt.IsTrue)
			})
		}
	}
}

func TestReconstruct_LooseInput(t *testing.T) {
	c := qt.New(t)

	rebuilt, err := constraints.Reconstruct(constraints.Deconstruction{
		Path: constraints.ExclusionConstraintPath,
		Kwargs: map[string]any{
			"name":        "no_overlap",
			"expressions": []any{[]any{"room", "="}, [2]any{expr.Col("during"), "&&"}},
			"index_type":  "SpGist",
			"deferrable":  "deferrable initially immediate",
		},
	})
	c.Assert(err, qt.IsNil)
	expected := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap(),
		constraints.WithIndexType("spgist"), constraints.WithDeferrable(ddl.DeferrableImmediate)))
	c.Assert(rebuilt.Equal(expected), qt.IsTrue)

	rebuilt, err = constraints.Reconstruct(constraints.Deconstruction{
		Path: constraints.ConstraintTriggerPath,
		Kwargs: map[string]any{
			"name":     "audit_trigger",
			"events":   []any{"delete", "Insert"},
			"function": expr.NewFunc("audit_fn"),
		},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(rebuilt.Equal(must.Must(constraints.NewConstraintTrigger("audit_trigger", auditEvents(), expr.NewFunc("audit_fn")))), qt.IsTrue)
}

func TestReconstruct_Errors(t *testing.T) {
	exclusion := func(kwargs map[string]any) constraints.Deconstruction {
		base := map[string]any{"name": "no_overlap", "expressions": roomOverlap()}
		for k, v := range kwargs {
			base[k] = v
		}
		return constraints.Deconstruction{Path: constraints.ExclusionConstraintPath, Kwargs: base}
	}

	tests := []struct {
		name     string
		input    constraints.Deconstruction
		expected string
	}{
		{
			name:     "unknown path",
			input:    constraints.Deconstruction{Path: "constraints.CheckConstraint"},
			expected: `invalid constraint: unknown constraint path "constraints.CheckConstraint"`,
		},
		{
			name:     "unexpected argument",
			input:    exclusion(map[string]any{"events": []string{"INSERT"}}),
			expected: `invalid constraint "no_overlap": unexpected argument "events"`,
		},
		{
			name:     "missing name",
			input:    constraints.Deconstruction{Path: constraints.ExclusionConstraintPath, Kwargs: map[string]any{"expressions": roomOverlap()}},
			expected: `invalid constraint: name must be a string, got <nil>`,
		},
		{
			name:     "expression not a pair",
			input:    exclusion(map[string]any{"expressions": []any{[]any{"room", "=", "extra"}}}),
			expected: `invalid constraint "no_overlap": expression 0: must be an \(expression, operator\) pair, got .*`,
		},
		{
			name:     "expressions not a list",
			input:    exclusion(map[string]any{"expressions": "room"}),
			expected: `invalid constraint "no_overlap": expressions must be a list of \(expression, operator\) pairs, got string`,
		},
		{
			name:     "operator not a string",
			input:    exclusion(map[string]any{"expressions": []any{[]any{"room", 1}}}),
			expected: `invalid constraint "no_overlap": expression 0: operator must be a string, got int`,
		},
		{
			name:     "condition is raw sql",
			input:    exclusion(map[string]any{"condition": "status = 'active'"}),
			expected: `invalid constraint "no_overlap": condition must be a boolean condition tree, got string`,
		},
		{
			name:     "condition is a map",
			input:    exclusion(map[string]any{"condition": map[string]any{"status": "active"}}),
			expected: `invalid constraint "no_overlap": condition must be a boolean condition tree, got map\[string\]interface \{\}`,
		},
		{
			name:     "unknown deferrable name",
			input:    exclusion(map[string]any{"deferrable": "sometimes"}),
			expected: `invalid constraint "no_overlap": invalid deferrable mode: "sometimes"`,
		},
		{
			name:     "deferrable of wrong type",
			input:    exclusion(map[string]any{"deferrable": true}),
			expected: `invalid constraint "no_overlap": deferrable must be a deferrable mode, got bool`,
		},
		{
			name:     "condition with deferrable",
			input:    exclusion(map[string]any{"condition": expr.Where("status", expr.Exact, "active"), "deferrable": ddl.DeferrableDeferred}),
			expected: `invalid constraint "no_overlap": exclusion constraints with conditions cannot be deferred`,
		},
		{
			name: "trigger function of wrong type",
			input: constraints.Deconstruction{Path: constraints.ConstraintTriggerPath, Kwargs: map[string]any{
				"name": "audit_trigger", "events": []string{"INSERT"}, "function": "audit_fn",
			}},
			expected: `invalid constraint "audit_trigger": function must be a function call, got string`,
		},
		{
			name: "trigger event of wrong type",
			input: constraints.Deconstruction{Path: constraints.ConstraintTriggerPath, Kwargs: map[string]any{
				"name": "audit_trigger", "events": []any{1}, "function": expr.NewFunc("audit_fn"),
			}},
			expected: `invalid constraint "audit_trigger": event 0: trigger event must be a string, got int`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)

			rebuilt, err := constraints.Reconstruct(tt.input)
			c.Assert(rebuilt, qt.IsNil)
			c.Assert(err, qt.ErrorIs, constraints.ErrValidation)
			c.Assert(err, qt.ErrorMatches, tt.expected)
		})
	}
}
