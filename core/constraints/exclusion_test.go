package constraints_test

import (
	"errors"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/go-extras/go-kit/must"

	"github.com/stokaro/pgconstraints/core/constraints"
	"github.com/stokaro/pgconstraints/core/ddl"
	"github.com/stokaro/pgconstraints/core/expr"
	"github.com/stokaro/pgconstraints/core/schema"
	"github.com/stokaro/pgconstraints/core/schema/postgres"
)

func roomOverlap() []constraints.ExclusionExpression {
	return []constraints.ExclusionExpression{
		constraints.Exclude("room", "="),
		constraints.Exclude("during", "&&"),
	}
}

func TestExclusionConstraint_CreateSQL(t *testing.T) {
	active := expr.Where("status", expr.Exact, "active")

	tests := []struct {
		name     string
		model    *schema.Model
		exprs    []constraints.ExclusionExpression
		opts     []constraints.ExclusionOption
		expected string
	}{
		{
			name:     "default index type",
			model:    schema.NewModel("events"),
			exprs:    roomOverlap(),
			expected: `ALTER TABLE "events" ADD CONSTRAINT "no_overlap" EXCLUDE USING GIST ("room" WITH =, "during" WITH &&)`,
		},
		{
			name:     "condition",
			model:    schema.NewModel("events"),
			exprs:    roomOverlap(),
			opts:     []constraints.ExclusionOption{constraints.WithCondition(active)},
			expected: `ALTER TABLE "events" ADD CONSTRAINT "no_overlap" EXCLUDE USING GIST ("room" WITH =, "during" WITH &&) WHERE ("status" = 'active')`,
		},
		{
			name:     "deferrable",
			model:    schema.NewModel("events"),
			exprs:    roomOverlap(),
			opts:     []constraints.ExclusionOption{constraints.WithDeferrable(ddl.DeferrableDeferred)},
			expected: `ALTER TABLE "events" ADD CONSTRAINT "no_overlap" EXCLUDE USING GIST ("room" WITH =, "during" WITH &&) DEFERRABLE INITIALLY DEFERRED`,
		},
		{
			name:     "spgist",
			model:    schema.NewModel("events"),
			exprs:    []constraints.ExclusionExpression{constraints.Exclude("during", "&&")},
			opts:     []constraints.ExclusionOption{constraints.WithIndexType("SpGist")},
			expected: `ALTER TABLE "events" ADD CONSTRAINT "no_overlap" EXCLUDE USING SPGIST ("during" WITH &&)`,
		},
		{
			name:  "function expression with literal",
			model: &schema.Model{Schema: "booking", Table: "events"},
			exprs: []constraints.ExclusionExpression{
				constraints.Exclude(expr.NewFunc("tstzrange", "starts_at", "ends_at", expr.Val("[)")), "&&"),
			},
			expected: `ALTER TABLE "booking"."events" ADD CONSTRAINT "no_overlap" EXCLUDE USING GIST (tstzrange("starts_at", "ends_at", '[)') WITH &&)`,
		},
		{
			name:  "nested condition",
			model: schema.NewModel("events", "room", "during", "status", "cancelled"),
			exprs: roomOverlap(),
			opts: []constraints.ExclusionOption{constraints.WithCondition(expr.And(
				expr.Where("cancelled", expr.Exact, false),
				expr.Or(
					expr.Where("status", expr.Exact, "active"),
					expr.Where("status", expr.Exact, "it's pending"),
				),
			))},
			expected: `ALTER TABLE "events" ADD CONSTRAINT "no_overlap" EXCLUDE USING GIST ("room" WITH =, "during" WITH &&) WHERE ("cancelled" = false AND ("status" = 'active' OR "status" = 'it''s pending'))`,
		},
	}

	editor := postgres.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)

			constraint := must.Must(constraints.NewExclusionConstraint("no_overlap", tt.exprs, tt.opts...))
			stmt, err := constraint.CreateSQL(tt.model, editor)
			c.Assert(err, qt.IsNil)
			c.Assert(stmt.String(), qt.Equals, tt.expected)
			c.Assert(stmt.ReferencesTable(tt.model.Schema, tt.model.Table), qt.IsTrue)
		})
	}
}

func TestExclusionConstraint_Fragments(t *testing.T) {
	c := qt.New(t)
	editor := postgres.New()
	model := schema.NewModel("events")

	constraint := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap(),
		constraints.WithCondition(expr.Where("status", expr.Exact, "active"))))

	exprs, err := constraint.ExpressionSQL(model, editor)
	c.Assert(err, qt.IsNil)
	c.Assert(exprs, qt.DeepEquals, []string{`"room" WITH =`, `"during" WITH &&`})

	cond, err := constraint.ConditionSQL(model, editor)
	c.Assert(err, qt.IsNil)
	c.Assert(cond, qt.Equals, `"status" = 'active'`)

	fragment, err := constraint.ConstraintSQL(model, editor)
	c.Assert(err, qt.IsNil)
	c.Assert(fragment, qt.Equals, `CONSTRAINT "no_overlap" EXCLUDE USING GIST ("room" WITH =, "during" WITH &&) WHERE ("status" = 'active')`)

	plain := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap()))
	cond, err = plain.ConditionSQL(model, editor)
	c.Assert(err, qt.IsNil)
	c.Assert(cond, qt.Equals, "")
}

func TestExclusionConstraint_CompilationErrorPropagates(t *testing.T) {
	c := qt.New(t)
	editor := postgres.New()
	model := schema.NewModel("events", "room")

	constraint := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap()))
	stmt, err := constraint.CreateSQL(model, editor)
	c.Assert(stmt, qt.IsNil)
	c.Assert(err, qt.ErrorIs, expr.ErrUnknownColumn)

	var ce *expr.CompilationError
	c.Assert(errors.As(err, &ce), qt.IsTrue)
	c.Assert(errors.Is(err, constraints.ErrValidation), qt.IsFalse)
}

func TestExclusionConstraint_RemoveSQL(t *testing.T) {
	c := qt.New(t)
	editor := postgres.New()

	constraint := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap()))
	stmt := constraint.RemoveSQL(schema.NewModel("events"), editor)
	c.Assert(stmt.String(), qt.Equals, `ALTER TABLE "events" DROP CONSTRAINT "no_overlap"`)
	c.Assert(stmt.Template(), qt.Equals, "ALTER TABLE {table} DROP CONSTRAINT {name}")
}

func TestNewExclusionConstraint_IndexType(t *testing.T) {
	tests := []struct {
		input    string
		expected constraints.IndexType
		valid    bool
	}{
		{input: "gist", expected: constraints.GiST, valid: true},
		{input: "GIST", expected: constraints.GiST, valid: true},
		{input: "spgist", expected: constraints.SPGiST, valid: true},
		{input: "SpGist", expected: constraints.SPGiST, valid: true},
		{input: "hash", valid: false},
		{input: "btree", valid: false},
		{input: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c := qt.New(t)

			constraint, err := constraints.NewExclusionConstraint("no_overlap", roomOverlap(), constraints.WithIndexType(tt.input))
			if !tt.valid {
				c.Assert(err, qt.ErrorIs, constraints.ErrValidation)
				c.Assert(err, qt.ErrorMatches, `invalid constraint "no_overlap": exclusion constraints only support GiST or SP-GiST indexes.*`)
				return
			}
			c.Assert(err, qt.IsNil)
			c.Assert(constraint.IndexType(), qt.Equals, tt.expected)
		})
	}
}

func TestNewExclusionConstraint_Validation(t *testing.T) {
	condition := expr.Where("status", expr.Exact, "active")

	tests := []struct {
		name   string
		cname  string
		exprs  []constraints.ExclusionExpression
		opts   []constraints.ExclusionOption
		reason string
	}{
		{
			name:   "empty name",
			exprs:  roomOverlap(),
			reason: "name must not be empty",
		},
		{
			name:   "no expressions",
			cname:  "no_overlap",
			reason: "at least one expression is required to define an exclusion constraint",
		},
		{
			name:   "missing expression",
			cname:  "no_overlap",
			exprs:  []constraints.ExclusionExpression{constraints.Exclude(nil, "=")},
			reason: `expression 0 must be an \(expression, operator\) pair`,
		},
		{
			name:   "missing operator",
			cname:  "no_overlap",
			exprs:  []constraints.ExclusionExpression{constraints.Exclude("room", "="), constraints.Exclude("during", "")},
			reason: `expression 1 must be an \(expression, operator\) pair`,
		},
		{
			name:   "condition and deferrable",
			cname:  "no_overlap",
			exprs:  roomOverlap(),
			opts:   []constraints.ExclusionOption{constraints.WithCondition(condition), constraints.WithDeferrable(ddl.DeferrableDeferred)},
			reason: "exclusion constraints with conditions cannot be deferred",
		},
		{
			name:   "condition and not deferrable",
			cname:  "no_overlap",
			exprs:  roomOverlap(),
			opts:   []constraints.ExclusionOption{constraints.WithCondition(condition), constraints.WithDeferrable(ddl.NotDeferrable)},
			reason: "exclusion constraints with conditions cannot be deferred",
		},
		{
			name:   "empty condition",
			cname:  "no_overlap",
			exprs:  roomOverlap(),
			opts:   []constraints.ExclusionOption{constraints.WithCondition(expr.And())},
			reason: "condition must not be empty",
		},
		{
			name:   "unknown deferrable",
			cname:  "no_overlap",
			exprs:  roomOverlap(),
			opts:   []constraints.ExclusionOption{constraints.WithDeferrable(ddl.Deferrable(42))},
			reason: "invalid deferrable mode: 42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)

			constraint, err := constraints.NewExclusionConstraint(tt.cname, tt.exprs, tt.opts...)
			c.Assert(constraint, qt.IsNil)
			c.Assert(err, qt.ErrorIs, constraints.ErrValidation)

			var ve *constraints.ValidationError
			c.Assert(errors.As(err, &ve), qt.IsTrue)
			c.Assert(ve.Constraint, qt.Equals, tt.cname)
			c.Assert(ve.Reason, qt.Matches, tt.reason)
		})
	}
}

func TestExclusionConstraint_Equal(t *testing.T) {
	c := qt.New(t)

	base := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap()))
	same := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap(), constraints.WithIndexType("gist")))
	reversed := must.Must(constraints.NewExclusionConstraint("no_overlap", []constraints.ExclusionExpression{
		constraints.Exclude("during", "&&"),
		constraints.Exclude("room", "="),
	}))
	otherOperator := must.Must(constraints.NewExclusionConstraint("no_overlap", []constraints.ExclusionExpression{
		constraints.Exclude("room", "<>"),
		constraints.Exclude("during", "&&"),
	}))
	spgist := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap(), constraints.WithIndexType("spgist")))
	renamed := must.Must(constraints.NewExclusionConstraint("other", roomOverlap()))
	conditional := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap(),
		constraints.WithCondition(expr.Where("status", expr.Exact, "active"))))
	deferred := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap(),
		constraints.WithDeferrable(ddl.DeferrableDeferred)))
	trigger := must.Must(constraints.NewConstraintTrigger("no_overlap", []constraints.TriggerEvent{constraints.Insert}, expr.NewFunc("fn")))

	c.Assert(base.Equal(base), qt.IsTrue)
	c.Assert(base.Equal(same), qt.IsTrue)
	c.Assert(same.Equal(base), qt.IsTrue)
	c.Assert(base.Equal(reversed), qt.IsFalse)
	c.Assert(reversed.Equal(base), qt.IsFalse)
	c.Assert(base.Equal(otherOperator), qt.IsFalse)
	c.Assert(base.Equal(spgist), qt.IsFalse)
	c.Assert(base.Equal(renamed), qt.IsFalse)
	c.Assert(base.Equal(conditional), qt.IsFalse)
	c.Assert(base.Equal(deferred), qt.IsFalse)
	c.Assert(base.Equal(trigger), qt.IsFalse)
	c.Assert(base.Equal(nil), qt.IsFalse)
}

func TestExclusionConstraint_Accessors(t *testing.T) {
	c := qt.New(t)

	exprs := roomOverlap()
	constraint := must.Must(constraints.NewExclusionConstraint("no_overlap", exprs))
	exprs[0] = constraints.Exclude("other", "=")

	got := constraint.Expressions()
	c.Assert(got, qt.HasLen, 2)
	c.Assert(got[0].Expression.Equal(expr.Col("room")), qt.IsTrue)
	c.Assert(constraint.Name(), qt.Equals, "no_overlap")
	c.Assert(constraint.Condition(), qt.IsNil)
	c.Assert(constraint.Deferrable(), qt.Equals, ddl.DeferrableUnset)
}

func TestExclusionConstraint_CopiesCallerTrees(t *testing.T) {
	c := qt.New(t)
	editor := postgres.New()
	model := schema.NewModel("events")

	during := expr.NewFunc("tstzrange", "starts_at", "ends_at")
	cond := expr.Where("status", expr.In, []string{"active", "pending"})
	constraint := must.Must(constraints.NewExclusionConstraint("no_overlap",
		[]constraints.ExclusionExpression{constraints.Exclude(during, "&&")},
		constraints.WithCondition(cond)))
	const expected = `ALTER TABLE "events" ADD CONSTRAINT "no_overlap" EXCLUDE USING GIST (tstzrange("starts_at", "ends_at") WITH &&) WHERE ("status" IN ('active', 'pending'))`

	during.Name = "int4range"
	cond.Children = nil
	stmt, err := constraint.CreateSQL(model, editor)
	c.Assert(err, qt.IsNil)
	c.Assert(stmt.String(), qt.Equals, expected)

	constraint.Condition().Children[0].(*expr.Lookup).RHS = expr.Val([]string{"x"})
	constraint.Expressions()[0].Expression.(*expr.Func).Args = nil
	stmt, err = constraint.CreateSQL(model, editor)
	c.Assert(err, qt.IsNil)
	c.Assert(stmt.String(), qt.Equals, expected)
}

func TestExclusionConstraint_String(t *testing.T) {
	c := qt.New(t)

	constraint := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap()))
	c.Assert(constraint.String(), qt.Equals, "<ExclusionConstraint: name=no_overlap, index_type=GIST, expressions=[(Col(room), =), (Col(during), &&)]>")

	deferred := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap(), constraints.WithDeferrable(ddl.DeferrableImmediate)))
	c.Assert(deferred.String(), qt.Equals, "<ExclusionConstraint: name=no_overlap, index_type=GIST, expressions=[(Col(room), =), (Col(during), &&)], deferrable=DEFERRABLE INITIALLY IMMEDIATE>")
}

func TestExclusionConstraint_ConcurrentCreateSQL(t *testing.T) {
	c := qt.New(t)
	editor := postgres.New()
	model := schema.NewModel("events")
	constraint := must.Must(constraints.NewExclusionConstraint("no_overlap", roomOverlap(),
		constraints.WithCondition(expr.Where("status", expr.In, []string{"active", "pending"}))))

	const workers = 16
	results := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stmt, err := constraint.CreateSQL(model, editor)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = stmt.String()
		}(i)
	}
	wg.Wait()

	expected := `ALTER TABLE "events" ADD CONSTRAINT "no_overlap" EXCLUDE USING GIST ("room" WITH =, "during" WITH &&) WHERE ("status" IN ('active', 'pending'))`
	for i := range workers {
		c.Assert(errs[i], qt.IsNil)
		c.Assert(results[i], qt.Equals, expected)
	}
}
