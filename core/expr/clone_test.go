package expr_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/stokaro/pgconstraints/core/expr"
)

func TestClone(t *testing.T) {
	c := qt.New(t)

	kinds := []string{"a", "b"}
	original := expr.And(
		expr.Where("kind", expr.In, kinds),
		expr.Where(expr.NewFunc("lower", "email"), expr.Exact, expr.RawSQL("lower(?)", "X")),
		expr.Not(expr.Where(expr.Old("status"), expr.IsNull, true)),
	)
	clone := expr.CloneCondition(original)
	c.Assert(clone.Equal(original), qt.IsTrue)
	c.Assert(clone, qt.Not(qt.Equals), original)

	kinds[0] = "z"
	original.Children[1].(*expr.Q).Children[0].(*expr.Lookup).LHS.(*expr.Func).Name = "upper"
	original.Children = original.Children[:1]

	c.Assert(clone.Children, qt.HasLen, 3)
	lookup := clone.Children[0].(*expr.Q).Children[0].(*expr.Lookup)
	c.Assert(lookup.RHS.Equal(expr.Val([]string{"a", "b"})), qt.IsTrue)
	fn := clone.Children[1].(*expr.Q).Children[0].(*expr.Lookup).LHS.(*expr.Func)
	c.Assert(fn.Name, qt.Equals, "lower")
}

func TestClone_Nil(t *testing.T) {
	c := qt.New(t)

	c.Assert(expr.Clone(nil), qt.IsNil)
	c.Assert(expr.CloneCondition(nil), qt.IsNil)
	c.Assert(expr.CloneFunc(nil), qt.IsNil)
	c.Assert(expr.Clone((*expr.Column)(nil)), qt.IsNil)
}
