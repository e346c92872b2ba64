package constraints

import (
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/stokaro/pgconstraints/core/ddl"
	"github.com/stokaro/pgconstraints/core/expr"
	"github.com/stokaro/pgconstraints/core/schema"
)

const (
	triggerCreateTemplate = "CREATE CONSTRAINT TRIGGER {name}\n" +
		"AFTER {events} ON {table} {deferrable}\n" +
		"FOR EACH ROW {condition}\n" +
		"EXECUTE PROCEDURE {procedure}"
	triggerDeleteTemplate = "DROP TRIGGER {name} ON {table}"
)

type triggerConfig struct {
	condition  *expr.Q
	deferrable ddl.Deferrable
}

// TriggerOption configures a constraint trigger.
type TriggerOption func(*triggerConfig)

// WithTriggerCondition adds a WHEN condition. Use expr.New and expr.Old to
// reference the row images.
func WithTriggerCondition(condition *expr.Q) TriggerOption {
	return func(c *triggerConfig) {
		c.condition = condition
	}
}

// WithTriggerDeferrable sets the deferrability clause.
func WithTriggerDeferrable(d ddl.Deferrable) TriggerOption {
	return func(c *triggerConfig) {
		c.deferrable = d
	}
}

// ConstraintTrigger renders a row-level CREATE CONSTRAINT TRIGGER.
type ConstraintTrigger struct {
	name       string
	events     []TriggerEvent
	procedure  *expr.Func
	condition  *expr.Q
	deferrable ddl.Deferrable
}

// NewConstraintTrigger validates its arguments and returns the trigger.
// Events are stored upper-cased in the order given. The procedure and the
// condition are copied.
//
// Example:
//
//	t, err := constraints.NewConstraintTrigger("audit_trigger",
//		[]constraints.TriggerEvent{constraints.Insert, constraints.Delete},
//		expr.NewFunc("audit_fn"))
func NewConstraintTrigger(name string, events []TriggerEvent, procedure *expr.Func, opts ...TriggerOption) (*ConstraintTrigger, error) {
	cfg := triggerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if name == "" {
		return nil, newValidationError(name, "name must not be empty")
	}
	if len(events) == 0 {
		return nil, newValidationError(name, "events must contain at least one trigger event")
	}
	normalized := make([]TriggerEvent, len(events))
	for i, e := range events {
		normalized[i] = e.Normalize()
		if normalized[i] == "" {
			return nil, newValidationError(name, "event %d is empty", i)
		}
		if !normalized[i].Known() {
			slog.Warn("Unknown constraint trigger event", "trigger", name, "event", normalized[i])
		}
	}
	procedure = expr.CloneFunc(procedure)
	if procedure == nil {
		return nil, newValidationError(name, "function must not be nil")
	}
	if procedure.Name == "" {
		return nil, newValidationError(name, "function name must not be empty")
	}
	condition := expr.CloneCondition(cfg.condition)
	if err := validateCondition(name, condition); err != nil {
		return nil, err
	}
	if !cfg.deferrable.Valid() {
		return nil, newValidationError(name, "%v: %d", ddl.ErrInvalidDeferrable, int(cfg.deferrable))
	}

	return &ConstraintTrigger{
		name:       name,
		events:     normalized,
		procedure:  procedure,
		condition:  condition,
		deferrable: cfg.deferrable,
	}, nil
}

func (t *ConstraintTrigger) Name() string { return t.name }

// Procedure returns a copy of the procedure call.
func (t *ConstraintTrigger) Procedure() *expr.Func { return expr.CloneFunc(t.procedure) }

// Condition returns a copy of the WHEN condition, or nil.
func (t *ConstraintTrigger) Condition() *expr.Q { return expr.CloneCondition(t.condition) }

func (t *ConstraintTrigger) Deferrable() ddl.Deferrable { return t.deferrable }

// Events returns a copy of the normalised events.
func (t *ConstraintTrigger) Events() []TriggerEvent {
	return append([]TriggerEvent(nil), t.events...)
}

// ConditionSQL renders "WHEN (<condition>)", or an empty string when the
// trigger fires unconditionally.
func (t *ConstraintTrigger) ConditionSQL(m *schema.Model, e schema.Editor) (string, error) {
	if t.condition == nil {
		return "", nil
	}
	sql, err := compileInline(e, t.condition, m.Query())
	if err != nil {
		return "", err
	}
	return "WHEN (" + sql + ")", nil
}

// ProcedureSQL renders the procedure call with its arguments inlined.
func (t *ConstraintTrigger) ProcedureSQL(e schema.Editor) (string, error) {
	return compileInline(e, t.procedure, nil)
}

// CreateSQL renders CREATE CONSTRAINT TRIGGER. Empty deferrable and condition
// slots keep their place in the template.
func (t *ConstraintTrigger) CreateSQL(m *schema.Model, e schema.Editor) (*ddl.Statement, error) {
	condition, err := t.ConditionSQL(m, e)
	if err != nil {
		return nil, err
	}
	procedure, err := t.ProcedureSQL(e)
	if err != nil {
		return nil, err
	}
	return ddl.NewStatement(triggerCreateTemplate, map[string]any{
		"name":       e.QuoteName(t.name),
		"events":     joinEvents(t.events),
		"table":      e.Table(m),
		"deferrable": strings.TrimSpace(e.DeferrableSQL(t.deferrable)),
		"condition":  condition,
		"procedure":  procedure,
	}), nil
}

// RemoveSQL renders DROP TRIGGER ... ON ....
func (t *ConstraintTrigger) RemoveSQL(m *schema.Model, e schema.Editor) *ddl.Statement {
	return ddl.NewStatement(triggerDeleteTemplate, map[string]any{
		"name":  e.QuoteName(t.name),
		"table": e.Table(m),
	})
}

// Equal compares events as a set; the remaining fields must match exactly.
func (t *ConstraintTrigger) Equal(other Constraint) bool {
	o, ok := other.(*ConstraintTrigger)
	if !ok || o == nil {
		return false
	}
	if t.name != o.name || t.deferrable != o.deferrable {
		return false
	}
	if !maps.Equal(eventSet(t.events), eventSet(o.events)) {
		return false
	}
	if !t.procedure.Equal(o.procedure) {
		return false
	}
	return equalCondition(t.condition, o.condition)
}

func (t *ConstraintTrigger) Deconstruct() Deconstruction {
	kwargs := map[string]any{
		KwargName:     t.name,
		KwargEvents:   t.Events(),
		KwargFunction: t.Procedure(),
	}
	if t.condition != nil {
		kwargs[KwargCondition] = t.Condition()
	}
	if t.deferrable.IsSet() {
		kwargs[KwargDeferrable] = t.deferrable
	}
	return Deconstruction{Path: ConstraintTriggerPath, Kwargs: kwargs}
}

func (t *ConstraintTrigger) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<ConstraintTrigger: name=%s, events=%v, function=%s", t.name, t.events, t.procedure)
	if t.condition != nil {
		fmt.Fprintf(&sb, ", condition=%s", t.condition)
	}
	if t.deferrable.IsSet() {
		fmt.Fprintf(&sb, ", deferrable=%s", t.deferrable)
	}
	sb.WriteString(">")
	return sb.String()
}
