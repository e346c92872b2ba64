package constraints

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TriggerEvent is a row change that fires a constraint trigger.
type TriggerEvent string

const (
	Insert TriggerEvent = "INSERT"
	Update TriggerEvent = "UPDATE"
	Delete TriggerEvent = "DELETE"
)

// Normalize returns the canonical upper-case form of the event.
func (e TriggerEvent) Normalize() TriggerEvent {
	return TriggerEvent(cases.Upper(language.Und).String(strings.TrimSpace(string(e))))
}

// Known reports whether e is INSERT, UPDATE or DELETE after normalisation.
func (e TriggerEvent) Known() bool {
	switch e.Normalize() {
	case Insert, Update, Delete:
		return true
	}
	return false
}

// ToTriggerEvent coerces loose input into an event. Strings and fmt.Stringer
// values are accepted in any case.
func ToTriggerEvent(v any) (TriggerEvent, error) {
	switch t := v.(type) {
	case TriggerEvent:
		return t.Normalize(), nil
	case string:
		return TriggerEvent(t).Normalize(), nil
	case fmt.Stringer:
		return TriggerEvent(t.String()).Normalize(), nil
	}
	return "", fmt.Errorf("trigger event must be a string, got %T", v)
}

func joinEvents(events []TriggerEvent) string {
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = string(e)
	}
	return strings.Join(parts, " OR ")
}

func eventSet(events []TriggerEvent) map[TriggerEvent]struct{} {
	set := make(map[TriggerEvent]struct{}, len(events))
	for _, e := range events {
		set[e] = struct{}{}
	}
	return set
}
