package ddl

// Table is a table reference rendered through the editor's identifier quoting.
type Table struct {
	Schema string
	Name   string
	Quote  func(string) string
}

// NewTable creates a table reference. An empty schema renders the bare name.
func NewTable(schema, name string, quote func(string) string) *Table {
	return &Table{Schema: schema, Name: name, Quote: quote}
}

// References reports whether the reference points at the given table. An
// empty schema matches any schema.
func (t *Table) References(schema, name string) bool {
	return t.Name == name && (schema == "" || t.Schema == schema)
}

func (t *Table) String() string {
	quote := t.Quote
	if quote == nil {
		quote = func(s string) string { return s }
	}
	if t.Schema == "" {
		return quote(t.Name)
	}
	return quote(t.Schema) + "." + quote(t.Name)
}
