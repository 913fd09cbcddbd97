package formula

// EntryType classifies an audit log entry.
type EntryType string

const (
	EntryEvaluatingVars EntryType = "evaluatingVars"
	EntryVarFormula     EntryType = "varFormula"
	EntryVarStatic      EntryType = "varStatic"
	EntryNoVars         EntryType = "noVars"
	EntryError          EntryType = "error"
	EntryWarning        EntryType = "warning"
)

// FormulaValue is one variable a formula referenced.
type FormulaValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// LogEntry is one step of a stage evaluation.
type LogEntry struct {
	Type           EntryType      `json:"type"`
	Count          int            `json:"count,omitempty"`
	Name           string         `json:"name,omitempty"`
	Value          *float64       `json:"value,omitempty"`
	Formula        string         `json:"formula,omitempty"`
	FormulaPreview string         `json:"formulaPreview,omitempty"`
	FormulaValues  []FormulaValue `json:"formulaValues,omitempty"`
	Message        string         `json:"message,omitempty"`
}

// Static returns the varStatic entry for a literal value.
func Static(name string, value float64) LogEntry {
	return LogEntry{Type: EntryVarStatic, Name: name, Value: &value}
}
