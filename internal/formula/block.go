package formula

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// VarDecl declares one block variable: either a formula or a literal value.
type VarDecl struct {
	Name    string   `json:"name"`
	Formula Text     `json:"formula,omitempty"`
	Value   *Literal `json:"value,omitempty"`
}

// Block is an option block as stored in OPTIONS_OPERATION, OPTIONS_MATERIAL
// and the settings LOGIC_JSON:
//
//	{"vars": [{"name": "area", "formula": "width * length / 1000000"},
//	          {"name": "k", "value": 1.2}],
//	 "quantity": "area * k"}
type Block struct {
	Vars     []VarDecl `json:"vars"`
	Quantity Text      `json:"quantity"`
}

// ParseBlock decodes an option block. Blank text yields an empty block.
func ParseBlock(text string) (Block, error) {
	var b Block
	if strings.TrimSpace(text) == "" {
		return b, nil
	}
	if err := json.Unmarshal([]byte(text), &b); err != nil {
		return Block{}, fmt.Errorf("option block: %w", err)
	}
	for i, v := range b.Vars {
		if strings.TrimSpace(v.Name) == "" {
			return Block{}, fmt.Errorf("option block: var #%d has no name", i+1)
		}
		if v.Formula == "" && v.Value == nil {
			return Block{}, fmt.Errorf("option block: var %q has neither formula nor value", v.Name)
		}
	}
	return b, nil
}

// Formulas returns every formula text in the block.
func (b Block) Formulas() []string {
	var out []string
	for _, v := range b.Vars {
		if v.Formula != "" {
			out = append(out, string(v.Formula))
		}
	}
	if b.Quantity != "" {
		out = append(out, string(b.Quantity))
	}
	return out
}

// EvaluateQuantity computes a stage quantity called name.
//
// With no blocks the static value is returned with a single varStatic entry.
// Otherwise the vars of all blocks are evaluated in order, each visible to the
// later ones, preceded by an evaluatingVars entry (or noVars when there are
// none). The quantity formula of the last block that has one produces the
// final varFormula entry; without one the static value is kept.
//
// On error the entries produced so far are returned with it.
func EvaluateQuantity(name string, static float64, blocks []Block, vars Vars) (float64, []LogEntry, error) {
	if len(blocks) == 0 {
		return static, []LogEntry{Static(name, static)}, nil
	}

	scope := make(Vars, len(vars)+4)
	for k, v := range vars {
		scope[k] = v
	}

	var decls []VarDecl
	quantity := ""
	for _, b := range blocks {
		decls = append(decls, b.Vars...)
		if b.Quantity != "" {
			quantity = string(b.Quantity)
		}
	}

	var log []LogEntry
	if len(decls) == 0 {
		log = append(log, LogEntry{Type: EntryNoVars})
	} else {
		log = append(log, LogEntry{Type: EntryEvaluatingVars, Count: len(decls)})
	}
	for _, decl := range decls {
		if decl.Formula == "" {
			v := float64(*decl.Value)
			scope[decl.Name] = v
			log = append(log, Static(decl.Name, v))
			continue
		}
		v, entry, err := Evaluate(string(decl.Formula), scope)
		entry.Name = decl.Name
		log = append(log, entry)
		if err != nil {
			return 0, log, err
		}
		scope[decl.Name] = v
	}

	if quantity == "" {
		return static, append(log, Static(name, static)), nil
	}
	v, entry, err := Evaluate(quantity, scope)
	entry.Name = name
	log = append(log, entry)
	if err != nil {
		return 0, log, err
	}
	return v, log, nil
}

// Text is a formula field; JSON strings and numbers are both accepted.
type Text string

func (s *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Text(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected formula string or number, got %s", data)
	}
	*s = Text(n.String())
	return nil
}

// Literal is a numeric field; JSON numbers and numeric strings are both accepted.
type Literal float64

func (f *Literal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(str), ",", "."), 64)
		if err != nil {
			return fmt.Errorf("expected number, got %q", str)
		}
		*f = Literal(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Literal(v)
	return nil
}
