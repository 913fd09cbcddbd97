package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// PropertyValue is the calculation-relevant projection of a CMS property.
//
// VALUE may arrive as a string, number, bool, array or null and is flattened
// into Values. Text keeps the raw text of "~VALUE" (or VALUE) when it was a
// string or a {"TEXT": ...} object, which is how long JSON blobs are stored.
type PropertyValue struct {
	Code         string
	Values       []string
	XMLID        string
	Descriptions []string
	Text         string
}

// First returns the first value or "".
func (p PropertyValue) First() string {
	if len(p.Values) == 0 {
		return ""
	}
	return p.Values[0]
}

type wireProperty struct {
	Code        string          `json:"CODE,omitempty"`
	Value       json.RawMessage `json:"VALUE,omitempty"`
	RawValue    json.RawMessage `json:"~VALUE,omitempty"`
	XMLID       json.RawMessage `json:"VALUE_XML_ID,omitempty"`
	Description json.RawMessage `json:"DESCRIPTION,omitempty"`
}

func (p *PropertyValue) UnmarshalJSON(data []byte) error {
	var w wireProperty
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("property: %w", err)
	}

	values, valueText, err := decodeValues(w.Value)
	if err != nil {
		return fmt.Errorf("property %s VALUE: %w", w.Code, err)
	}
	_, rawText, err := decodeValues(w.RawValue)
	if err != nil {
		return fmt.Errorf("property %s ~VALUE: %w", w.Code, err)
	}
	xmlIDs, _, err := decodeValues(w.XMLID)
	if err != nil {
		return fmt.Errorf("property %s VALUE_XML_ID: %w", w.Code, err)
	}
	descriptions, _, err := decodeValues(w.Description)
	if err != nil {
		return fmt.Errorf("property %s DESCRIPTION: %w", w.Code, err)
	}

	*p = PropertyValue{
		Code:         w.Code,
		Values:       values,
		Descriptions: descriptions,
		Text:         rawText,
	}
	if p.Text == "" {
		p.Text = valueText
	}
	if len(xmlIDs) > 0 {
		p.XMLID = xmlIDs[0]
	}
	return nil
}

func (p PropertyValue) MarshalJSON() ([]byte, error) {
	w := wireProperty{Code: p.Code}
	var err error
	if len(p.Values) > 0 {
		if w.Value, err = json.Marshal(p.Values); err != nil {
			return nil, err
		}
	}
	if p.Text != "" {
		if w.RawValue, err = json.Marshal(p.Text); err != nil {
			return nil, err
		}
	}
	if p.XMLID != "" {
		if w.XMLID, err = json.Marshal(p.XMLID); err != nil {
			return nil, err
		}
	}
	if len(p.Descriptions) > 0 {
		if w.Description, err = json.Marshal(p.Descriptions); err != nil {
			return nil, err
		}
	}
	return json.Marshal(w)
}

// decodeValues flattens a Bitrix VALUE-like field. The second result is the
// text of a plain string or {"TEXT": ...} object.
func decodeValues(raw json.RawMessage) ([]string, string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, "", nil
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, "", err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			vals, _, err := decodeValues(item)
			if err != nil {
				return nil, "", err
			}
			if len(vals) == 0 {
				// keep positions aligned with DESCRIPTION
				out = append(out, "")
				continue
			}
			out = append(out, vals...)
		}
		return out, "", nil
	case '{':
		var obj struct {
			Text *string `json:"TEXT"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, "", err
		}
		if obj.Text == nil {
			return nil, "", nil
		}
		return []string{*obj.Text}, *obj.Text, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, "", err
		}
		return []string{s}, s, nil
	case 't':
		return []string{"Y"}, "", nil
	case 'f':
		return nil, "", nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, "", err
		}
		if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
			return nil, "", err
		}
		return []string{n.String()}, "", nil
	}
}
