package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPropertyValue_DecodesBitrixShapes(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		values []string
		xmlID  string
		descs  []string
		text   string
	}{
		{
			name:   "list with xml id",
			raw:    `{"CODE":"TYPE","VALUE":"Деталь","VALUE_XML_ID":"DETAIL"}`,
			values: []string{"Деталь"},
			xmlID:  "DETAIL",
			text:   "Деталь",
		},
		{
			name:   "multiple ids",
			raw:    `{"CODE":"CALC_STAGES","VALUE":["11","12"],"DESCRIPTION":null}`,
			values: []string{"11", "12"},
		},
		{
			name:   "custom fields with descriptions",
			raw:    `{"CODE":"CUSTOM_FIELDS_VALUE","VALUE":["rate",null],"DESCRIPTION":["3","4"]}`,
			values: []string{"rate", ""},
			descs:  []string{"3", "4"},
		},
		{
			name:   "numeric value",
			raw:    `{"CODE":"OPERATION_QUANTITY","VALUE":2.5}`,
			values: []string{"2.5"},
		},
		{
			name: "false means empty",
			raw:  `{"CODE":"EQUIPMENT","VALUE":false}`,
		},
		{
			name:   "text object in raw value wins",
			raw:    `{"CODE":"LOGIC_JSON","VALUE":{"TEXT":"escaped"},"~VALUE":{"TEXT":"{\"vars\":[]}","TYPE":"HTML"}}`,
			values: []string{"escaped"},
			text:   `{"vars":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p PropertyValue
			if err := json.Unmarshal([]byte(tt.raw), &p); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !reflect.DeepEqual(p.Values, tt.values) {
				t.Errorf("Values = %q, want %q", p.Values, tt.values)
			}
			if p.XMLID != tt.xmlID {
				t.Errorf("XMLID = %q, want %q", p.XMLID, tt.xmlID)
			}
			if !reflect.DeepEqual(p.Descriptions, tt.descs) {
				t.Errorf("Descriptions = %q, want %q", p.Descriptions, tt.descs)
			}
			if p.Text != tt.text {
				t.Errorf("Text = %q, want %q", p.Text, tt.text)
			}
		})
	}
}

func TestPropertyValue_MarshalKeepsSemantics(t *testing.T) {
	in := PropertyValue{
		Code:         "CUSTOM_FIELDS_VALUE",
		Values:       []string{"rate", "k"},
		Descriptions: []string{"3", "1.5"},
		XMLID:        "X",
		Text:         `{"quantity":"2"}`,
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out PropertyValue
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestBasePriceType(t *testing.T) {
	if _, ok := BasePriceType(nil); ok {
		t.Fatalf("empty list should have no base type")
	}
	pt, _ := BasePriceType([]PriceType{{ID: 1}, {ID: 2, Base: true}})
	if pt.ID != 2 {
		t.Fatalf("base type = %d, want 2", pt.ID)
	}
	pt, _ = BasePriceType([]PriceType{{ID: 5}, {ID: 6}})
	if pt.ID != 5 {
		t.Fatalf("fallback base type = %d, want 5", pt.ID)
	}
}
