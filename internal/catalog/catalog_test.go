package catalog

import (
	"calc-server/internal/model"
	"errors"
	"testing"
)

func prop(values ...string) model.PropertyValue {
	return model.PropertyValue{Values: values}
}

func sampleStore() model.ElementsStore {
	return model.ElementsStore{
		SectionDetails: {
			{
				ID:   10,
				Name: "Обложка",
				Properties: map[string]model.PropertyValue{
					PropType:   {Values: []string{"Деталь"}, XMLID: TypeDetail},
					PropStages: prop("100", "", "101"),
					"COLOR":    prop("red"),
				},
			},
			{
				ID:   20,
				Name: "Блок",
				Properties: map[string]model.PropertyValue{
					PropType:    {XMLID: TypeBinding},
					PropDetails: prop("10"),
				},
			},
			{ID: 30, Name: "Без типа"},
		},
		SectionStages: {
			{
				ID:   100,
				Name: "Печать",
				Properties: map[string]model.PropertyValue{
					PropOperationQuantity: prop("2,5"),
					PropOperationVariant:  prop("500"),
					PropCustomFields:      {Values: []string{"rate", "", "k"}, Descriptions: []string{"3", "x", "1.5"}},
					PropOptionsOperation:  {Text: `{"quantity":"width * 2"}`},
				},
			},
		},
	}
}

func TestBuild_IndexesAndDecodesProperties(t *testing.T) {
	ix, err := Build(sampleStore())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	d, err := ix.ByID(SectionDetails, 10)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if got := d.Props.IDs(PropStages); len(got) != 2 || got[0] != 100 || got[1] != 101 {
		t.Fatalf("stage ids = %v, want [100 101]", got)
	}
	if got := d.Props.XMLID(PropType); got != TypeDetail {
		t.Fatalf("type = %q", got)
	}
	if _, ok := d.Props.Unknown("COLOR"); !ok {
		t.Fatalf("unrecognized property should be kept in the unknown slot")
	}

	untyped, _ := ix.ByID(SectionDetails, 30)
	if got := untyped.Props.XMLID(PropType); got != TypeDetail {
		t.Fatalf("missing TYPE should default to DETAIL, got %q", got)
	}

	st, _ := ix.ByID(SectionStages, 100)
	if q, ok := st.Props.Number(PropOperationQuantity); !ok || q != 2.5 {
		t.Fatalf("operation quantity = %v %v, want 2.5", q, ok)
	}
	if id, ok := st.Props.ID(PropOperationVariant); !ok || id != 500 {
		t.Fatalf("operation variant = %v %v", id, ok)
	}
	cf := st.Props.CustomFields()
	if len(cf) != 2 || cf["rate"] != "3" || cf["k"] != "1.5" {
		t.Fatalf("custom fields = %v", cf)
	}
	if got := st.Props.Text(PropOptionsOperation); got != `{"quantity":"width * 2"}` {
		t.Fatalf("options = %q", got)
	}

	if got := ix.Elements(SectionDetails); len(got) != 3 || got[0].Element.ID != 10 || got[2].Element.ID != 30 {
		t.Fatalf("elements not in source order")
	}
}

func TestByID_NotFound(t *testing.T) {
	ix, err := Build(sampleStore())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := ix.ByID(SectionStages, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing element: err = %v, want ErrNotFound", err)
	}
	if _, err := ix.ByID(SectionEquipment, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing section: err = %v, want ErrNotFound", err)
	}
}

func TestRequire_MissingSection(t *testing.T) {
	ix, _ := Build(sampleStore())
	if err := ix.Require(SectionDetails, SectionStages); err != nil {
		t.Fatalf("present sections: %v", err)
	}
	err := ix.Require(SectionDetails, SectionSettings)
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *catalog.Error", err)
	}
	if ce.Section != SectionSettings {
		t.Fatalf("section = %q", ce.Section)
	}
}

func TestBuild_RejectsMalformedRecognizedProperties(t *testing.T) {
	tests := []struct {
		name  string
		store model.ElementsStore
		prop  string
	}{
		{
			name: "bad detail type",
			store: model.ElementsStore{SectionDetails: {{ID: 1, Properties: map[string]model.PropertyValue{
				PropType: {XMLID: "WIDGET"},
			}}}},
			prop: PropType,
		},
		{
			name: "bad stage id",
			store: model.ElementsStore{SectionDetails: {{ID: 1, Properties: map[string]model.PropertyValue{
				PropStages: prop("12a"),
			}}}},
			prop: PropStages,
		},
		{
			name: "bad quantity",
			store: model.ElementsStore{SectionStages: {{ID: 1, Properties: map[string]model.PropertyValue{
				PropMaterialQuantity: prop("two"),
			}}}},
			prop: PropMaterialQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.store)
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *catalog.Error", err)
			}
			if ce.Property != tt.prop || ce.ElementID != 1 {
				t.Fatalf("error = %+v", ce)
			}
		})
	}
}

func TestBuild_DuplicateID(t *testing.T) {
	_, err := Build(model.ElementsStore{SectionStages: {{ID: 7}, {ID: 7}}})
	var ce *Error
	if !errors.As(err, &ce) || ce.ElementID != 7 {
		t.Fatalf("err = %v, want duplicate id error", err)
	}
}
