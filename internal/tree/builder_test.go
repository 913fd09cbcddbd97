package tree

import (
	"calc-server/internal/catalog"
	"calc-server/internal/model"
	"errors"
	"reflect"
	"testing"
)

func ids(values ...string) model.PropertyValue {
	return model.PropertyValue{Values: values}
}

func detailEl(id int, name string, stages ...string) model.Element {
	return model.Element{
		ID:   id,
		Name: name,
		Properties: map[string]model.PropertyValue{
			catalog.PropType:   {XMLID: catalog.TypeDetail},
			catalog.PropStages: ids(stages...),
		},
	}
}

func bindingEl(id int, name string, children ...string) model.Element {
	return model.Element{
		ID:   id,
		Name: name,
		Properties: map[string]model.PropertyValue{
			catalog.PropType:    {XMLID: catalog.TypeBinding},
			catalog.PropDetails: ids(children...),
		},
	}
}

func build(t *testing.T, store model.ElementsStore, roots ...int) (*Forest, error) {
	t.Helper()
	ix, err := catalog.Build(store)
	if err != nil {
		t.Fatalf("catalog.Build: %v", err)
	}
	preset := &model.Preset{ID: 1, Properties: model.PresetProperties{CalcDetails: roots}}
	return Build(preset, ix)
}

func TestBuild_ChildrenOrderAndRoots(t *testing.T) {
	inner := bindingEl(3, "Вложенное скрепление", "4")
	inner.Properties[catalog.PropStages] = ids("100")
	store := model.ElementsStore{
		catalog.SectionDetails: {
			bindingEl(1, "Скрепление", "2", "3", "5"),
			detailEl(2, "Обложка", "100", "101"),
			inner,
			detailEl(4, "Блок"),
			detailEl(5, "Форзац"),
			detailEl(6, "Отдельная деталь"),
		},
		catalog.SectionStages: {
			{ID: 100, Name: "Печать", Properties: map[string]model.PropertyValue{
				catalog.PropOperationQuantity: ids("2"),
				catalog.PropOperationVariant:  ids("700"),
			}},
			{ID: 101, Name: "Ламинация"},
		},
	}

	f, err := build(t, store, 6, 1, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if want := []string{"detail_6", "binding_1"}; !reflect.DeepEqual(f.Roots(), want) {
		t.Fatalf("roots = %v, want %v (nested root dropped)", f.Roots(), want)
	}

	b, ok := f.Binding("binding_1")
	if !ok {
		t.Fatalf("binding_1 not built")
	}
	if want := []string{"detail_2", "binding_3", "detail_5"}; !reflect.DeepEqual(b.ChildrenOrder, want) {
		t.Fatalf("childrenOrder = %v, want %v", b.ChildrenOrder, want)
	}
	if !reflect.DeepEqual(b.DetailIDs, []string{"detail_2", "detail_5"}) || !reflect.DeepEqual(b.BindingIDs, []string{"binding_3"}) {
		t.Fatalf("detailIds = %v bindingIds = %v", b.DetailIDs, b.BindingIDs)
	}
	if b.HasStages {
		t.Fatalf("binding_1 has no CALC_STAGES")
	}
	if inner, _ := f.Binding("binding_3"); !inner.HasStages || len(inner.Stages) != 1 {
		t.Fatalf("binding_3 stages = %+v", inner.Stages)
	}

	d, _ := f.Detail("detail_2")
	if len(d.Stages) != 2 || d.Stages[0].StageID != 100 || d.Stages[1].StageID != 101 {
		t.Fatalf("stages out of source order: %+v", d.Stages)
	}
	st := d.Stages[0]
	if st.Position != 1 || st.OperationQuantity != 2 || st.OperationVariantID != 700 || st.ID != "detail_2_stage_1" {
		t.Fatalf("stage = %+v", st)
	}
	if f.Len() != 6 {
		t.Fatalf("forest has %d nodes, want 6", f.Len())
	}
}

func TestBuild_SharedSubtreeStoredOnce(t *testing.T) {
	store := model.ElementsStore{
		catalog.SectionDetails: {
			bindingEl(1, "A", "3"),
			bindingEl(2, "B", "3"),
			detailEl(3, "Общая деталь"),
		},
	}
	f, err := build(t, store, 1, 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(f.Details()) != 1 || len(f.Bindings()) != 2 {
		t.Fatalf("details = %d bindings = %d", len(f.Details()), len(f.Bindings()))
	}
	if !reflect.DeepEqual(f.Roots(), []string{"binding_1", "binding_2"}) {
		t.Fatalf("roots = %v", f.Roots())
	}
}

func TestBuild_Cycle(t *testing.T) {
	store := model.ElementsStore{
		catalog.SectionDetails: {
			bindingEl(1, "A", "2"),
			bindingEl(2, "B", "3", "1"),
			detailEl(3, "Лист"),
		},
	}
	_, err := build(t, store, 1)
	var cyc *CyclicStructureError
	if !errors.As(err, &cyc) {
		t.Fatalf("err = %v, want CyclicStructureError", err)
	}
	if want := []string{"binding_1", "binding_2", "binding_1"}; !reflect.DeepEqual(cyc.Path, want) {
		t.Fatalf("path = %v, want %v", cyc.Path, want)
	}

	selfStore := model.ElementsStore{catalog.SectionDetails: {bindingEl(7, "Self", "7")}}
	if _, err := build(t, selfStore, 7); !errors.As(err, &cyc) {
		t.Fatalf("self reference: err = %v", err)
	}
}

func TestBuild_ForwardReference(t *testing.T) {
	stage := func(id int, options string) model.Element {
		return model.Element{ID: id, Name: "Этап", Properties: map[string]model.PropertyValue{
			catalog.PropOptionsOperation: {Text: options},
		}}
	}
	store := model.ElementsStore{
		catalog.SectionDetails: {detailEl(1, "Деталь", "100", "101")},
		catalog.SectionStages: {
			stage(100, `{"quantity":"width * 2"}`),
			stage(101, `{"vars":[{"name":"x","formula":"stage1.operationQuantity + stage2.materialQuantity"}]}`),
		},
	}
	_, err := build(t, store, 1)
	var fwd *ForwardReferenceError
	if !errors.As(err, &fwd) {
		t.Fatalf("err = %v, want ForwardReferenceError", err)
	}
	if fwd.Reference != "stage2.materialQuantity" || fwd.Position != 2 || fwd.NodeID != "detail_1" {
		t.Fatalf("fwd = %+v", fwd)
	}

	// Backward references and unparsable blocks build fine.
	store[catalog.SectionStages][1] = stage(101, `{"quantity":"stage1.operationQuantity * 3"}`)
	store[catalog.SectionStages][0] = stage(100, `{not json`)
	if _, err := build(t, store, 1); err != nil {
		t.Fatalf("Build: %v", err)
	}
}

func TestBuild_SettingsLogic(t *testing.T) {
	store := model.ElementsStore{
		catalog.SectionDetails: {detailEl(1, "Деталь", "100")},
		catalog.SectionStages: {{ID: 100, Name: "Резка", Properties: map[string]model.PropertyValue{
			catalog.PropSettings: ids("900"),
		}}},
		catalog.SectionSettings: {{ID: 900, Name: "Резка листа", Properties: map[string]model.PropertyValue{
			catalog.PropLogicJSON: {Text: `{"vars":[{"name":"k","value":2}]}`},
		}}},
	}
	f, err := build(t, store, 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	d, _ := f.Detail("detail_1")
	if st := d.Stages[0]; st.SettingsName != "Резка листа" || st.Logic == "" {
		t.Fatalf("stage = %+v", st)
	}
}

func TestBuild_MissingReferences(t *testing.T) {
	var catErr *catalog.Error

	store := model.ElementsStore{
		catalog.SectionDetails: {detailEl(1, "Деталь", "100")},
		catalog.SectionStages:  {},
	}
	if _, err := build(t, store, 1); !errors.As(err, &catErr) || catErr.Section != catalog.SectionStages {
		t.Fatalf("missing stage: err = %v", err)
	}

	if _, err := build(t, store, 42); !errors.As(err, &catErr) || catErr.ElementID != 42 {
		t.Fatalf("missing root: err = %v", err)
	}

	if _, err := build(t, model.ElementsStore{}, 1); !errors.As(err, &catErr) {
		t.Fatalf("missing section: err = %v", err)
	}
}

func TestBuild_NoPreset(t *testing.T) {
	ix, _ := catalog.Build(model.ElementsStore{})
	f, err := Build(nil, ix)
	if err != nil || len(f.Roots()) != 0 {
		t.Fatalf("nil preset: %v %v", f, err)
	}
}

func TestStageRef(t *testing.T) {
	tests := []struct {
		name string
		n    int
		ok   bool
	}{
		{"stage1.basePrice", 1, true},
		{"stage12.operationQuantity", 12, true},
		{"stage.x", 0, false},
		{"stage0.x", 0, false},
		{"stages1.x", 0, false},
		{"stage1", 0, false},
		{"width", 0, false},
	}
	for _, tt := range tests {
		n, ok := StageRef(tt.name)
		if n != tt.n || ok != tt.ok {
			t.Errorf("StageRef(%q) = %d, %v; want %d, %v", tt.name, n, ok, tt.n, tt.ok)
		}
	}
}
