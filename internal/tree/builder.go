package tree

import (
	"calc-server/internal/catalog"
	"calc-server/internal/formula"
	"calc-server/internal/model"
	"fmt"
	"strconv"
	"strings"
)

// Build expands the preset's CALC_DETAILS into a forest.
//
// Roots keep preset order. A root that is also a descendant of another root
// binding is dropped from the root list so it is priced once. Bindings are
// walked depth-first with the current path tracked, so a cycle fails instead
// of recursing.
func Build(preset *model.Preset, ix *catalog.Index) (*Forest, error) {
	const operation = "tree.Build"

	f := newForest()
	if preset == nil || len(preset.Properties.CalcDetails) == 0 {
		return f, nil
	}
	if err := ix.Require(catalog.SectionDetails); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	b := &builder{ix: ix, f: f, onPath: make(map[string]bool)}
	var roots []string
	for _, id := range preset.Properties.CalcDetails {
		key, err := b.node(id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", operation, err)
		}
		roots = append(roots, key)
	}

	nested := make(map[string]bool)
	for _, key := range roots {
		if bd, ok := f.bindings[key]; ok {
			f.markDescendants(bd, nested)
		}
	}
	seen := make(map[string]bool, len(roots))
	for _, key := range roots {
		if nested[key] || seen[key] {
			continue
		}
		seen[key] = true
		f.roots = append(f.roots, key)
	}
	return f, nil
}

func (f *Forest) markDescendants(bd *Binding, into map[string]bool) {
	for _, child := range bd.ChildrenOrder {
		if into[child] {
			continue
		}
		into[child] = true
		if nb, ok := f.bindings[child]; ok {
			f.markDescendants(nb, into)
		}
	}
}

type builder struct {
	ix     *catalog.Index
	f      *Forest
	path   []string
	onPath map[string]bool
}

func (b *builder) node(bitrixID int) (string, error) {
	entry, err := b.ix.ByID(catalog.SectionDetails, bitrixID)
	if err != nil {
		return "", &catalog.Error{Section: catalog.SectionDetails, ElementID: bitrixID, Reason: "referenced detail is missing"}
	}
	if entry.Props.XMLID(catalog.PropType) == catalog.TypeBinding {
		return b.binding(entry)
	}
	return b.detail(entry)
}

func (b *builder) detail(entry *catalog.Entry) (string, error) {
	el := entry.Element
	key := DetailID(el.ID)
	if _, done := b.f.details[key]; done {
		return key, nil
	}

	stages, err := b.stages(key, entry)
	if err != nil {
		return "", err
	}
	b.f.details[key] = &Detail{
		ID:       key,
		Name:     el.Name,
		Width:    el.Fields.Width,
		Length:   el.Fields.Length,
		Height:   el.Fields.Height,
		Weight:   el.Fields.Weight,
		Stages:   stages,
		BitrixID: el.ID,
	}
	b.f.detailOrder = append(b.f.detailOrder, key)
	return key, nil
}

func (b *builder) binding(entry *catalog.Entry) (string, error) {
	el := entry.Element
	key := BindingID(el.ID)
	if b.onPath[key] {
		start := 0
		for i, k := range b.path {
			if k == key {
				start = i
				break
			}
		}
		path := append(append([]string(nil), b.path[start:]...), key)
		return "", &CyclicStructureError{Path: path}
	}
	if _, done := b.f.bindings[key]; done {
		return key, nil
	}

	b.onPath[key] = true
	b.path = append(b.path, key)
	b.f.bindingOrder = append(b.f.bindingOrder, key)

	bd := &Binding{
		ID:            key,
		Name:          el.Name,
		Width:         el.Fields.Width,
		Length:        el.Fields.Length,
		Height:        el.Fields.Height,
		Weight:        el.Fields.Weight,
		DetailIDs:     []string{},
		BindingIDs:    []string{},
		ChildrenOrder: []string{},
		BitrixID:      el.ID,
	}
	for _, childID := range entry.Props.IDs(catalog.PropDetails) {
		childKey, err := b.node(childID)
		if err != nil {
			return "", err
		}
		if _, isBinding := b.f.bindings[childKey]; isBinding {
			bd.BindingIDs = append(bd.BindingIDs, childKey)
		} else {
			bd.DetailIDs = append(bd.DetailIDs, childKey)
		}
		bd.ChildrenOrder = append(bd.ChildrenOrder, childKey)
	}

	stages, err := b.stages(key, entry)
	if err != nil {
		return "", err
	}
	bd.Stages = stages
	bd.HasStages = len(stages) > 0

	b.path = b.path[:len(b.path)-1]
	delete(b.onPath, key)
	b.f.bindings[key] = bd
	return key, nil
}

func (b *builder) stages(nodeID string, owner *catalog.Entry) ([]StageInstance, error) {
	ids := owner.Props.IDs(catalog.PropStages)
	out := make([]StageInstance, 0, len(ids))
	for i, stageID := range ids {
		entry, err := b.ix.ByID(catalog.SectionStages, stageID)
		if err != nil {
			return nil, &catalog.Error{
				Section:   catalog.SectionStages,
				ElementID: stageID,
				Reason:    fmt.Sprintf("stage referenced by %s is missing", nodeID),
			}
		}
		st := newStage(nodeID, i+1, entry)

		// Settings are optional; a dangling id just leaves the stage without shared logic.
		if st.SettingsID != 0 {
			if settings, err := b.ix.ByID(catalog.SectionSettings, st.SettingsID); err == nil {
				st.SettingsName = settings.Element.Name
				st.Logic = settings.Props.Text(catalog.PropLogicJSON)
			}
		}
		if err := checkForwardRefs(nodeID, st); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func newStage(nodeID string, position int, entry *catalog.Entry) StageInstance {
	p := entry.Props
	st := StageInstance{
		ID:               fmt.Sprintf("%s_stage_%d", nodeID, position),
		Position:         position,
		StageID:          entry.Element.ID,
		StageName:        entry.Element.Name,
		CustomFields:     p.CustomFields(),
		OptionsOperation: p.Text(catalog.PropOptionsOperation),
		OptionsMaterial:  p.Text(catalog.PropOptionsMaterial),
	}
	st.SettingsID, _ = p.ID(catalog.PropSettings)
	st.OperationVariantID, _ = p.ID(catalog.PropOperationVariant)
	st.EquipmentID, _ = p.ID(catalog.PropEquipment)
	st.MaterialVariantID, _ = p.ID(catalog.PropMaterialVariant)
	st.OperationQuantity, _ = p.Number(catalog.PropOperationQuantity)
	st.MaterialQuantity, _ = p.Number(catalog.PropMaterialQuantity)
	return st
}

// checkForwardRefs scans every formula a stage can evaluate for stageN.*
// references with N not before the stage itself. Blocks that fail to parse
// are skipped here; evaluation reports them on the stage.
func checkForwardRefs(nodeID string, st StageInstance) error {
	for _, text := range []string{st.Logic, st.OptionsOperation, st.OptionsMaterial} {
		block, err := formula.ParseBlock(text)
		if err != nil {
			continue
		}
		for _, src := range block.Formulas() {
			expr, err := formula.Parse(src)
			if err != nil {
				continue
			}
			for _, name := range expr.Variables() {
				n, ok := StageRef(name)
				if ok && n >= st.Position {
					return &ForwardReferenceError{
						NodeID:    nodeID,
						StageID:   st.StageID,
						Position:  st.Position,
						Reference: name,
						Formula:   src,
					}
				}
			}
		}
	}
	return nil
}

// StageRef extracts N from a "stageN.field" variable name.
func StageRef(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "stage")
	if !ok {
		return 0, false
	}
	digits, _, ok := strings.Cut(rest, ".")
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
