package calc

import (
	"calc-server/internal/catalog"
	"calc-server/internal/formula"
	"calc-server/internal/model"
	"calc-server/internal/pricing"
	"calc-server/internal/tree"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// stageRun carries what a stage needs beyond its node context.
type stageRun struct {
	ix         *catalog.Index
	baseTypeID int
	log        *zap.Logger
}

// evalStage evaluates one stage. It never fails: problems zero the stage and
// are recorded in its log. The returned warning is non-empty when a price
// tier was missing.
func (r *stageRun) evalStage(st tree.StageInstance, ctx *Context) (StageResult, string) {
	res := StageResult{
		InstanceID:        st.ID,
		StageID:           st.StageID,
		StageName:         st.StageName,
		NodeID:            ctx.Node.ID,
		NodeName:          ctx.Node.Name,
		OperationQuantity: st.OperationQuantity,
		MaterialQuantity:  st.MaterialQuantity,
		Logs:              []formula.LogEntry{},
		Inputs:            []InputEntry{},
	}

	vars := Resolve(st, ctx)
	err := r.fill(&res, st, vars, ctx.Quantity)
	res.Inputs = collectInputs(res.Logs, vars)
	if err == nil {
		return res, ""
	}

	res.Added = AddedEntry{}
	res.Delta = Amounts{}
	res.Error = err.Error()
	if errors.Is(err, pricing.ErrNoMatchingTier) {
		res.Logs = append(res.Logs, formula.LogEntry{Type: formula.EntryWarning, Message: err.Error()})
		r.log.Debug("No price tier for stage",
			zap.String("node", ctx.Node.ID), zap.Int("stage", st.StageID), zap.Error(err))
		return res, fmt.Sprintf("%s stage %d: %v", ctx.Node.ID, st.StageID, err)
	}
	res.Logs = append(res.Logs, formula.LogEntry{Type: formula.EntryError, Message: err.Error()})
	r.log.Debug("Stage evaluation failed",
		zap.String("node", ctx.Node.ID), zap.Int("stage", st.StageID), zap.Error(err))
	return res, ""
}

func (r *stageRun) fill(res *StageResult, st tree.StageInstance, vars Vars, offerQty float64) error {
	logic, err := parseBlock("settings LOGIC_JSON", st.Logic)
	if err != nil {
		return err
	}
	// settings contribute vars only; quantities come from the stage options
	if logic != nil {
		logic.Quantity = ""
	}
	opBlock, err := parseBlock("OPTIONS_OPERATION", st.OptionsOperation)
	if err != nil {
		return err
	}
	matBlock, err := parseBlock("OPTIONS_MATERIAL", st.OptionsMaterial)
	if err != nil {
		return err
	}

	scope := vars.Numbers()

	opQty, entries, err := formula.EvaluateQuantity("operationQuantity", st.OperationQuantity, blocks(logic, opBlock), scope)
	res.Logs = append(res.Logs, entries...)
	if err != nil {
		return err
	}
	res.OperationQuantity = opQty
	scope["operationQuantity"] = opQty

	matQty, entries, err := formula.EvaluateQuantity("materialQuantity", st.MaterialQuantity, blocks(logic, matBlock), scope)
	res.Logs = append(res.Logs, entries...)
	if err != nil {
		return err
	}
	res.MaterialQuantity = matQty

	op, err := r.price(catalog.SectionOperationsVariants, st.OperationVariantID, opQty, offerQty)
	if err != nil {
		return fmt.Errorf("operation: %w", err)
	}
	mat, err := r.price(catalog.SectionMaterialsVariants, st.MaterialVariantID, matQty, offerQty)
	if err != nil {
		return fmt.Errorf("material: %w", err)
	}

	res.Added = AddedEntry{Operation: op, Material: mat}
	res.Delta = op.Add(mat)
	return nil
}

// price costs qty units of a variant. The tier is the one whose band holds
// the offer quantity. No variant or a zero quantity costs nothing.
func (r *stageRun) price(section string, variantID int, qty, offerQty float64) (Amounts, error) {
	if variantID == 0 || qty == 0 {
		return Amounts{}, nil
	}
	entry, err := r.ix.ByID(section, variantID)
	if err != nil {
		return Amounts{}, err
	}
	el := entry.Element

	var purchasing float64
	if el.PurchasingPrice != nil {
		purchasing = *el.PurchasingPrice
	}
	base, err := pricing.Lookup(el.Prices, r.baseTypeID, offerQty, purchasing)
	if err != nil {
		return Amounts{}, err
	}
	return Amounts{PurchasingPrice: purchasing * qty, BasePrice: base * qty}, nil
}

func parseBlock(source, text string) (*formula.Block, error) {
	if text == "" {
		return nil, nil
	}
	b, err := formula.ParseBlock(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return &b, nil
}

func blocks(bs ...*formula.Block) []formula.Block {
	var out []formula.Block
	for _, b := range bs {
		if b != nil {
			out = append(out, *b)
		}
	}
	return out
}

// collectInputs lists the resolved variables the stage formulas read, in
// first-use order. Block-local vars are not inputs.
func collectInputs(logs []formula.LogEntry, vars Vars) []InputEntry {
	out := []InputEntry{}
	seen := make(map[string]bool)
	for _, entry := range logs {
		for _, fv := range entry.FormulaValues {
			if seen[fv.Name] {
				continue
			}
			v, ok := vars[fv.Name]
			if !ok || v.Number != fv.Value {
				continue
			}
			seen[fv.Name] = true
			out = append(out, InputEntry{Name: fv.Name, Value: v.Number, SourcePath: v.SourcePath})
		}
	}
	return out
}

// offerQuantity is the production run: quantity, else measure ratio, else 1.
func offerQuantity(o *model.Offer) float64 {
	if o.Quantity != nil && *o.Quantity != 0 {
		return *o.Quantity
	}
	if o.MeasureRatio != nil && *o.MeasureRatio > 0 {
		return *o.MeasureRatio
	}
	return 1
}
