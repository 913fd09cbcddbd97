package calc

import (
	"calc-server/internal/catalog"
	"calc-server/internal/formula"
	"calc-server/internal/model"
	"calc-server/internal/tree"
	"fmt"
)

// Value is a resolved variable and where it came from.
type Value struct {
	Number     float64
	SourcePath string
}

// Vars is the variable scope of one stage.
type Vars map[string]Value

func (v Vars) set(name string, n float64, source string) {
	v[name] = Value{Number: n, SourcePath: source}
}

// Numbers strips source paths for the evaluator.
func (v Vars) Numbers() formula.Vars {
	out := make(formula.Vars, len(v))
	for name, val := range v {
		out[name] = val.Number
	}
	return out
}

// Node is the detail or binding whose stages are being evaluated.
type Node struct {
	ID     string
	Name   string
	Fields model.Dimensions
	Stages []tree.StageInstance
}

// Context is everything a stage can see besides its own fields.
type Context struct {
	Offer    *model.Offer
	Product  *model.Product
	Quantity float64
	Node     Node
	// Totals and Prior cover earlier stages of the current node only.
	Totals Amounts
	Prior  []StageResult
}

// Resolve builds the variable scope of a stage. Names it does not produce
// stay unresolved and fail any formula that reads them.
//
// Built-in names win over custom fields of the same name.
func Resolve(st tree.StageInstance, ctx *Context) Vars {
	v := make(Vars, 32+len(st.CustomFields))

	for name, raw := range st.CustomFields {
		if n, ok, err := catalog.ParseNumber(raw); err == nil && ok {
			v.set(name, n, "stage.customFields."+name)
		}
	}

	v.set("operationQuantity", st.OperationQuantity, "stage.operationQuantity")
	v.set("materialQuantity", st.MaterialQuantity, "stage.materialQuantity")

	for _, dim := range model.DimensionNames {
		if n, ok := ctx.Node.Fields.Get(dim); ok {
			v.set(dim, n, ctx.Node.ID+".fields."+dim)
			v.set("detail."+dim, n, ctx.Node.ID+".fields."+dim)
		}
	}

	v.set("quantity", ctx.Quantity, "offer.quantity")
	v.set("offer.quantity", ctx.Quantity, "offer.quantity")
	if ctx.Offer != nil {
		for _, dim := range model.DimensionNames {
			if n, ok := ctx.Offer.Attributes.Get(dim); ok {
				v.set("offer."+dim, n, "offer.attributes."+dim)
			}
		}
		if ctx.Offer.MeasureRatio != nil {
			v.set("offer.measureRatio", *ctx.Offer.MeasureRatio, "offer.measureRatio")
		}
	}
	if ctx.Product != nil {
		for _, dim := range model.DimensionNames {
			if n, ok := ctx.Product.Attributes.Get(dim); ok {
				v.set("product."+dim, n, "product.attributes."+dim)
			}
		}
	}

	v.set("totals.purchasingPrice", ctx.Totals.PurchasingPrice, ctx.Node.ID+".totals.purchasingPrice")
	v.set("totals.basePrice", ctx.Totals.BasePrice, ctx.Node.ID+".totals.basePrice")

	for i, prev := range ctx.Prior {
		prefix := fmt.Sprintf("stage%d.", i+1)
		source := fmt.Sprintf("%s.stages[%d].", ctx.Node.ID, i)
		v.set(prefix+"operationQuantity", prev.OperationQuantity, source+"operationQuantity")
		v.set(prefix+"materialQuantity", prev.MaterialQuantity, source+"materialQuantity")
		v.set(prefix+"purchasingPrice", prev.Delta.PurchasingPrice, source+"delta.purchasingPrice")
		v.set(prefix+"basePrice", prev.Delta.BasePrice, source+"delta.basePrice")
	}
	return v
}
