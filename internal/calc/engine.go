package calc

import (
	"calc-server/internal/catalog"
	"calc-server/internal/model"
	"calc-server/internal/pricing"
	"calc-server/internal/tree"
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultCurrency is used when neither the offer nor the product names one.
const DefaultCurrency = "RUB"

// ErrAllOffersFailed is returned under PolicyError when no offer of a
// non-empty batch could be calculated.
var ErrAllOffersFailed = errors.New("all offers failed")

// AllFailedPolicy decides what a batch where every offer failed returns.
type AllFailedPolicy string

const (
	PolicyError   AllFailedPolicy = "error"
	PolicyResults AllFailedPolicy = "results"
)

// ParsePolicy validates a policy name. Empty selects PolicyError.
func ParsePolicy(s string) (AllFailedPolicy, error) {
	switch AllFailedPolicy(s) {
	case "", PolicyError:
		return PolicyError, nil
	case PolicyResults:
		return PolicyResults, nil
	}
	return "", fmt.Errorf("unknown all-offers-failed policy %q", s)
}

type Options struct {
	// Workers caps concurrently calculated offers. 0 means runtime.NumCPU().
	Workers         int
	AllFailedPolicy AllFailedPolicy
	Logger          *zap.Logger
}

// Engine prices offers. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	workers int
	policy  AllFailedPolicy
	log     *zap.Logger
}

func NewEngine(opts Options) *Engine {
	e := &Engine{workers: opts.Workers, policy: opts.AllFailedPolicy, log: opts.Logger}
	if e.workers <= 0 {
		e.workers = runtime.NumCPU()
	}
	if e.policy == "" {
		e.policy = PolicyError
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	return e
}

// Input is one calculation request after indexing and tree building.
type Input struct {
	Offers     []model.Offer
	Product    *model.Product
	Preset     *model.Preset
	Forest     *tree.Forest
	Index      *catalog.Index
	PriceTypes []model.PriceType
}

// Prepare indexes the payload catalog and builds the preset forest. Without a
// preset or a CALC_DETAILS section the forest is empty.
func (e *Engine) Prepare(p *model.Payload) (Input, error) {
	const operation = "calc.Prepare"

	ix, err := catalog.Build(p.ElementsStore)
	if err != nil {
		return Input{}, fmt.Errorf("%s: %w", operation, err)
	}

	forest := tree.Empty()
	if p.Preset != nil && ix.Has(catalog.SectionDetails) {
		forest, err = tree.Build(p.Preset, ix)
		if err != nil {
			return Input{}, fmt.Errorf("%s: %w", operation, err)
		}
	} else {
		e.log.Warn("No preset or details section, using empty tree",
			zap.Bool("hasPreset", p.Preset != nil))
	}

	return Input{
		Offers:     p.SelectedOffers,
		Product:    p.Product,
		Preset:     p.Preset,
		Forest:     forest,
		Index:      ix,
		PriceTypes: p.PriceTypes,
	}, nil
}

// Calculate prepares the payload and prices every offer.
func (e *Engine) Calculate(ctx context.Context, p *model.Payload) ([]OfferResult, error) {
	in, err := e.Prepare(p)
	if err != nil {
		return nil, err
	}
	return e.CalculateAllOffers(ctx, in)
}

// CalculateAllOffers prices the offers in parallel. Results are in input
// order. A failing offer is reported in its own result; only a batch where
// every offer failed is an error, and only under PolicyError.
func (e *Engine) CalculateAllOffers(ctx context.Context, in Input) ([]OfferResult, error) {
	const operation = "calc.CalculateAllOffers"

	results := make([]OfferResult, len(in.Offers))
	errs := make([]error, len(in.Offers))

	baseType, _ := model.BasePriceType(in.PriceTypes)
	run := &stageRun{ix: in.Index, baseTypeID: baseType.ID, log: e.log}
	if in.Forest == nil {
		in.Forest = tree.Empty()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range in.Offers {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = e.calculateOffer(run, &in, &in.Offers[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	var firstErr error
	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		if firstErr == nil {
			firstErr = fmt.Errorf("offer %d: %w", in.Offers[i].ID, err)
		}
	}
	if len(in.Offers) > 0 && failed == len(in.Offers) {
		e.log.Warn("All offers failed", zap.Int("offers", failed), zap.Error(firstErr))
		if e.policy == PolicyError {
			return nil, fmt.Errorf("%s: %w: %w", operation, ErrAllOffersFailed, firstErr)
		}
	}
	return results, nil
}

func (e *Engine) calculateOffer(run *stageRun, in *Input, offer *model.Offer) (res OfferResult, err error) {
	res = OfferResult{
		OfferID:   offer.ID,
		OfferName: offer.Name,
		Currency:  offerCurrency(offer, in.Product),
		Prices:    []OfferPrice{},
		Stages:    []StageResult{},
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			res = failedOffer(res, err)
			e.log.Warn("Failed to calculate offer", zap.Int("offer", offer.ID), zap.Error(err))
		}
	}()

	qty := offerQuantity(offer)
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty < 0 {
		return res, fmt.Errorf("invalid quantity %v", qty)
	}
	res.Quantity = qty

	w := &walker{
		run:     run,
		forest:  in.Forest,
		offer:   offer,
		product: in.Product,
		qty:     qty,
		res:     &res,
	}
	for _, id := range in.Forest.Roots() {
		w.walk(id)
	}

	if !finite(w.total.PurchasingPrice) || !finite(w.total.BasePrice) {
		return res, fmt.Errorf("non-finite totals: purchasing %v, base %v", w.total.PurchasingPrice, w.total.BasePrice)
	}
	res.PurchasingPrice = w.total.PurchasingPrice
	res.BasePrice = w.total.BasePrice
	res.UnitPurchasingPrice = w.total.PurchasingPrice / qty
	res.UnitBasePrice = w.total.BasePrice / qty

	if in.Preset != nil {
		for _, pt := range in.PriceTypes {
			tier, err := pricing.Select(in.Preset.Prices, pt.ID, qty)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("price type %s (%d): %v", pt.Name, pt.ID, err))
				continue
			}
			currency := tier.Currency
			if currency == pricing.CurrencyPercent || currency == "" {
				currency = res.Currency
			}
			res.Prices = append(res.Prices, OfferPrice{
				TypeID:   pt.ID,
				TypeName: pt.Name,
				Price:    pricing.Price(tier, res.BasePrice),
				Currency: currency,
			})
		}
	}
	return res, nil
}

// walker accumulates one offer over the forest.
type walker struct {
	run     *stageRun
	forest  *tree.Forest
	offer   *model.Offer
	product *model.Product
	qty     float64
	res     *OfferResult
	total   Amounts
}

// walk evaluates a node. Bindings evaluate their children first.
func (w *walker) walk(id string) {
	if b, ok := w.forest.Binding(id); ok {
		for _, child := range b.ChildrenOrder {
			w.walk(child)
		}
		w.stages(Node{
			ID:     b.ID,
			Name:   b.Name,
			Fields: model.Dimensions{Width: b.Width, Height: b.Height, Length: b.Length, Weight: b.Weight},
			Stages: b.Stages,
		})
		return
	}
	if d, ok := w.forest.Detail(id); ok {
		w.stages(Node{
			ID:     d.ID,
			Name:   d.Name,
			Fields: model.Dimensions{Width: d.Width, Height: d.Height, Length: d.Length, Weight: d.Weight},
			Stages: d.Stages,
		})
	}
}

func (w *walker) stages(n Node) {
	ctx := &Context{
		Offer:    w.offer,
		Product:  w.product,
		Quantity: w.qty,
		Node:     n,
	}
	for _, st := range n.Stages {
		sr, warning := w.run.evalStage(st, ctx)
		w.total = w.total.Add(sr.Delta)
		sr.Totals = w.total
		ctx.Totals = ctx.Totals.Add(sr.Delta)
		ctx.Prior = append(ctx.Prior, sr)
		w.res.Stages = append(w.res.Stages, sr)
		if warning != "" {
			w.res.Warnings = append(w.res.Warnings, warning)
		}
	}
}

func failedOffer(res OfferResult, err error) OfferResult {
	return OfferResult{
		OfferID:   res.OfferID,
		OfferName: res.OfferName,
		Quantity:  res.Quantity,
		Currency:  res.Currency,
		Prices:    []OfferPrice{},
		Stages:    []StageResult{},
		Error:     err.Error(),
	}
}

func offerCurrency(o *model.Offer, p *model.Product) string {
	if o.PurchasingCurrency != "" {
		return o.PurchasingCurrency
	}
	if p != nil && p.PurchasingCurrency != "" {
		return p.PurchasingCurrency
	}
	return DefaultCurrency
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
