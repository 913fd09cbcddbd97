package model

// Payload is the initPayload sent by the CMS: a catalog snapshot plus the
// offers to price.
type Payload struct {
	ElementsStore  ElementsStore `json:"elementsStore"`
	SelectedOffers []Offer       `json:"selectedOffers"`
	Product        *Product      `json:"product"`
	Preset         *Preset       `json:"preset"`
	PriceTypes     []PriceType   `json:"priceTypes"`
}

// ElementsStore maps an iblock code (CALC_DETAILS, CALC_STAGES, ...) to its elements.
type ElementsStore map[string][]Element

// Dimensions are the physical fields of an element. Nil means "not set".
type Dimensions struct {
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
	Length *float64 `json:"length"`
	Weight *float64 `json:"weight"`
}

// Get returns the named dimension (width, height, length, weight).
func (d Dimensions) Get(name string) (float64, bool) {
	var v *float64
	switch name {
	case "width":
		v = d.Width
	case "height":
		v = d.Height
	case "length":
		v = d.Length
	case "weight":
		v = d.Weight
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// DimensionNames lists the fields Get understands, in a stable order.
var DimensionNames = []string{"width", "height", "length", "weight"}

// PriceTier is one quantity band of a price list. Bounds are inclusive;
// a nil bound is open on that side.
type PriceTier struct {
	TypeID       int      `json:"typeId"`
	Price        float64  `json:"price"`
	Currency     string   `json:"currency"`
	QuantityFrom *float64 `json:"quantityFrom"`
	QuantityTo   *float64 `json:"quantityTo"`
}

// Element is a catalog element of any iblock.
type Element struct {
	ID                 int                      `json:"id"`
	IBlockID           int                      `json:"iblockId"`
	Code               string                   `json:"code"`
	ProductID          *int                     `json:"productId"`
	Name               string                   `json:"name"`
	Fields             Dimensions               `json:"fields"`
	Measure            string                   `json:"measure"`
	MeasureRatio       *float64                 `json:"measureRatio"`
	PurchasingPrice    *float64                 `json:"purchasingPrice"`
	PurchasingCurrency string                   `json:"purchasingCurrency"`
	Prices             []PriceTier              `json:"prices"`
	Properties         map[string]PropertyValue `json:"properties"`
}

// Measure is a unit of measure ("796" pieces, "999" service).
type Measure struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// PresetProperties lists the catalog element ids a preset is composed of.
type PresetProperties struct {
	CalcStages            []int `json:"CALC_STAGES"`
	CalcSettings          []int `json:"CALC_SETTINGS"`
	CalcMaterials         []int `json:"CALC_MATERIALS"`
	CalcMaterialsVariants []int `json:"CALC_MATERIALS_VARIANTS"`
	CalcOperations        []int `json:"CALC_OPERATIONS"`
	CalcOperationsVariant []int `json:"CALC_OPERATIONS_VARIANTS"`
	CalcEquipment         []int `json:"CALC_EQUIPMENT"`
	CalcDetails           []int `json:"CALC_DETAILS"`
	CalcDetailsVariants   []int `json:"CALC_DETAILS_VARIANTS"`
}

// Preset links a product type to the catalog elements that compose it.
// Prices hold the markup tiers applied to the finished offer per price type.
type Preset struct {
	ID         int              `json:"id"`
	Name       string           `json:"name"`
	Properties PresetProperties `json:"properties"`
	Prices     []PriceTier      `json:"prices"`
	Measure    *Measure         `json:"measure"`
}

// Product is the trade product whose offers are priced.
type Product struct {
	ID                 int                      `json:"id"`
	IBlockID           int                      `json:"iblockId"`
	Code               string                   `json:"code"`
	ProductID          *int                     `json:"productId"`
	Name               string                   `json:"name"`
	Attributes         Dimensions               `json:"attributes"`
	Measure            *Measure                 `json:"measure"`
	MeasureRatio       *float64                 `json:"measureRatio"`
	PurchasingPrice    *float64                 `json:"purchasingPrice"`
	PurchasingCurrency string                   `json:"purchasingCurrency"`
	Prices             []PriceTier              `json:"prices"`
	Properties         map[string]PropertyValue `json:"properties"`
}

// Offer is a selected trade offer. Quantity is the production run size.
type Offer struct {
	Product
	Quantity *float64 `json:"quantity"`
}

// PriceType is a catalog price group. Stage prices are looked up with the
// base type.
type PriceType struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Base bool   `json:"base"`
}

// BasePriceType returns the first type marked base, else the first type.
func BasePriceType(types []PriceType) (PriceType, bool) {
	for _, pt := range types {
		if pt.Base {
			return pt, true
		}
	}
	if len(types) == 0 {
		return PriceType{}, false
	}
	return types[0], true
}

// Float returns a pointer to v. Handy for building nullable fields.
func Float(v float64) *float64 { return &v }
