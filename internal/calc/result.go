package calc

import "calc-server/internal/formula"

// Amounts is a purchasing/base price pair.
type Amounts struct {
	PurchasingPrice float64 `json:"purchasingPrice"`
	BasePrice       float64 `json:"basePrice"`
}

func (a Amounts) Add(b Amounts) Amounts {
	return Amounts{
		PurchasingPrice: a.PurchasingPrice + b.PurchasingPrice,
		BasePrice:       a.BasePrice + b.BasePrice,
	}
}

// AddedEntry splits a stage delta into its operation and material parts.
type AddedEntry struct {
	Operation Amounts `json:"operation"`
	Material  Amounts `json:"material"`
}

// InputEntry records a resolved variable a stage formula read.
type InputEntry struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	SourcePath string  `json:"sourcePath,omitempty"`
}

// StageResult is the audit record of one evaluated stage. Totals are the
// offer's running totals after the stage.
type StageResult struct {
	InstanceID        string             `json:"instanceId"`
	StageID           int                `json:"stageId"`
	StageName         string             `json:"stageName"`
	NodeID            string             `json:"nodeId"`
	NodeName          string             `json:"nodeName"`
	OperationQuantity float64            `json:"operationQuantity"`
	MaterialQuantity  float64            `json:"materialQuantity"`
	Logs              []formula.LogEntry `json:"logs"`
	Inputs            []InputEntry       `json:"inputs"`
	Added             AddedEntry         `json:"added"`
	Delta             Amounts            `json:"delta"`
	Totals            Amounts            `json:"totals"`
	Error             string             `json:"error,omitempty"`
}

// OfferPrice is the offer price for one price type.
type OfferPrice struct {
	TypeID   int     `json:"typeId"`
	TypeName string  `json:"typeName"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// OfferResult is the priced breakdown of one offer. A failed offer carries
// Error and zero totals.
type OfferResult struct {
	OfferID             int           `json:"offerId"`
	OfferName           string        `json:"offerName"`
	Quantity            float64       `json:"quantity"`
	PurchasingPrice     float64       `json:"purchasingPrice"`
	BasePrice           float64       `json:"basePrice"`
	UnitPurchasingPrice float64       `json:"unitPurchasingPrice"`
	UnitBasePrice       float64       `json:"unitBasePrice"`
	Currency            string        `json:"currency"`
	Prices              []OfferPrice  `json:"prices"`
	Stages              []StageResult `json:"stages"`
	Warnings            []string      `json:"warnings,omitempty"`
	Error               string        `json:"error,omitempty"`
}

// Failed reports whether the offer could not be calculated.
func (r OfferResult) Failed() bool { return r.Error != "" }
