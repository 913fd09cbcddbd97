package export

import (
	"bytes"
	"calc-server/internal/calc"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	SheetOffers = "Offers"
	SheetStages = "Stages"

	// ContentType is the MIME type of the workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var offerHeaders = []string{
	"Offer ID", "Offer", "Quantity", "Purchasing Price", "Base Price",
	"Unit Purchasing Price", "Unit Base Price", "Currency", "Prices",
	"Warnings", "Error",
}

var stageHeaders = []string{
	"Offer ID", "Node ID", "Node", "Stage ID", "Stage",
	"Operation Quantity", "Material Quantity",
	"Operation Purchasing", "Operation Base", "Material Purchasing", "Material Base",
	"Delta Purchasing", "Delta Base", "Total Purchasing", "Total Base", "Error",
}

// WriteOffers renders results as a workbook with one row per offer on the
// Offers sheet and one row per evaluated stage on the Stages sheet.
func WriteOffers(w io.Writer, results []calc.OfferResult) error {
	const operation = "export.WriteOffers"

	f := excelize.NewFile()
	defer f.Close()

	// Sheet1 из шаблона переименовываем в Offers
	if err := f.SetSheetName("Sheet1", SheetOffers); err != nil {
		return fmt.Errorf("%s: failed to rename sheet: %w", operation, err)
	}
	if _, err := f.NewSheet(SheetStages); err != nil {
		return fmt.Errorf("%s: failed to create sheet: %w", operation, err)
	}

	if err := writeRow(f, SheetOffers, 1, toRow(offerHeaders)); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if err := writeRow(f, SheetStages, 1, toRow(stageHeaders)); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}

	stageRow := 2
	for i, r := range results {
		data := []interface{}{
			r.OfferID,
			r.OfferName,
			r.Quantity,
			r.PurchasingPrice,
			r.BasePrice,
			r.UnitPurchasingPrice,
			r.UnitBasePrice,
			r.Currency,
			formatPrices(r.Prices),
			joinLines(r.Warnings),
			r.Error,
		}
		if err := writeRow(f, SheetOffers, i+2, data); err != nil {
			return fmt.Errorf("%s: %w", operation, err)
		}

		for _, st := range r.Stages {
			data := []interface{}{
				r.OfferID,
				st.NodeID,
				st.NodeName,
				st.StageID,
				st.StageName,
				st.OperationQuantity,
				st.MaterialQuantity,
				st.Added.Operation.PurchasingPrice,
				st.Added.Operation.BasePrice,
				st.Added.Material.PurchasingPrice,
				st.Added.Material.BasePrice,
				st.Delta.PurchasingPrice,
				st.Delta.BasePrice,
				st.Totals.PurchasingPrice,
				st.Totals.BasePrice,
				st.Error,
			}
			if err := writeRow(f, SheetStages, stageRow, data); err != nil {
				return fmt.Errorf("%s: %w", operation, err)
			}
			stageRow++
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("%s: failed to create style: %w", operation, err)
	}
	lastOffer, _ := excelize.CoordinatesToCellName(len(offerHeaders), 1)
	lastStage, _ := excelize.CoordinatesToCellName(len(stageHeaders), 1)
	_ = f.SetCellStyle(SheetOffers, "A1", lastOffer, style)
	_ = f.SetCellStyle(SheetStages, "A1", lastStage, style)

	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("%s: failed to write workbook: %w", operation, err)
	}
	return nil
}

// Bytes is WriteOffers into memory.
func Bytes(results []calc.OfferResult) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteOffers(&buf, results); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func toRow(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func formatPrices(prices []calc.OfferPrice) string {
	var b bytes.Buffer
	for i, p := range prices {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %.2f %s", p.TypeName, p.Price, p.Currency)
	}
	return b.String()
}

func joinLines(lines []string) string {
	var b bytes.Buffer
	for i, l := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(l)
	}
	return b.String()
}
