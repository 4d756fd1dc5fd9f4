// Package export writes leads to spreadsheet files for the sales team.
package export

import (
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/prospect-cli/internal/model"
)

// SheetName is the name of the single sheet written.
const SheetName = "Leads"

// Header is the first row of the exported sheet.
var Header = []string{
	"ID", "Name", "Classification", "Score", "AI Final Score", "AI Classification",
	"Opportunity", "Marketing", "Phone", "WhatsApp", "Website", "Instagram",
	"Address", "City", "Region", "Category", "Niche", "Diagnostic Score",
	"Temperature", "Status", "Created",
}

// SaveXLSX writes leads to a new XLSX file at path.
func SaveXLSX(path string, leads []model.Lead) error {
	f, err := build(leads)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

// WriteXLSX writes leads as an XLSX document to w.
func WriteXLSX(w io.Writer, leads []model.Lead) error {
	f, err := build(leads)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write")
	}
	return nil
}

func build(leads []model.Lead) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add sheet")
	}
	addRow(sheet, Header)
	for i := range leads {
		addRow(sheet, leadRow(&leads[i]))
	}
	return f, nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// leadRow flattens a lead into the Header column order. Unset enrichment
// fields are left blank.
func leadRow(l *model.Lead) []string {
	var finalScore, aiClass, opportunity string
	if l.AI != nil {
		finalScore = strconv.Itoa(l.AI.FinalScore)
		aiClass = l.AI.Classification
		opportunity = string(l.AI.Opportunity)
	}
	var nicheKey, diagScore, temperature string
	if l.Diagnostic != nil {
		nicheKey = l.Diagnostic.Niche
		diagScore = strconv.Itoa(l.Diagnostic.Score)
		temperature = string(l.Diagnostic.Temperature)
	}
	var created string
	if !l.CreatedAt.IsZero() {
		created = l.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		l.ID, l.Name, string(l.Classification), strconv.Itoa(l.Score), finalScore, aiClass,
		opportunity, string(l.Marketing), l.Phone, l.WhatsApp, l.Website, l.Instagram,
		l.Address, l.City, l.Region, l.Category, nicheKey, diagScore,
		temperature, string(l.Status), created,
	}
}
