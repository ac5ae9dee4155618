// Package report renders analysis results into spreadsheet workbooks for
// the research team.
package report

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/coinassay/coinassay/internal/model"
)

var projectHeader = []string{
	"Symbol", "Name", "Tier", "Score", "Technical Signals", "Red Flags",
	"Content Status", "Last Analyzed", "Reasoning",
}

// BuildWorkbook assembles a two-sheet workbook: a tier summary and the full
// project list, best tiers first.
func BuildWorkbook(recs []model.ProjectRecord) (*xlsx.File, error) {
	f := xlsx.NewFile()

	if err := addSummarySheet(f, recs); err != nil {
		return nil, err
	}
	if err := addProjectSheet(f, recs); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteFile builds the workbook and saves it to path.
func WriteFile(path string, recs []model.ProjectRecord) error {
	f, err := BuildWorkbook(recs)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save workbook %s", path)
	}
	return nil
}

func addSummarySheet(f *xlsx.File, recs []model.ProjectRecord) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	counts := map[model.Tier]int{}
	unscored := 0
	for _, rec := range recs {
		if rec.Tier == "" {
			unscored++
			continue
		}
		counts[rec.Tier]++
	}

	header := sheet.AddRow()
	header.AddCell().SetString("Tier")
	header.AddCell().SetString("Projects")

	for _, tier := range []model.Tier{model.TierAlpha, model.TierSolid, model.TierBasic, model.TierTrash} {
		row := sheet.AddRow()
		row.AddCell().SetString(string(tier))
		row.AddCell().SetInt(counts[tier])
	}
	row := sheet.AddRow()
	row.AddCell().SetString("(unscored)")
	row.AddCell().SetInt(unscored)
	return nil
}

func addProjectSheet(f *xlsx.File, recs []model.ProjectRecord) error {
	sheet, err := f.AddSheet("Projects")
	if err != nil {
		return eris.Wrap(err, "report: add projects sheet")
	}

	sorted := make([]model.ProjectRecord, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := model.TierRank(sorted[i].Tier), model.TierRank(sorted[j].Tier)
		if ri != rj {
			return ri < rj
		}
		return scoreOf(sorted[i]) > scoreOf(sorted[j])
	})

	header := sheet.AddRow()
	for _, h := range projectHeader {
		header.AddCell().SetString(h)
	}

	for _, rec := range sorted {
		row := sheet.AddRow()
		row.AddCell().SetString(rec.Symbol)
		row.AddCell().SetString(rec.Name)
		row.AddCell().SetString(string(rec.Tier))
		if rec.Score != nil {
			row.AddCell().SetFloatWithFormat(*rec.Score, "0.0")
		} else {
			row.AddCell().SetString("")
		}

		var technical, redFlags int
		if rec.Extraction != nil {
			technical, _ = rec.Extraction.CountSignals(model.CategoryTechnical)
			redFlags, _ = rec.Extraction.CountSignals(model.CategoryRedFlag)
		}
		row.AddCell().SetInt(technical)
		row.AddCell().SetInt(redFlags)

		row.AddCell().SetString(string(rec.ContentStatus))
		if rec.LastAnalyzedAt != nil {
			row.AddCell().SetString(rec.LastAnalyzedAt.UTC().Format(time.RFC3339))
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(rec.Reasoning)
	}
	return nil
}

func scoreOf(rec model.ProjectRecord) float64 {
	if rec.Score == nil {
		return -1
	}
	return *rec.Score
}
