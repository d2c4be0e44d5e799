package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []any{"부서", "사업 ID", "사업명", "계획", "조정 계획", "실적", "추정", "잔여", "집행률(%)"}

// WriteXLSX renders rows as a single-sheet workbook with a totals line.
func WriteXLSX(w io.Writer, year int, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := fmt.Sprintf("%d 예실대비", year)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return err
	}

	amount, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return err
	}

	var total Row
	for i, r := range rows {
		line := []any{
			r.DeptCode, r.ProjID, r.ProjName,
			r.PlanAmt.IntPart(), r.AdjustedPlanAmt.IntPart(), r.ActualAmt.IntPart(),
			r.EstAmt.IntPart(), r.DiffAmt.IntPart(), r.BurnRate,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return err
		}
		total.PlanAmt = total.PlanAmt.Add(r.PlanAmt)
		total.AdjustedPlanAmt = total.AdjustedPlanAmt.Add(r.AdjustedPlanAmt)
		total.ActualAmt = total.ActualAmt.Add(r.ActualAmt)
		total.EstAmt = total.EstAmt.Add(r.EstAmt)
	}

	last := len(rows) + 2
	totalLine := []any{
		"합계", "", "",
		total.PlanAmt.IntPart(), total.AdjustedPlanAmt.IntPart(), total.ActualAmt.IntPart(),
		total.EstAmt.IntPart(), total.PlanAmt.Sub(total.ActualAmt).IntPart(),
		BurnRate(total.ActualAmt, total.PlanAmt),
	}
	cell, _ := excelize.CoordinatesToCellName(1, last)
	if err := f.SetSheetRow(sheet, cell, &totalLine); err != nil {
		return err
	}
	end, _ := excelize.CoordinatesToCellName(8, last)
	if err := f.SetCellStyle(sheet, "D2", end, amount); err != nil {
		return err
	}

	return f.Write(w)
}
