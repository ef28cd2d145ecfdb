package export

import (
	"fmt"

	"loan-manager/internal/core"

	"github.com/xuri/excelize/v2"
)

// ScheduleColumn renders one column of the amortization sheet.
type ScheduleColumn struct {
	Header string
	Value  func(core.Repayment) any
}

var scheduleColumns = map[string]ScheduleColumn{
	"sequence":          {Header: "No.", Value: func(r core.Repayment) any { return r.Sequence }},
	"due_date":          {Header: "Due Date", Value: func(r core.Repayment) any { return r.DueDate.Format("2006-01-02") }},
	"principal":         {Header: "Principal", Value: func(r core.Repayment) any { return r.Principal.InexactFloat64() }},
	"interest":          {Header: "Interest", Value: func(r core.Repayment) any { return r.Interest.InexactFloat64() }},
	"total":             {Header: "Total Payment", Value: func(r core.Repayment) any { return r.TotalPayment().InexactFloat64() }},
	"remaining_balance": {Header: "Remaining Balance", Value: func(r core.Repayment) any { return r.RemainingBalance.InexactFloat64() }},
	"status":            {Header: "Status", Value: func(r core.Repayment) any { return string(r.Status) }},
	"entry_id": {Header: "Entry", Value: func(r core.Repayment) any {
		if r.EntryID == nil {
			return ""
		}
		return *r.EntryID
	}},
}

// DefaultScheduleColumns is the column order used when none is requested.
var DefaultScheduleColumns = []string{"sequence", "due_date", "principal", "interest", "total", "remaining_balance", "status"}

const (
	scheduleSheet = "Schedule"
	summarySheet  = "Loan"
)

// BuildScheduleWorkbook renders the loan's amortization schedule, one row per
// installment after the header, plus a summary sheet of the loan header.
func BuildScheduleWorkbook(loan *core.Loan, selected []string) ([]byte, error) {
	if len(selected) == 0 {
		selected = DefaultScheduleColumns
	}
	var cols []ScheduleColumn
	for _, key := range selected {
		col, ok := scheduleColumns[key]
		if !ok {
			return nil, core.NewValidationError("columns", "unknown schedule column %q", key)
		}
		cols = append(cols, col)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), scheduleSheet); err != nil {
		return nil, fmt.Errorf("failed to name schedule sheet: %w", err)
	}
	_ = f.SetDocProps(&excelize.DocProperties{Title: "Amortization schedule " + loan.Reference})

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(scheduleSheet, cell, col.Header)
		_ = f.SetCellStyle(scheduleSheet, cell, cell, bold)
	}
	for rowIdx, r := range loan.Repayments {
		for colIdx, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			_ = f.SetCellValue(scheduleSheet, cell, col.Value(r))
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summary := [][2]any{
		{"Reference", loan.Reference},
		{"Borrower", loan.BorrowerName},
		{"Loan Type", loan.LoanTypeName},
		{"Status", string(loan.Status)},
		{"Amount", loan.Amount.InexactFloat64()},
		{"Tenure", loan.Tenure},
		{"Interest Rate %", loan.InterestRatePercent.InexactFloat64()},
		{"Amortization", loan.AmortizationMethod.String()},
		{"Disburse Amount", loan.DisburseAmount.InexactFloat64()},
		{"Amount Paid", loan.AmountPaid().InexactFloat64()},
		{"Amount Pending", loan.AmountPending().InexactFloat64()},
	}
	for i, row := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), row[1])
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
