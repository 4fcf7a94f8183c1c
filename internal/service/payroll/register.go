package payroll

import (
	"fmt"
	"io"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/jung-kurt/gofpdf"
)

var registerColumns = []struct {
	title string
	width float64
	align string
}{
	{"Code", 25, "L"},
	{"Employee", 60, "L"},
	{"Paid", 15, "R"},
	{"LOP", 15, "R"},
	{"Per Day", 30, "R"},
	{"Gross", 35, "R"},
	{"Deductions", 35, "R"},
	{"Net", 35, "R"},
}

// renderRegister writes the payroll register of a run as a landscape A4 PDF.
func renderRegister(w io.Writer, run payroll.PayrollRun) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(run.Subject, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Payroll Register")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Subject: %s", run.Subject))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Pay period: %s", run.Period.Label()))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Salary date: %s", run.Period.SalaryDate.Format("2006-01-02")))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Status: %s", run.Status))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range registerColumns {
		pdf.CellFormat(col.width, 8, col.title, "1", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range run.Lines {
		cells := []string{
			line.EmployeeCode,
			line.EmployeeName,
			fmt.Sprintf("%d", line.PaidDays),
			fmt.Sprintf("%d", line.LOPDays),
			line.PerDaySalary.StringFixed(2),
			line.GrossPay.StringFixed(2),
			line.TotalDeductions.StringFixed(2),
			line.NetPay.StringFixed(2),
		}
		for i, col := range registerColumns {
			pdf.CellFormat(col.width, 7, cells[i], "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 10)
	label := registerColumns[0].width + registerColumns[1].width + registerColumns[2].width +
		registerColumns[3].width + registerColumns[4].width
	pdf.CellFormat(label, 8, fmt.Sprintf("Total (%d employees)", run.EmployeeCount()), "1", 0, "L", true, 0, "")
	pdf.CellFormat(registerColumns[5].width, 8, run.TotalGross.StringFixed(2), "1", 0, "R", true, 0, "")
	pdf.CellFormat(registerColumns[6].width, 8, run.TotalDeductions.StringFixed(2), "1", 0, "R", true, 0, "")
	pdf.CellFormat(registerColumns[7].width, 8, run.TotalNet.StringFixed(2), "1", 0, "R", true, 0, "")
	pdf.Ln(-1)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render payroll register: %w", err)
	}
	return nil
}
