package services

import (
	"bytes"
	"fmt"
	"strings"

	"activity-storefront/internal/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
)

// ReceiptService renders order receipts as PDF
type ReceiptService struct {
	businessName string
	publicURL    string
}

// NewReceiptService creates a new receipt service. publicURL is the storefront
// base used in the receipt's QR code.
func NewReceiptService(businessName, publicURL string) *ReceiptService {
	return &ReceiptService{
		businessName: businessName,
		publicURL:    strings.TrimSuffix(publicURL, "/"),
	}
}

// GenerateReceipt renders a single-page A4 receipt for order
func (s *ReceiptService) GenerateReceipt(order *models.Order, bookings []*models.Booking) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// --- Header ---
	pdf.SetFont("Helvetica", "B", 20)
	pdf.Cell(0, 12, tr(strings.ToUpper(s.businessName)+" TAX RECEIPT"))
	pdf.Ln(14)

	pdf.SetDrawColor(220, 220, 220)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(6)

	// --- Order summary + QR ---
	yStart := pdf.GetY()
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(15, yStart, 130, 40, "F")

	pdf.SetXY(20, yStart+5)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 7, "ORDER SUMMARY")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetX(20)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Order: %s", order.OrderNumber)))
	pdf.Ln(6)
	pdf.SetX(20)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Date: %s", order.CreatedAt.Format("2 Jan 2006"))))
	pdf.Ln(6)
	pdf.SetX(20)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Customer: %s <%s>", order.CustomerName, order.CustomerEmail)))
	pdf.Ln(6)
	pdf.SetX(20)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Status: %s", order.GetStatusDisplayName())))

	if s.publicURL != "" && order.ID != "" {
		qrBytes, err := qrcode.Encode(fmt.Sprintf("%s/orders/%s", s.publicURL, order.ID), qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("failed to encode receipt QR code: %w", err)
		}
		pdf.RegisterImageOptionsReader("qr", gofpdf.ImageOptions{ImageType: "png"}, bytes.NewReader(qrBytes))
		pdf.ImageOptions("qr", 152, yStart, 40, 0, false, gofpdf.ImageOptions{ImageType: "png"}, 0, "")
	}

	pdf.SetY(yStart + 48)

	// --- Items ---
	drawReceiptSection(pdf, "ITEMS")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(80, 7, "Program", "B", 0, "L", false, 0, "")
	pdf.CellFormat(50, 7, "Schedule", "B", 0, "L", false, 0, "")
	pdf.CellFormat(15, 7, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range order.Items {
		schedule := strings.Join(item.SelectedDates, ", ")
		if item.TimeSlot != "" {
			schedule = strings.TrimSpace(schedule + " " + item.TimeSlot)
		}
		pdf.CellFormat(80, 7, tr(truncate(item.ProductName, 45)), "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, tr(truncate(schedule, 28)), "", 0, "L", false, 0, "")
		pdf.CellFormat(15, 7, fmt.Sprintf("%d", item.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, "$"+item.TotalPrice.StringFixed(2), "", 1, "R", false, 0, "")

		for _, a := range item.AddOns {
			pdf.CellFormat(130, 6, tr(fmt.Sprintf("   + %s x%d", a.AddOn.Name, a.Quantity)), "", 0, "L", false, 0, "")
			pdf.CellFormat(50, 6, "$"+a.AddOn.Price.Mul(decimal.NewFromInt(int64(a.Quantity))).StringFixed(2), "", 1, "R", false, 0, "")
		}
	}
	pdf.Ln(4)

	// --- Totals ---
	pdf.SetFont("Helvetica", "", 11)
	for _, row := range [][2]string{
		{"Subtotal", "$" + order.Subtotal.StringFixed(2)},
		{"GST (10%)", "$" + order.Tax.StringFixed(2)},
	} {
		pdf.CellFormat(145, 7, row[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, row[1], "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(145, 8, "Total "+strings.ToUpper(order.Currency), "T", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, "$"+order.Total.StringFixed(2), "T", 1, "R", false, 0, "")
	pdf.Ln(6)

	// --- Participants ---
	if len(bookings) > 0 {
		drawReceiptSection(pdf, "BOOKINGS")
		pdf.SetFont("Helvetica", "", 10)
		for i, b := range bookings {
			name := b.StudentID
			if b.Student != nil {
				name = b.Student.FullName()
			}
			line := fmt.Sprintf("%d. %s - %s to %s (%s)", i+1, name,
				b.StartDateTime.Format("Mon 2 Jan 15:04"), b.EndDateTime.Format("15:04"), b.Status)
			pdf.Cell(0, 6, tr(line))
			pdf.Ln(6)
		}
	}

	// --- Footer ---
	pdf.SetY(-25)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 8, tr("Prices include GST where applicable. Keep this receipt for your records."), "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// drawReceiptSection adds consistent section headers
func drawReceiptSection(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(0, 8, title, "", 1, "L", true, 0, "")
	pdf.Ln(2)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "..."
}
