package dashboard

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/signintech/gopdf"
)

// BuyersCSV renders the buyers listing as a CSV document.
func (s *Service) BuyersCSV(ctx context.Context, eventID string, filter BuyerFilter) ([]byte, error) {
	rows, err := s.Buyers(ctx, eventID, filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Ticket ID", "Name", "Email", "Ticket Type", "Status", "Amount", "Discount", "Purchased At"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{
			row.TicketID,
			row.Name,
			row.Email,
			row.TicketTypeName,
			string(row.Status),
			strconv.FormatInt(row.Amount, 10),
			strconv.FormatInt(row.DiscountAmount, 10),
			row.PurchasedAt.Format("2006-01-02 15:04"),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuyersPDF renders the buyers listing as a printable PDF.
func (s *Service) BuyersPDF(ctx context.Context, eventID string, filter BuyerFilter, fontPath string) ([]byte, error) {
	rows, err := s.Buyers(ctx, eventID, filter)
	if err != nil {
		return nil, err
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if fontPath == "" {
		fontPath = "./fonts/DejaVuSans.ttf"
	}
	if err := pdf.AddTTFFont("dejavu", fontPath); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	if err := pdf.SetFont("dejavu", "", 12); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}

	pdf.SetX(40)
	pdf.SetY(30)
	pdf.Cell(nil, fmt.Sprintf("Attendees - event %s (%d tickets)", eventID, len(rows)))

	y := 60.0
	for _, row := range rows {
		if y > 800 {
			pdf.AddPage()
			y = 40
		}
		pdf.SetX(40)
		pdf.SetY(y)
		pdf.Cell(nil, fmt.Sprintf("%s | %s | %s | %s", row.Name, row.Email, row.TicketTypeName, row.Status))
		y += 18
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}
