package pdf

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"

	"github.com/signintech/gopdf"

	"tickethub/internal/models"
)

type TicketGenerator struct {
	FontPath string
}

func NewTicketGenerator(fontPath string) *TicketGenerator {
	if fontPath == "" {
		fontPath = "./fonts/DejaVuSans.ttf"
	}
	return &TicketGenerator{FontPath: fontPath}
}

func (g *TicketGenerator) Generate(ticket models.TicketDetails, qrCode []byte) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFont("dejavu", g.FontPath); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	if err := pdf.SetFont("dejavu", "", 14); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}

	addHeader(pdf)

	pdf.SetY(60)
	addTicketInfo(pdf, ticket)

	if len(qrCode) > 0 {
		pdf.SetY(pdf.GetY() + 20)
		addQRCode(pdf, qrCode)
	}

	pdf.SetY(260)
	addFooter(pdf)

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}

	return buf.Bytes(), nil
}

func addHeader(pdf *gopdf.GoPdf) {
	pdf.SetX(40)
	pdf.SetY(30)
	pdf.Cell(nil, "EVENT TICKET")
}

func addTicketInfo(pdf *gopdf.GoPdf, ticket models.TicketDetails) {
	info := []struct {
		Label string
		Value string
	}{
		{"Ticket ID", ticket.ID},
		{"Event", ticket.EventName},
		{"Location", ticket.EventLocation},
		{"Date", ticket.EventDate.Format("2006-01-02 15:04")},
		{"Ticket Type", ticket.TicketTypeName},
		{"Status", strings.Title(string(ticket.Status))},
		{"Purchased", ticket.PurchasedAt.Format("2006-01-02 15:04")},
	}

	for _, item := range info {
		if item.Value == "" {
			continue
		}
		pdf.Cell(nil, item.Label+": "+item.Value)
		pdf.Br(20)
	}
}

func addQRCode(pdf *gopdf.GoPdf, qrCode []byte) {
	img, err := png.Decode(bytes.NewReader(qrCode))
	if err != nil {
		pdf.Cell(nil, "Failed to load QR code")
		return
	}

	rect := &gopdf.Rect{W: 100, H: 100}
	if err := pdf.ImageFrom(img, 100, pdf.GetY(), rect); err != nil {
		pdf.Cell(nil, "Failed to draw QR code")
	}
}

func addFooter(pdf *gopdf.GoPdf) {
	pdf.SetX(50)
	pdf.Cell(nil, "Present this ticket at the entrance. Each ticket admits one person.")
}
