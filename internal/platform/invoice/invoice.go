// Package invoice renders order invoices as PDF documents.
package invoice

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
)

// Data is everything printed on an invoice.
type Data struct {
	OrderID  int64
	Product  string
	Quantity int
	IssuedAt time.Time
}

// Renderer turns invoice data into a document.
type Renderer interface {
	Render(ctx context.Context, data Data) ([]byte, error)
}

// ContentType is the media type of documents produced by PDFRenderer.
const ContentType = "application/pdf"

// PDFRenderer renders A4 invoices with fpdf.
type PDFRenderer struct {
	// Title is printed as the document header.
	Title string
}

// NewPDFRenderer creates a renderer with the default header.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{Title: "INVOICE"}
}

// Render implements Renderer.
func (r *PDFRenderer) Render(ctx context.Context, data Data) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	issued := data.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Invoice %d", data.OrderID), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, r.Title, "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Order ID: #%d", data.OrderID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, "Date: "+issued.Format("2006-01-02 15:04:05"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	y := pdf.GetY()
	pdf.Line(10, y, 200, y)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, "Order Details:", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(120, 8, "Product", "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, "Quantity", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(120, 8, data.Product, "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, strconv.Itoa(data.Quantity), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice for order %d: %w", data.OrderID, err)
	}
	return buf.Bytes(), nil
}
