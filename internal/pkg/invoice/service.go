// internal/pkg/invoice/service.go
package invoice

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/order"
)

// Service renders PDF invoices from order snapshots. Invoices read the frozen
// order data only; they never touch live catalog state.
type Service struct {
	config *config.Config
	tmpl   *template.Template
}

// NewService creates a new invoice service
func NewService(cfg *config.Config) *Service {
	tmpl := template.Must(template.New("invoice").
		Funcs(template.FuncMap{"rupees": formatRupees}).
		Parse(invoiceTemplate))
	return &Service{
		config: cfg,
		tmpl:   tmpl,
	}
}

func formatRupees(paise int64) string {
	return fmt.Sprintf("₹%.2f", float64(paise)/100)
}

// InvoiceData represents the data passed to the invoice template
type InvoiceData struct {
	InvoiceNumber string
	InvoiceDate   string
	Order         *order.Order
	Company       CompanyInfo
}

// CompanyInfo represents the issuing company
type CompanyInfo struct {
	Name    string
	Address string
	Phone   string
	Email   string
}

// GenerateInvoice generates a PDF invoice for an order
func (s *Service) GenerateInvoice(ord *order.Order) (*bytes.Buffer, error) {
	data := InvoiceData{
		InvoiceNumber: fmt.Sprintf("INV-%s", ord.OrderNumber),
		InvoiceDate:   time.Now().Format("January 2, 2006"),
		Order:         ord,
		Company: CompanyInfo{
			Name:    s.config.App.CompanyName,
			Address: s.config.App.CompanyAddress,
			Phone:   s.config.App.CompanyPhone,
			Email:   s.config.App.CompanyEmail,
		},
	}

	var html bytes.Buffer
	if err := s.tmpl.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to render invoice template: %w", err)
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF generator: %w", err)
	}
	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(html.Bytes()))
	page.FooterRight.Set("[page]")
	page.FooterFontSize.Set(9)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create PDF: %w", err)
	}
	return bytes.NewBuffer(pdfg.Bytes()), nil
}

const invoiceTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Invoice {{.InvoiceNumber}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; color: #333; }
        .header { margin-bottom: 30px; border-bottom: 2px solid #eee; padding-bottom: 20px; }
        .invoice-title { font-size: 28px; font-weight: bold; color: #2563eb; margin-bottom: 10px; }
        .section-title { font-size: 16px; font-weight: bold; margin-bottom: 10px; color: #374151; }
        .shipping-info { margin-bottom: 30px; }
        .items-table { width: 100%; border-collapse: collapse; margin-bottom: 30px; }
        .items-table th, .items-table td { border: 1px solid #ddd; padding: 12px 8px; text-align: left; }
        .items-table th { background-color: #f8f9fa; font-weight: bold; }
        .items-table .num { text-align: right; width: 90px; }
        .totals { float: right; width: 300px; }
        .totals table { width: 100%; border-collapse: collapse; }
        .totals td { padding: 8px; border-bottom: 1px solid #eee; }
        .totals .label { text-align: right; font-weight: bold; }
        .totals .amount { text-align: right; width: 110px; }
        .total-row { font-size: 18px; font-weight: bold; border-top: 2px solid #333 !important; }
        .footer { margin-top: 50px; padding-top: 20px; border-top: 1px solid #eee;
                  text-align: center; color: #666; font-size: 12px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Company.Name}}</h1>
        <p>{{.Company.Address}}</p>
        <p>Phone: {{.Company.Phone}} &middot; Email: {{.Company.Email}}</p>
        <div class="invoice-title">INVOICE</div>
        <p><strong>Invoice #:</strong> {{.InvoiceNumber}}</p>
        <p><strong>Invoice Date:</strong> {{.InvoiceDate}}</p>
        <p><strong>Order #:</strong> {{.Order.OrderNumber}}</p>
        <p><strong>Order Date:</strong> {{.Order.CreatedAt.Format "January 2, 2006"}}</p>
        <p><strong>Payment:</strong> {{.Order.PaymentMethod}} ({{.Order.PaymentStatus}})</p>
    </div>

    <div class="shipping-info">
        <div class="section-title">Ship To:</div>
        <p><strong>{{.Order.ShippingAddress.Name}}</strong></p>
        <p>{{.Order.ShippingAddress.Address}}</p>
        <p>{{.Order.ShippingAddress.City}}, {{.Order.ShippingAddress.State}} {{.Order.ShippingAddress.Pincode}}</p>
        <p>Phone: {{.Order.ShippingAddress.Phone}}</p>
    </div>

    <table class="items-table">
        <thead>
            <tr>
                <th>Item</th>
                <th class="num">Qty</th>
                <th class="num">Price</th>
                <th class="num">Total</th>
            </tr>
        </thead>
        <tbody>
            {{range .Order.Items}}
            <tr>
                <td><strong>{{.Name}}</strong></td>
                <td class="num">{{.Quantity}}</td>
                <td class="num">{{rupees .Price}}</td>
                <td class="num">{{rupees (.LineTotal)}}</td>
            </tr>
            {{end}}
        </tbody>
    </table>

    <div class="totals">
        <table>
            <tr>
                <td class="label">Subtotal:</td>
                <td class="amount">{{rupees .Order.Subtotal}}</td>
            </tr>
            <tr>
                <td class="label">Shipping:</td>
                <td class="amount">{{rupees .Order.Shipping}}</td>
            </tr>
            {{if gt .Order.Discount 0}}
            <tr>
                <td class="label">Discount{{if .Order.VoucherCode}} ({{.Order.VoucherCode}}){{end}}:</td>
                <td class="amount">-{{rupees .Order.Discount}}</td>
            </tr>
            {{end}}
            <tr class="total-row">
                <td class="label">Total:</td>
                <td class="amount">{{rupees .Order.Total}}</td>
            </tr>
        </table>
    </div>

    <div style="clear: both;"></div>

    <div class="footer">
        <p>Thank you for shopping with us!</p>
        <p>Questions about this invoice? Contact {{.Company.Email}} or {{.Company.Phone}}</p>
    </div>
</body>
</html>
`
