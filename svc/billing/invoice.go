package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// InvoiceStatus is the settlement state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft    InvoiceStatus = "DRAFT"
	InvoicePending  InvoiceStatus = "PENDING"
	InvoicePaid     InvoiceStatus = "PAID"
	InvoiceFailed   InvoiceStatus = "FAILED"
	InvoiceRefunded InvoiceStatus = "REFUNDED"
	InvoiceVoid     InvoiceStatus = "VOID"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoicePending, InvoicePaid, InvoiceFailed, InvoiceRefunded, InvoiceVoid:
		return true
	}
	return false
}

// Display returns the Spanish label shown on the billing page.
func (s InvoiceStatus) Display() string {
	switch s {
	case InvoicePaid:
		return "Pagado"
	case InvoicePending:
		return "Pendiente"
	case InvoiceFailed:
		return "Fallido"
	case InvoiceRefunded:
		return "Reembolsado"
	case InvoiceVoid:
		return "Anulado"
	case InvoiceDraft:
		return "Borrador"
	default:
		return string(s)
	}
}

// Invoice records one payment or payment attempt.
type Invoice struct {
	ID                uuid.UUID       `json:"id"`
	SubscriptionID    uuid.UUID       `json:"subscription_id"`
	Number            string          `json:"number"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            InvoiceStatus   `json:"status"`
	PeriodStart       *time.Time      `json:"period_start,omitempty"`
	PeriodEnd         *time.Time      `json:"period_end,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	ProviderPaymentID string          `json:"provider_payment_id,omitempty"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Validate checks the fields the stores rely on.
func (i Invoice) Validate() error {
	switch {
	case i.ID == uuid.Nil || i.SubscriptionID == uuid.Nil:
		return fmt.Errorf("%w: ids are required", ErrInvalidInvoice)
	case i.Number == "":
		return fmt.Errorf("%w: number is required", ErrInvalidInvoice)
	case !i.Status.Valid():
		return fmt.Errorf("%w: status %q", ErrInvalidInvoice, i.Status)
	case i.Amount.IsNegative():
		return fmt.Errorf("%w: negative amount", ErrInvalidInvoice)
	}
	if _, err := currency.ParseISO(i.Currency); err != nil {
		return fmt.Errorf("%w: currency %q", ErrInvalidInvoice, i.Currency)
	}
	return nil
}

// InvoiceNumber derives a human readable number from the invoice id and
// the month it was issued in, e.g. INV-202603-0195F3A2.
func InvoiceNumber(id uuid.UUID, at time.Time) string {
	hex := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return fmt.Sprintf("INV-%s-%s", at.UTC().Format("200601"), hex[len(hex)-8:])
}

// FormatAmount renders amount with the currency code and locale grouping.
// COP amounts use Colombian Spanish, everything else US English.
func FormatAmount(amount decimal.Decimal, code string) string {
	tag := language.AmericanEnglish
	if strings.EqualFold(code, "COP") {
		tag = language.MustParse("es-CO")
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return amount.StringFixed(2) + " " + code
	}
	p := message.NewPrinter(tag)
	return unit.String() + " " + p.Sprint(number.Decimal(amount.InexactFloat64(), number.Scale(2)))
}
