package records

import (
	"fmt"
	"strconv"
	"strings"
)

var amountNoise = strings.NewReplacer(",", "", "원", "", "₩", "", " ", "", "\u00a0", "")

// ParseAmount parses a portal amount such as "10,000원". Anything that is not
// an integer after stripping separators and currency markers parses as 0.
func ParseAmount(s string) int64 {
	cleaned := amountNoise.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0
	}
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Mismatch reports an invoice whose supply and VAT do not add up to its
// total. It is advisory; processing continues.
type Mismatch struct {
	InvoiceNumber string `json:"invoice_number"`
	Supply        int64  `json:"supply"`
	VAT           int64  `json:"vat"`
	Total         int64  `json:"total"`
}

func (m *Mismatch) String() string {
	return fmt.Sprintf("amount mismatch on %s: %d + %d != %d", m.InvoiceNumber, m.Supply, m.VAT, m.Total)
}

// Reconcile checks supply + VAT against the total. Invoices without a
// positive total are not checked.
func (t *TaxInvoice) Reconcile() *Mismatch {
	supply := ParseAmount(t.SupplyAmount)
	vat := ParseAmount(t.VATAmount)
	total := ParseAmount(t.TotalAmount)
	if total <= 0 || supply+vat == total {
		return nil
	}
	return &Mismatch{InvoiceNumber: t.InvoiceNumber, Supply: supply, VAT: vat, Total: total}
}
