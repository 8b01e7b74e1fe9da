// Package records extracts business items from portal table rows.
package records

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/v0xg/playbot/internal/browser"
	"github.com/v0xg/playbot/internal/selector"
)

// Kind names an automation and its record schema
type Kind string

const (
	Card     Kind = "card"
	Tax      Kind = "tax"
	Transfer Kind = "transfer"
)

// Record is one extracted item pending processing. Records live for a single
// run and are consumed once.
type Record interface {
	Kind() Kind
	Key() string   // portal identifier (approval, invoice or execution number)
	Label() string // counterparty shown in item logs
	Row() browser.Element
	Processed() bool
	MarkProcessed()
}

// Base carries the source row and processing state shared by every kind.
type Base struct {
	row       browser.Element
	processed bool
}

func (b *Base) Row() browser.Element { return b.row }
func (b *Base) Processed() bool      { return b.processed }
func (b *Base) MarkProcessed()       { b.processed = true }

func (b *Base) attach(row browser.Element) { b.row = row }

// CardUsage is a subsidy-card charge not yet registered as an expense.
type CardUsage struct {
	Base
	TransactionDate string `json:"transaction_date"`
	ApprovalNumber  string `json:"approval_number"`
	Amount          string `json:"amount"`
	MerchantName    string `json:"merchant_name"`
	BusinessType    string `json:"business_type"`
}

func (c *CardUsage) Kind() Kind    { return Card }
func (c *CardUsage) Key() string   { return c.ApprovalNumber }
func (c *CardUsage) Label() string { return c.MerchantName }

// TaxInvoice is an electronic tax invoice awaiting registration.
type TaxInvoice struct {
	Base
	IssueDate      string `json:"issue_date"`
	InvoiceNumber  string `json:"invoice_number"`
	VendorName     string `json:"vendor_name"`
	BusinessNumber string `json:"business_number"`
	SupplyAmount   string `json:"supply_amount"`
	VATAmount      string `json:"vat_amount"`
	TotalAmount    string `json:"total_amount,omitempty"`
}

func (t *TaxInvoice) Kind() Kind    { return Tax }
func (t *TaxInvoice) Key() string   { return t.InvoiceNumber }
func (t *TaxInvoice) Label() string { return t.VendorName }

// TransferRecord is an approved execution waiting for a bank transfer.
type TransferRecord struct {
	Base
	ExecutionNumber string `json:"execution_number"`
	VendorName      string `json:"vendor_name"`
	BankName        string `json:"bank_name"`
	AccountNumber   string `json:"account_number"`
	Amount          string `json:"amount"`
	BudgetItem      string `json:"budget_item"`
	RequestDate     string `json:"request_date"`
}

func (t *TransferRecord) Kind() Kind    { return Transfer }
func (t *TransferRecord) Key() string   { return t.ExecutionNumber }
func (t *TransferRecord) Label() string { return t.VendorName }

// Schema describes how rows of one kind are located, filtered and mapped.
type Schema struct {
	Kind  Kind
	Rows  selector.Spec
	Arity int // minimum cell count for a row to yield a record

	used  func(row *goquery.Selection) bool
	build func(cells []string) Record
}

// CardSchema reads the subsidy-card usage list.
var CardSchema = Schema{
	Kind:  Card,
	Rows:  selector.New("tr.card-usage-row", ".card-usage-item", "table.card-usage tbody tr"),
	Arity: 5,
	used: func(row *goquery.Selection) bool {
		text := cellText(row.Find(".used-status, td:last-child").First())
		if strings.Contains(text, "미사용") {
			return false
		}
		return strings.Contains(text, "Y") || strings.Contains(text, "사용")
	},
	build: func(c []string) Record {
		return &CardUsage{
			TransactionDate: c[0],
			ApprovalNumber:  c[1],
			Amount:          c[2],
			MerchantName:    c[3],
			BusinessType:    c[4],
		}
	},
}

// TaxSchema reads the electronic tax invoice list. The total column is optional.
var TaxSchema = Schema{
	Kind:  Tax,
	Rows:  selector.New("tr.tax-invoice-row", ".invoice-item", "table.tax-invoice tbody tr"),
	Arity: 6,
	used: func(row *goquery.Selection) bool {
		return row.Find(".registered, .status-registered").Length() > 0
	},
	build: func(c []string) Record {
		inv := &TaxInvoice{
			IssueDate:      c[0],
			InvoiceNumber:  c[1],
			VendorName:     c[2],
			BusinessNumber: c[3],
			SupplyAmount:   c[4],
			VATAmount:      c[5],
		}
		if len(c) > 6 {
			inv.TotalAmount = c[6]
		}
		return inv
	},
}

// TransferSchema reads the pending transfer list.
var TransferSchema = Schema{
	Kind:  Transfer,
	Rows:  selector.New("tr.transfer-row", ".transfer-item", "table.transfer tbody tr"),
	Arity: 7,
	used: func(row *goquery.Selection) bool {
		text := cellText(row.Find(".transfer-status, td.status").First())
		return strings.Contains(text, "완료") || strings.Contains(text, "이체됨")
	},
	build: func(c []string) Record {
		return &TransferRecord{
			ExecutionNumber: c[0],
			VendorName:      c[1],
			BankName:        c[2],
			AccountNumber:   c[3],
			Amount:          c[4],
			BudgetItem:      c[5],
			RequestDate:     c[6],
		}
	},
}

// SchemaFor returns the schema of a kind
func SchemaFor(kind Kind) (Schema, bool) {
	switch kind {
	case Card:
		return CardSchema, true
	case Tax:
		return TaxSchema, true
	case Transfer:
		return TransferSchema, true
	}
	return Schema{}, false
}
