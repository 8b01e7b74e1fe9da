package records

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/playbot/internal/browser/browsertest"
)

func TestExtractCards(t *testing.T) {
	unused := browsertest.Row(`<tr class="card-usage-row"><td>2025-01-10</td><td>A100</td><td>55,000</td><td>SK텔레콤</td><td>이동통신업</td><td>미사용</td></tr>`)
	used := browsertest.Row(`<tr class="card-usage-row"><td>2025-01-11</td><td>A101</td><td>12,000</td><td>식당</td><td>음식점</td><td>사용</td></tr>`)
	usedY := browsertest.Row(`<tr class="card-usage-row"><td>2025-01-12</td><td>A102</td><td>9,000</td><td>문구</td><td>소매</td><td><span class="used-status">Y</span></td></tr>`)
	short := browsertest.Row(`<tr class="card-usage-row"><td>2025-01-13</td><td>A103</td></tr>`)

	page := browsertest.NewPage().Add("tr.card-usage-row", unused, used, usedY, short)

	recs, err := NewExtractor(nil).Extract(context.Background(), page, CardSchema, 50)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	card, ok := recs[0].(*CardUsage)
	require.True(t, ok)
	assert.Equal(t, "2025-01-10", card.TransactionDate)
	assert.Equal(t, "A100", card.ApprovalNumber)
	assert.Equal(t, "55,000", card.Amount)
	assert.Equal(t, "SK텔레콤", card.MerchantName)
	assert.Equal(t, "이동통신업", card.BusinessType)
	assert.Same(t, unused, card.Row())
	assert.False(t, card.Processed())

	card.MarkProcessed()
	assert.True(t, card.Processed())
}

func TestExtractCapAppliesBeforeFilter(t *testing.T) {
	row := func(no, status string) *browsertest.Element {
		return browsertest.Row(`<tr><td>d</td><td>` + no + `</td><td>1</td><td>m</td><td>b</td><td>` + status + `</td></tr>`)
	}
	page := browsertest.NewPage().Add("tr.card-usage-row",
		row("1", "사용"), row("2", "미사용"), row("3", "미사용"))

	recs, err := NewExtractor(nil).Extract(context.Background(), page, CardSchema, 2)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2", recs[0].Key())
}

func TestExtractUsesRowFallback(t *testing.T) {
	page := browsertest.NewPage().Add(".invoice-item",
		browsertest.Row(`<tr class="invoice-item"><td>2025-02-01</td><td>INV-1</td><td>한국전력</td><td>123-45-67890</td><td>10,000</td><td>1,000</td></tr>`))

	recs, err := NewExtractor(nil).Extract(context.Background(), page, TaxSchema, 100)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	inv := recs[0].(*TaxInvoice)
	assert.Equal(t, "INV-1", inv.Key())
	assert.Equal(t, "한국전력", inv.Label())
	assert.Empty(t, inv.TotalAmount)
	assert.Nil(t, inv.Reconcile())
	assert.Equal(t, []string{"tr.tax-invoice-row", ".invoice-item"}, page.Queries)
}

func TestExtractSkipsRegisteredInvoices(t *testing.T) {
	page := browsertest.NewPage().Add("tr.tax-invoice-row",
		browsertest.Row(`<tr><td>d</td><td>INV-1</td><td>v</td><td>b</td><td>1</td><td>0</td><td>1</td><td><span class="registered">등록</span></td></tr>`),
		browsertest.Row(`<tr><td>d</td><td>INV-2</td><td>v</td><td>b</td><td>1</td><td>0</td><td>1</td><td>미등록</td></tr>`))

	recs, err := NewExtractor(nil).Extract(context.Background(), page, TaxSchema, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "INV-2", recs[0].Key())
}

func TestExtractTransfers(t *testing.T) {
	page := browsertest.NewPage().Add("tr.transfer-row",
		browsertest.Row(`<tr><td>E-1</td><td>업체A</td><td>국민</td><td>111-22</td><td>30,000</td><td>운영비</td><td>2025-03-01</td><td class="status">대기</td></tr>`),
		browsertest.Row(`<tr><td>E-2</td><td>업체B</td><td>신한</td><td>333-44</td><td>10,000</td><td>운영비</td><td>2025-03-01</td><td class="status">이체완료</td></tr>`),
		browsertest.Row(`<tr><td>E-3</td><td>업체C</td><td>농협</td><td>555-66</td><td>5,000</td><td>운영비</td></tr>`))

	recs, err := NewExtractor(nil).Extract(context.Background(), page, TransferSchema, 30)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	tr := recs[0].(*TransferRecord)
	assert.Equal(t, Transfer, tr.Kind())
	assert.Equal(t, "E-1", tr.ExecutionNumber)
	assert.Equal(t, "111-22", tr.AccountNumber)
	assert.Equal(t, "2025-03-01", tr.RequestDate)
}

func TestExtractNoRows(t *testing.T) {
	recs, err := NewExtractor(nil).Extract(context.Background(), browsertest.NewPage(), CardSchema, 50)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCellsNormalizeWhitespace(t *testing.T) {
	sel, err := parseRow("<tr><td>\n  서울 \n 강남 </td><td></td></tr>")
	require.NoError(t, err)
	assert.Equal(t, []string{"서울 강남", ""}, Cells(sel))
}

func TestParseAmount(t *testing.T) {
	tests := map[string]int64{
		"10,000":     10000,
		"11,000원":    11000,
		"₩ 1,234":    1234,
		" 500 ":      500,
		"":           0,
		"N/A":        0,
		"1.5":        0,
		"-3,000":     -3000,
		"12 345 원": 12345,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseAmount(in), in)
	}
}

func TestReconcile(t *testing.T) {
	inv := &TaxInvoice{InvoiceNumber: "INV-9", SupplyAmount: "10,000", VATAmount: "1,000", TotalAmount: "11,000"}
	assert.Nil(t, inv.Reconcile())

	inv.TotalAmount = "12,000"
	m := inv.Reconcile()
	require.NotNil(t, m)
	assert.Equal(t, Mismatch{InvoiceNumber: "INV-9", Supply: 10000, VAT: 1000, Total: 12000}, *m)
	assert.Equal(t, "amount mismatch on INV-9: 10000 + 1000 != 12000", m.String())

	inv.TotalAmount = "0"
	assert.Nil(t, inv.Reconcile())
}

func TestSchemaFor(t *testing.T) {
	s, ok := SchemaFor(Tax)
	require.True(t, ok)
	assert.Equal(t, 6, s.Arity)

	_, ok = SchemaFor("payroll")
	assert.False(t, ok)
}
