package automation

import (
	"context"
	"errors"
	"fmt"

	"github.com/v0xg/playbot/internal/records"
	"github.com/v0xg/playbot/internal/report"
	"github.com/v0xg/playbot/internal/selector"
)

// batchFlow is the kind-specific part of a register-then-confirm automation.
type batchFlow interface {
	kind() records.Kind
	fetch(ctx context.Context, p *portal) ([]records.Record, error)
	process(ctx context.Context, p *portal, rec records.Record) (string, error)
	confirm(ctx context.Context, p *portal) error
}

// runBatch fetches records, processes each one in isolation and, when at
// least one succeeded, requests execution for the batch.
func (p *portal) runBatch(ctx context.Context, f batchFlow) (report.Status, error) {
	p.agg.Enter(StateFetchRecords)
	recs, err := f.fetch(ctx, p)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		p.screenshot(ctx, "fetch", string(f.kind()), "error")
		return "", fmt.Errorf("fetch records: %w", err)
	}
	if len(recs) == 0 {
		p.logger.Info("no records to process")
		return report.StatusNoRecords, nil
	}

	p.agg.Enter(StateProcessRecord)
	succeeded := 0
	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p.logger.Info("processing record", "index", i+1, "total", len(recs), "key", rec.Key(), "item", rec.Label())

		msg, err := p.processOne(ctx, f, rec)
		rec.MarkProcessed()
		item := report.Item{Key: rec.Key(), Label: rec.Label(), Outcome: report.Success, Message: msg}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			item.Outcome = report.Failure
			item.Message = err.Error()
			item.Screenshot = p.screenshot(ctx, "process_error", rec.Key())
		} else {
			succeeded++
		}
		p.agg.Record(item)
	}

	if succeeded > 0 {
		p.agg.Enter(StateBatchConfirm)
		if err := f.confirm(ctx, p); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			p.screenshot(ctx, "batch_confirm", string(f.kind()), "error")
			p.agg.Warn((&BatchConfirmError{Kind: f.kind(), Cause: err}).Error())
		}
	}

	p.agg.Enter(StateEnd)
	return report.StatusCompleted, nil
}

func (p *portal) processOne(ctx context.Context, f batchFlow, rec records.Record) (msg string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return f.process(ctx, p, rec)
}

// requestExecution lists registered but unrequested executions, selects them
// all and requests execution.
func (p *portal) requestExecution(ctx context.Context) error {
	if err := p.selectIfPresent(ctx, executionStatusList, "미요청"); err != nil {
		return err
	}
	if err := p.click(ctx, "search_executions", searchButton); err != nil {
		return err
	}
	if err := p.exec.Settle(ctx); err != nil {
		return err
	}
	if _, err := p.checkIfPresent(ctx, p.page, selectAllBox); err != nil {
		return err
	}
	if err := p.click(ctx, "request_execution", requestButton); err != nil {
		return err
	}
	if _, err := p.clickIfPresent(ctx, p.page, confirmButton); err != nil {
		return err
	}
	if err := p.exec.Settle(ctx); err != nil {
		return err
	}
	p.logger.Info("execution requested")
	return nil
}

var (
	cardMenu      = []string{"금융정보관리", "보조금카드관리", "보조금전용카드사용내역관리"}
	executionMenu = []string{"집행관리", "집행등록"}

	unusedOnlyBox    = selector.New("input#unusedOnly", `input[name="unusedOnly"]`, `input[aria-label="미사용"]`, `label:has-text("미사용") input`)
	evidenceTypeList = selector.New("select#evidenceType", `select[name="evidenceType"]`, `select[aria-label="증빙유형"]`, "select.evidence-type")
)

// cardFlow registers subsidy-card charges as expenses.
type cardFlow struct{}

func (cardFlow) kind() records.Kind { return records.Card }

func (cardFlow) fetch(ctx context.Context, p *portal) ([]records.Record, error) {
	if err := p.navigateMenu(ctx, cardMenu...); err != nil {
		return nil, err
	}
	if err := p.selectOption(ctx, "card_fiscal_year", fiscalYearList, p.cfg.Project.FiscalYear); err != nil {
		return nil, err
	}
	if _, err := p.checkIfPresent(ctx, p.page, unusedOnlyBox); err != nil {
		return nil, err
	}
	if err := p.click(ctx, "search_cards", searchButton); err != nil {
		return nil, err
	}
	if err := p.exec.Settle(ctx); err != nil {
		return nil, err
	}
	return p.extractor.Extract(ctx, p.page, records.CardSchema, p.cfg.Automation.CardUsage.MaxItems)
}

func (cardFlow) process(ctx context.Context, p *portal, rec records.Record) (string, error) {
	card, ok := rec.(*records.CardUsage)
	if !ok {
		return "", fmt.Errorf("unexpected record %T", rec)
	}

	if _, err := p.clickIfPresent(ctx, card.Row(), registerButton); err != nil {
		return "", fmt.Errorf("open registration: %w", err)
	}
	if err := p.selectIfPresent(ctx, evidenceTypeList, "신용카드"); err != nil {
		return "", err
	}

	cls := p.mapper.Map(card.MerchantName, card.BusinessType)
	p.logger.Debug("budget mapped", "key", card.Key(), "budget_item", cls.BudgetItem, "funding_type", cls.FundingType)
	p.selectBudgetItem(ctx, cls.BudgetItem)
	if err := p.selectIfPresent(ctx, fundingTypeList, cls.FundingType); err != nil {
		return "", err
	}

	if err := p.click(ctx, "save_card", saveButton); err != nil {
		return "", err
	}
	if err := p.exec.Settle(ctx); err != nil {
		return "", err
	}
	if !p.present(ctx, successIndicator) {
		return "", errors.New("no confirmation after save")
	}
	return fmt.Sprintf("registered %s as %s/%s", card.Amount, cls.BudgetItem, cls.FundingType), nil
}

func (cardFlow) confirm(ctx context.Context, p *portal) error {
	if err := p.navigateMenu(ctx, executionMenu...); err != nil {
		return err
	}
	return p.requestExecution(ctx)
}

var (
	taxInvoiceTab    = selector.New(`a:has-text("전자세금계산서")`, `button:has-text("전자세금계산서")`, `[role="tab"]:has-text("전자세금계산서")`, `li:has-text("전자세금계산서") > a`)
	taxInvoiceSearch = selector.New(`button:has-text("세금계산서 조회")`, `button:has-text("조회")`, "button.search-btn", `input[type="button"][value="조회"]`)
)

// taxFlow registers electronic tax invoices as expenses.
type taxFlow struct{}

func (taxFlow) kind() records.Kind { return records.Tax }

func (taxFlow) fetch(ctx context.Context, p *portal) ([]records.Record, error) {
	if err := p.navigateMenu(ctx, executionMenu...); err != nil {
		return nil, err
	}
	if _, err := p.clickIfPresent(ctx, p.page, taxInvoiceTab); err != nil {
		return nil, err
	}
	if _, err := p.clickIfPresent(ctx, p.page, taxInvoiceSearch); err != nil {
		return nil, err
	}
	if err := p.exec.Settle(ctx); err != nil {
		return nil, err
	}
	return p.extractor.Extract(ctx, p.page, records.TaxSchema, p.cfg.Automation.TaxInvoice.MaxItems)
}

func (taxFlow) process(ctx context.Context, p *portal, rec records.Record) (string, error) {
	inv, ok := rec.(*records.TaxInvoice)
	if !ok {
		return "", fmt.Errorf("unexpected record %T", rec)
	}
	if m := inv.Reconcile(); m != nil {
		p.agg.Warn(m.String())
	}

	checked, err := p.checkIfPresent(ctx, inv.Row(), rowCheckbox)
	if err != nil {
		return "", err
	}
	if !checked {
		if err := inv.Row().Click(ctx); err != nil {
			return "", fmt.Errorf("select invoice row: %w", err)
		}
	}
	if err := p.exec.Pause(ctx); err != nil {
		return "", err
	}
	if _, err := p.clickIfPresent(ctx, p.page, registerButton); err != nil {
		return "", fmt.Errorf("open registration: %w", err)
	}

	cls := p.mapper.Map(inv.VendorName, "")
	p.logger.Debug("budget mapped", "key", inv.Key(), "budget_item", cls.BudgetItem, "funding_type", cls.FundingType)
	p.selectBudgetItem(ctx, cls.BudgetItem)
	if err := p.selectIfPresent(ctx, fundingTypeList, cls.FundingType); err != nil {
		return "", err
	}

	if err := p.click(ctx, "save_invoice", saveButton); err != nil {
		return "", err
	}
	if err := p.exec.Settle(ctx); err != nil {
		return "", err
	}
	if el, ok := p.find(ctx, p.page, errorIndicator, selector.Interact); ok {
		msg, _ := el.Text(ctx)
		return "", fmt.Errorf("portal rejected registration: %s", msg)
	}

	amount := inv.TotalAmount
	if amount == "" {
		amount = inv.SupplyAmount
	}
	return fmt.Sprintf("registered %s as %s/%s", amount, cls.BudgetItem, cls.FundingType), nil
}

func (taxFlow) confirm(ctx context.Context, p *portal) error {
	return p.requestExecution(ctx)
}
