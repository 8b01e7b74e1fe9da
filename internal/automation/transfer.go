package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/v0xg/playbot/internal/browser"
	"github.com/v0xg/playbot/internal/records"
	"github.com/v0xg/playbot/internal/report"
	"github.com/v0xg/playbot/internal/selector"
)

var (
	transferMenu = []string{"집행관리", "집행이체관리"}

	transferStatusList = selector.New("select#transferStatus", `select[name="transferStatus"]`, `select[aria-label="이체상태"]`, "select.transfer-status")
	transferButton     = selector.New(`button:has-text("일괄이체")`, `button:has-text("이체실행")`, `a:has-text("일괄이체")`, "button.transfer-btn")
	authDialog         = selector.New(".cert-popup", ".auth-dialog", "#certDialog", `[role="dialog"]:has-text("인증서")`)
	transferDone       = selector.New(".success-message", ".transfer-result", ".alert-success", `[role="status"]:has-text("이체")`)

	resultRows   = selector.New(".result-row", ".transfer-result-item", "tr.transfer-result-row", "table.result tbody tr")
	resultStatus = selector.New(".result-status", "td.status", "td.result", "td:last-child")
	resultVendor = selector.New(".vendor-name", "td.vendor", `td[data-field="vendor"]`, "td:nth-child(2)")
)

// runTransfer selects pending transfers, starts the bulk transfer, waits for
// the operator's certificate step and reads the portal's result list.
func (p *portal) runTransfer(ctx context.Context) (report.Status, error) {
	p.agg.Enter(StateFetchRecords)
	recs, err := p.fetchTransfers(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		p.screenshot(ctx, "fetch", string(records.Transfer), "error")
		return "", fmt.Errorf("fetch records: %w", err)
	}
	if len(recs) == 0 {
		p.logger.Info("no pending transfers")
		return report.StatusNoRecords, nil
	}

	p.agg.Enter(StateProcessRecord)
	selected := 0
	for _, rec := range recs {
		checked, err := p.checkIfPresent(ctx, rec.Row(), rowCheckbox)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			p.logger.Warn("transfer not selected", "key", rec.Key(), "error", err)
			continue
		}
		if !checked {
			p.logger.Warn("transfer row has no checkbox", "key", rec.Key())
			continue
		}
		rec.MarkProcessed()
		selected++
	}
	p.agg.SetSelected(selected)
	if selected == 0 {
		return report.StatusNoSelection, nil
	}
	p.logger.Info("transfers selected", "selected", selected, "total", len(recs))

	p.agg.Enter(StateBatchConfirm)
	if err := p.initiateTransfer(ctx); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		p.screenshot(ctx, "transfer_init_error")
		return "", fmt.Errorf("%w: %w", ErrTransferInit, err)
	}

	if p.opts.AutoAuth {
		p.logger.Warn("certificate wait skipped")
	} else {
		p.agg.Enter(StateAwaitExternalAuth)
		if err := p.awaitAuth(ctx); err != nil {
			if ctx.Err() == nil {
				p.screenshot(ctx, "auth_timeout")
			}
			return "", err
		}
	}

	p.agg.Enter(StateVerify)
	if err := p.verifyTransfers(ctx); err != nil {
		return "", err
	}
	p.agg.Enter(StateEnd)
	return report.StatusCompleted, nil
}

func (p *portal) fetchTransfers(ctx context.Context) ([]records.Record, error) {
	if err := p.navigateMenu(ctx, transferMenu...); err != nil {
		return nil, err
	}
	if err := p.selectOption(ctx, "transfer_fiscal_year", fiscalYearList, p.cfg.Project.FiscalYear); err != nil {
		return nil, err
	}
	if err := p.selectIfPresent(ctx, transferStatusList, "미이체"); err != nil {
		return nil, err
	}
	if err := p.click(ctx, "search_transfers", searchButton); err != nil {
		return nil, err
	}
	if err := p.exec.Settle(ctx); err != nil {
		return nil, err
	}
	return p.extractor.Extract(ctx, p.page, records.TransferSchema, p.cfg.Automation.Transfer.MaxItems)
}

func (p *portal) initiateTransfer(ctx context.Context) error {
	if err := p.click(ctx, "transfer", transferButton); err != nil {
		return err
	}
	if _, err := p.clickIfPresent(ctx, p.page, confirmButton); err != nil {
		return err
	}
	return nil
}

// awaitAuth blocks while the operator completes the certificate prompt. It
// returns once a result indicator shows or a dialog that was seen goes away;
// whether the transfer worked is decided from the result list afterwards.
// At the deadline an open dialog is fatal and a missing one is not.
func (p *portal) awaitAuth(ctx context.Context) error {
	timeout := p.cfg.Automation.Transfer.AuthTimeout
	poll := p.opts.AuthPoll
	p.logger.Warn("complete certificate authentication in the browser", "timeout", timeout)

	deadline := time.Now().Add(timeout)
	seen := false
	for {
		if p.present(ctx, transferDone) {
			p.logger.Info("transfer result shown")
			return nil
		}
		open := p.present(ctx, authDialog)
		if open {
			seen = true
		} else if seen {
			p.logger.Info("certificate dialog closed")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		left := time.Until(deadline)
		if left <= 0 {
			if open {
				return fmt.Errorf("%w after %s", ErrAuthTimeout, timeout)
			}
			p.logger.Warn("no certificate dialog observed", "timeout", timeout)
			return nil
		}
		if err := sleep(ctx, min(poll, left)); err != nil {
			return err
		}
	}
}

func (p *portal) verifyTransfers(ctx context.Context) error {
	if err := p.exec.Settle(ctx); err != nil {
		return err
	}
	rows, err := p.findAll(ctx, resultRows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		p.agg.Warn("no transfer results shown")
		return nil
	}

	for _, row := range rows {
		status := p.text(ctx, row, resultStatus)
		item := report.Item{Label: p.text(ctx, row, resultVendor), Outcome: report.Failure, Message: status}
		if strings.Contains(status, "성공") || strings.Contains(status, "완료") {
			item.Outcome = report.Success
		}
		p.agg.Record(item)
	}
	p.agg.SetTransferred(len(rows))
	return nil
}

// findAll returns the elements of the first candidate of spec that matches anything.
func (p *portal) findAll(ctx context.Context, spec selector.Spec) ([]browser.Element, error) {
	for _, candidate := range spec.Candidates() {
		els, err := p.page.QueryAll(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if len(els) > 0 {
			return els, nil
		}
	}
	return nil, nil
}
