package automation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/v0xg/playbot/internal/artifact"
	"github.com/v0xg/playbot/internal/browser"
	"github.com/v0xg/playbot/internal/budget"
	"github.com/v0xg/playbot/internal/config"
	"github.com/v0xg/playbot/internal/executor"
	"github.com/v0xg/playbot/internal/playbook"
	"github.com/v0xg/playbot/internal/records"
	"github.com/v0xg/playbot/internal/report"
	"github.com/v0xg/playbot/internal/selector"
)

// Portal locators shared by every automation.
var (
	userIDField    = selector.New(`input[name="userId"]`, "input#userId", `[aria-label="아이디"]`, `input[type="text"]`)
	passwordField  = selector.New(`input[name="password"]`, "input#password", `[aria-label="비밀번호"]`, `input[type="password"]`)
	loginButton    = selector.New(`button[type="submit"]`, `button:has-text("로그인")`, "button.login-btn", `[role="button"]:has-text("로그인")`)
	loginError     = selector.New(".error-message", ".login-error", ".login-fail", `[role="alert"]`)
	fiscalYearList = selector.New("select#fiscalYear", `select[name="fiscalYear"]`, `select[aria-label="회계연도"]`, "select.fiscal-year")
	projectCode    = selector.New("input#projectCode", `input[name="projectCode"]`, `input[aria-label="사업코드"]`, `input[placeholder*="사업"]`)
	searchButton   = selector.New(`button:has-text("조회")`, "button.search-btn", `input[type="button"][value="조회"]`, `a:has-text("조회")`)

	registerButton   = selector.New(`button:has-text("집행등록")`, `a:has-text("등록")`, `button:has-text("등록")`, "button.register-btn")
	rowCheckbox      = selector.New(`input[type="checkbox"]`, `input[name="chk"]`, `td.check input`, `[role="checkbox"]`)
	budgetItemList   = selector.New("select#budgetItem", `select[name="budgetItem"]`, `select[aria-label="비목"]`, "select.budget-item")
	fundingTypeList  = selector.New("select#fundingType", `select[name="fundingType"]`, `select[aria-label="재원"]`, "select.funding-type")
	saveButton       = selector.New(`button:has-text("저장")`, "button.save-btn", `input[type="button"][value="저장"]`, `a:has-text("저장")`)
	successIndicator = selector.New(".success-message", ".alert-success", ".toast-success", `[role="status"]:has-text("완료")`)
	errorIndicator   = selector.New(".error-message", ".alert-danger", ".toast-error", `[role="alert"]`)

	executionStatusList = selector.New("select#executionStatus", `select[name="executionStatus"]`, `select[aria-label="집행상태"]`, "select.execution-status")
	selectAllBox        = selector.New("input.select-all", "input#selectAll", `input[name="selectAll"]`, `th input[type="checkbox"]`)
	requestButton       = selector.New(`button:has-text("집행요청")`, "button.request-btn", `a:has-text("집행요청")`, `input[type="button"][value="집행요청"]`)
	confirmButton       = selector.New(`button:has-text("확인")`, "button.confirm", ".confirm-btn", `[role="dialog"] button:has-text("확인")`)
)

// fallbackOption is chosen when no budget item option contains the mapped item.
const fallbackOption = "기타"

// LoginPlaybook opens the portal and submits the credentials held in the
// user_id and password run variables.
func LoginPlaybook(url string) *playbook.Playbook {
	return &playbook.Playbook{
		ID:       "login",
		Name:     "Portal login",
		StartURL: url,
		Steps: []playbook.Step{
			{ID: "user_id", Type: playbook.Fill, Message: "Enter user id", Selector: ref(userIDField), Value: "{{user_id}}"},
			{ID: "password", Type: playbook.Fill, Message: "Enter password", Selector: ref(passwordField), Value: "{{password}}"},
			{ID: "login", Type: playbook.Click, Message: "Submit login", Selector: ref(loginButton)},
		},
	}
}

// ProjectPlaybook selects the fiscal year and project code and searches.
func ProjectPlaybook() *playbook.Playbook {
	return &playbook.Playbook{
		ID:   "select_project",
		Name: "Project selection",
		Steps: []playbook.Step{
			{ID: "fiscal_year", Type: playbook.Select, Message: "Select fiscal year", Selector: ref(fiscalYearList), Value: "{{fiscal_year}}"},
			{ID: "project_code", Type: playbook.Fill, Message: "Enter project code", Selector: ref(projectCode), Value: "{{project_code}}"},
			{ID: "search", Type: playbook.Click, Message: "Search project", Selector: ref(searchButton)},
		},
	}
}

// MenuPlaybook clicks through a menu path, one step per level. Each level is
// tried as a link first, then as a span, a list item link and an ARIA menu item.
func MenuPlaybook(path ...string) *playbook.Playbook {
	pb := &playbook.Playbook{ID: "menu", Name: strings.Join(path, " > ")}
	for i, name := range path {
		spec := selector.New(
			fmt.Sprintf("a:has-text(%q)", name),
			fmt.Sprintf("span:has-text(%q)", name),
			fmt.Sprintf("li:has-text(%q) > a", name),
			fmt.Sprintf(`[role="menuitem"]:has-text(%q)`, name),
		)
		pb.Steps = append(pb.Steps, playbook.Step{
			ID:       fmt.Sprintf("menu_%d", i+1),
			Type:     playbook.Click,
			Message:  "Open menu " + name,
			Selector: &spec,
		})
	}
	return pb
}

func ref(s selector.Spec) *selector.Spec {
	return &s
}

// portal is one run's view of the subsidy portal: a page plus everything
// needed to act on it.
type portal struct {
	cfg       *config.Config
	opts      Options
	page      browser.Page
	exec      *executor.Executor
	resolver  *selector.Resolver
	extractor *records.Extractor
	mapper    *budget.Mapper
	shots     *artifact.Store
	agg       *report.Aggregator
	logger    *slog.Logger
}

func (p *portal) login(ctx context.Context) error {
	rep := p.exec.Run(ctx, LoginPlaybook(p.cfg.Portal.URL))
	if !rep.OK() {
		return fmt.Errorf("%w: %w", ErrLogin, rep.Err())
	}
	if err := p.exec.Settle(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrLogin, err)
	}
	if el, ok := p.find(ctx, p.page, loginError, selector.Interact); ok {
		msg, _ := el.Text(ctx)
		p.screenshot(ctx, "login_error")
		return fmt.Errorf("%w: %s", ErrLogin, strings.TrimSpace(msg))
	}
	p.logger.Info("logged in", "user", p.cfg.Credentials.UserID)
	return nil
}

func (p *portal) selectProject(ctx context.Context) error {
	rep := p.exec.Run(ctx, ProjectPlaybook())
	if !rep.OK() {
		return fmt.Errorf("%w: %w", ErrProjectSelect, rep.Err())
	}
	if err := p.exec.Settle(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrProjectSelect, err)
	}
	p.logger.Info("project selected", "fiscal_year", p.cfg.Project.FiscalYear, "project", p.cfg.Project.ProjectCode)
	return nil
}

func (p *portal) navigateMenu(ctx context.Context, path ...string) error {
	rep := p.exec.Run(ctx, MenuPlaybook(path...))
	if !rep.OK() {
		p.screenshot(ctx, "navigate_error")
		return fmt.Errorf("navigate %s: %w", strings.Join(path, " > "), rep.Err())
	}
	return p.exec.Settle(ctx)
}

// click runs a click step, retrying resolution up to the step timeout.
func (p *portal) click(ctx context.Context, id string, spec selector.Spec) error {
	return p.exec.Step(ctx, playbook.Step{ID: id, Type: playbook.Click, Message: "Click " + id, Selector: &spec}).Err
}

func (p *portal) selectOption(ctx context.Context, id string, spec selector.Spec, value string) error {
	return p.exec.Step(ctx, playbook.Step{ID: id, Type: playbook.Select, Message: "Select " + value, Selector: &spec, Value: value}).Err
}

// find resolves spec once, without retrying.
func (p *portal) find(ctx context.Context, q browser.Querier, spec selector.Spec, mode selector.Mode) (browser.Element, bool) {
	res, err := p.resolver.Resolve(ctx, q, spec, mode)
	if err != nil {
		return nil, false
	}
	return res.Element, true
}

// present reports whether a visible element matches spec right now.
func (p *portal) present(ctx context.Context, spec selector.Spec) bool {
	_, ok := p.find(ctx, p.page, spec, selector.Interact)
	return ok
}

// text returns the trimmed text of the first element matching spec in q.
func (p *portal) text(ctx context.Context, q browser.Querier, spec selector.Spec) string {
	el, ok := p.find(ctx, q, spec, selector.Read)
	if !ok {
		return ""
	}
	s, err := el.Text(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// clickIfPresent clicks an optional control. It reports whether the control existed.
func (p *portal) clickIfPresent(ctx context.Context, q browser.Querier, spec selector.Spec) (bool, error) {
	el, ok := p.find(ctx, q, spec, selector.Interact)
	if !ok {
		return false, nil
	}
	if err := el.Click(ctx); err != nil {
		return true, fmt.Errorf("click %s: %w", spec.Primary, err)
	}
	return true, p.exec.Pause(ctx)
}

func (p *portal) selectIfPresent(ctx context.Context, spec selector.Spec, label string) error {
	el, ok := p.find(ctx, p.page, spec, selector.Interact)
	if !ok {
		return nil
	}
	if err := el.SelectOption(ctx, label); err != nil {
		return fmt.Errorf("select %q in %s: %w", label, spec.Primary, err)
	}
	return nil
}

func (p *portal) checkIfPresent(ctx context.Context, q browser.Querier, spec selector.Spec) (bool, error) {
	el, ok := p.find(ctx, q, spec, selector.Interact)
	if !ok {
		return false, nil
	}
	if err := el.SetChecked(ctx, true); err != nil {
		return true, fmt.Errorf("check %s: %w", spec.Primary, err)
	}
	return true, nil
}

// selectBudgetItem picks the budget item option for item. A missing field or
// option is logged and left for the operator.
func (p *portal) selectBudgetItem(ctx context.Context, item string) {
	sel, ok := p.find(ctx, p.page, budgetItemList, selector.Interact)
	if !ok {
		p.logger.Debug("no budget item field")
		return
	}
	options, err := sel.QueryAll(ctx, "option")
	if err != nil {
		p.logger.Warn("budget item options unreadable", "error", err)
		return
	}
	texts := make([]string, 0, len(options))
	for _, o := range options {
		if t, err := o.Text(ctx); err == nil {
			texts = append(texts, strings.TrimSpace(t))
		}
	}

	label := pickOption(texts, item)
	if label == "" {
		p.logger.Warn("no budget item option", "item", item)
		return
	}
	if err := sel.SelectOption(ctx, label); err != nil {
		p.logger.Warn("budget item not selected", "item", item, "option", label, "error", err)
	}
}

// pickOption returns the first option containing item, else the first
// containing the catch-all category, else "".
func pickOption(options []string, item string) string {
	if item != "" {
		for _, o := range options {
			if strings.Contains(o, item) {
				return o
			}
		}
	}
	for _, o := range options {
		if strings.Contains(o, fallbackOption) {
			return o
		}
	}
	return ""
}

// screenshot saves the page under the joined name. It is best effort and
// still runs after ctx is cancelled.
func (p *portal) screenshot(ctx context.Context, parts ...string) string {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	path, err := p.shots.Save(ctx, p.page, artifact.Name(parts...))
	if err != nil {
		p.logger.Warn("screenshot not saved", "name", artifact.Name(parts...), "error", err)
		return ""
	}
	if path != "" {
		p.logger.Info("screenshot saved", "path", path)
	}
	return path
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
