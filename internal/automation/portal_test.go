package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/playbot/internal/playbook"
	"github.com/v0xg/playbot/internal/selector"
)

func TestMenuPlaybook(t *testing.T) {
	pb := MenuPlaybook("집행관리", "집행등록")

	require.Len(t, pb.Steps, 2)
	step := pb.Steps[1]
	assert.Equal(t, "menu_2", step.ID)
	assert.Equal(t, playbook.Click, step.Type)
	assert.Equal(t, `a:has-text("집행등록")`, step.Selector.Primary)
	assert.Equal(t, []string{
		`span:has-text("집행등록")`,
		`li:has-text("집행등록") > a`,
		`[role="menuitem"]:has-text("집행등록")`,
	}, step.Selector.Fallback)
}

func TestBuiltinLocatorsMeetFallbackThreshold(t *testing.T) {
	specs := map[string]selector.Spec{
		"userIDField": userIDField, "passwordField": passwordField, "loginButton": loginButton,
		"loginError": loginError, "fiscalYearList": fiscalYearList, "projectCode": projectCode,
		"searchButton": searchButton, "registerButton": registerButton, "rowCheckbox": rowCheckbox,
		"budgetItemList": budgetItemList, "fundingTypeList": fundingTypeList, "saveButton": saveButton,
		"successIndicator": successIndicator, "errorIndicator": errorIndicator,
		"executionStatusList": executionStatusList, "selectAllBox": selectAllBox,
		"requestButton": requestButton, "confirmButton": confirmButton,
		"unusedOnlyBox": unusedOnlyBox, "evidenceTypeList": evidenceTypeList,
		"taxInvoiceTab": taxInvoiceTab, "taxInvoiceSearch": taxInvoiceSearch,
		"transferStatusList": transferStatusList, "transferButton": transferButton,
		"authDialog": authDialog, "transferDone": transferDone,
		"resultRows": resultRows, "resultStatus": resultStatus, "resultVendor": resultVendor,
	}
	for _, pb := range []*playbook.Playbook{LoginPlaybook(""), ProjectPlaybook(), MenuPlaybook("집행관리")} {
		for _, step := range pb.Steps {
			specs[pb.ID+"/"+step.ID] = *step.Selector
		}
	}

	for name, spec := range specs {
		assert.GreaterOrEqual(t, len(spec.Fallback), selector.RecommendedFallbacks, name)
		assert.False(t, playbook.HasDynamicID(spec.String()), name)
	}
}

func TestBuiltinPlaybooksUseVariables(t *testing.T) {
	login := LoginPlaybook("https://portal.example")
	assert.Equal(t, "https://portal.example", login.StartURL)
	assert.Equal(t, "{{user_id}}", login.Steps[0].Value)
	assert.Equal(t, "{{password}}", login.Steps[1].Value)

	project := ProjectPlaybook()
	assert.Equal(t, "{{fiscal_year}}", project.Steps[0].Value)
	assert.Equal(t, "{{project_code}}", project.Steps[1].Value)

	for _, pb := range []*playbook.Playbook{login, project, MenuPlaybook("a")} {
		for _, s := range pb.Steps {
			assert.NotNil(t, s.Selector, "%s/%s", pb.ID, s.ID)
		}
	}
}

func TestPickOption(t *testing.T) {
	options := []string{"선택", "통신비", "기타운영비", "기타 잡비"}

	assert.Equal(t, "통신비", pickOption(options, "통신비"))
	assert.Equal(t, "기타운영비", pickOption(options, "여비"))
	assert.Equal(t, "기타운영비", pickOption(options, ""))
	assert.Empty(t, pickOption([]string{"선택"}, "여비"))
}

func TestLookup(t *testing.T) {
	a, ok := Lookup("tax")
	require.True(t, ok)
	assert.Equal(t, "전자세금계산서 집행등록", a.Name)

	_, ok = Lookup("payroll")
	assert.False(t, ok)
}
