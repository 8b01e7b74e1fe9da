// Package budget classifies records into budget items and funding sources.
package budget

import "strings"

// Rule maps a vendor to a classification. A rule with neither matcher set
// never matches.
type Rule struct {
	VendorType         string `yaml:"vendor_type,omitempty" json:"vendor_type,omitempty"`
	VendorNameContains string `yaml:"vendor_name_contains,omitempty" json:"vendor_name_contains,omitempty"`
	BudgetItem         string `yaml:"budget_item" json:"budget_item" validate:"required"`
	FundingType        string `yaml:"funding_type" json:"funding_type" validate:"required"`
}

// Classification is the budget item and funding source chosen for a record.
type Classification struct {
	BudgetItem  string `yaml:"budget_item" json:"budget_item" validate:"required"`
	FundingType string `yaml:"funding_type" json:"funding_type" validate:"required"`
}

// DefaultClassification applies when no rule matches and none is configured.
var DefaultClassification = Classification{BudgetItem: "기타운영비", FundingType: "시도비"}

// Mapper evaluates rules in declaration order
type Mapper struct {
	rules []Rule
	def   Classification
}

// NewMapper creates a mapper. Blank fields of def fall back to DefaultClassification.
func NewMapper(rules []Rule, def Classification) *Mapper {
	if def.BudgetItem == "" {
		def.BudgetItem = DefaultClassification.BudgetItem
	}
	if def.FundingType == "" {
		def.FundingType = DefaultClassification.FundingType
	}
	return &Mapper{rules: append([]Rule(nil), rules...), def: def}
}

// Map returns the first rule whose vendor type is contained in businessType,
// or whose name fragment is contained in vendorName. Matching is
// case-sensitive substring containment.
func (m *Mapper) Map(vendorName, businessType string) Classification {
	for _, r := range m.rules {
		if r.matches(vendorName, businessType) {
			return Classification{BudgetItem: r.BudgetItem, FundingType: r.FundingType}
		}
	}
	return m.def
}

func (r Rule) matches(vendorName, businessType string) bool {
	if r.VendorType != "" && businessType != "" && strings.Contains(businessType, r.VendorType) {
		return true
	}
	return r.VendorNameContains != "" && vendorName != "" && strings.Contains(vendorName, r.VendorNameContains)
}
