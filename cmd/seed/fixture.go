package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Fixture is the master data file layout.
type Fixture struct {
	Vendors     []VendorRow     `yaml:"vendors"`
	GLAccounts  []GLAccountRow  `yaml:"gl_accounts"`
	CostCenters []CostCenterRow `yaml:"cost_centers"`
	BudgetCodes []BudgetCodeRow `yaml:"budget_codes"`
}

type VendorRow struct {
	ID       string   `yaml:"vendor_id"`
	Name     string   `yaml:"vendor_name"`
	BizRegNo string   `yaml:"biz_reg_no"`
	SAPCode  string   `yaml:"sap_vendor_cd"`
	Aliases  []string `yaml:"aliases"`
}

type GLAccountRow struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
	Type string `yaml:"account_type"`
}

type CostCenterRow struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type BudgetCodeRow struct {
	ID     string `yaml:"code_id"`
	Name   string `yaml:"name"`
	Type   string `yaml:"code_type"`
	Parent string `yaml:"parent"`
	Sort   int    `yaml:"sort_order"`
}

func loadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range f.Vendors {
		v := &f.Vendors[i]
		v.BizRegNo = strings.NewReplacer("-", "", " ", "").Replace(v.BizRegNo)
	}
	return &f, nil
}

func (f *Fixture) validate() error {
	if len(f.Vendors)+len(f.GLAccounts)+len(f.CostCenters)+len(f.BudgetCodes) == 0 {
		return fmt.Errorf("fixture is empty")
	}

	seen := map[string]bool{}
	for i, v := range f.Vendors {
		if v.ID == "" || v.Name == "" || v.BizRegNo == "" {
			return fmt.Errorf("vendors[%d]: vendor_id, vendor_name and biz_reg_no are required", i)
		}
		if seen[v.BizRegNo] {
			return fmt.Errorf("vendors[%d]: duplicate biz_reg_no %s", i, v.BizRegNo)
		}
		seen[v.BizRegNo] = true
	}
	for i, a := range f.GLAccounts {
		if a.Code == "" || a.Name == "" {
			return fmt.Errorf("gl_accounts[%d]: code and name are required", i)
		}
	}
	for i, c := range f.CostCenters {
		if c.Code == "" || c.Name == "" {
			return fmt.Errorf("cost_centers[%d]: code and name are required", i)
		}
	}

	types := map[string]string{}
	for _, c := range f.BudgetCodes {
		types[c.ID] = c.Type
	}
	for i, c := range f.BudgetCodes {
		if c.ID == "" || c.Name == "" {
			return fmt.Errorf("budget_codes[%d]: code_id and name are required", i)
		}
		switch c.Type {
		case "BUDGET_L1", "IT_TYPE":
			if c.Parent != "" {
				return fmt.Errorf("budget_codes[%d]: %s codes take no parent", i, c.Type)
			}
		case "BUDGET_L2":
			if types[c.Parent] != "BUDGET_L1" {
				return fmt.Errorf("budget_codes[%d]: parent %q is not a BUDGET_L1 code in this fixture", i, c.Parent)
			}
		default:
			return fmt.Errorf("budget_codes[%d]: unknown code_type %q", i, c.Type)
		}
	}
	return nil
}

// orderedBudgetCodes returns budget codes with parents ahead of their children.
func (f *Fixture) orderedBudgetCodes() []BudgetCodeRow {
	out := make([]BudgetCodeRow, 0, len(f.BudgetCodes))
	for _, c := range f.BudgetCodes {
		if c.Parent == "" {
			out = append(out, c)
		}
	}
	for _, c := range f.BudgetCodes {
		if c.Parent != "" {
			out = append(out, c)
		}
	}
	return out
}
