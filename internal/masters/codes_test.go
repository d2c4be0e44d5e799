package masters

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestNextCodeID(t *testing.T) {
	cases := []struct {
		codeType string
		ids      []string
		want     string
	}{
		{"BUDGET_L1", nil, "BUDGET_L1_001"},
		{"budget_l1", []string{"BUDGET_L1_001", "BUDGET_L1_002"}, "BUDGET_L1_003"},
		{"BUDGET_L2", []string{"BUDGET_L2_009", "BUDGET_L2_010", "BUDGET_L2_X"}, "BUDGET_L2_011"},
		{"IT_TYPE", []string{"BUDGET_L1_050"}, "IT_TYPE_001"},
		{"BUDGET_L1", []string{"BUDGET_L1_999"}, "BUDGET_L1_1000"},
	}
	for _, tc := range cases {
		if got := nextCodeID(tc.codeType, tc.ids); got != tc.want {
			t.Errorf("nextCodeID(%s, %v) = %s, want %s", tc.codeType, tc.ids, got, tc.want)
		}
	}
}

func TestCheckParent(t *testing.T) {
	l1 := &BudgetCode{CodeID: "BUDGET_L1_001", CodeType: CodeTypeL1}
	l2 := &BudgetCode{CodeID: "BUDGET_L2_001", CodeType: CodeTypeL2}

	if err := checkParent(CodeTypeL1, nil); err != nil {
		t.Errorf("L1 root: %v", err)
	}
	if err := checkParent(CodeTypeL1, l1); err == nil {
		t.Error("L1 with parent should fail")
	}
	if err := checkParent(CodeTypeL2, l1); err != nil {
		t.Errorf("L2 under L1: %v", err)
	}
	if err := checkParent(CodeTypeL2, nil); err == nil {
		t.Error("L2 without parent should fail")
	}
	if err := checkParent(CodeTypeL2, l2); err == nil {
		t.Error("L2 under L2 should fail")
	}
	if err := checkParent(CodeTypeITType, nil); err != nil {
		t.Errorf("IT_TYPE: %v", err)
	}
	if err := checkParent(CodeTypeITType, l1); err == nil {
		t.Error("IT_TYPE with parent should fail")
	}
	if err := checkParent("FOO", nil); err == nil {
		t.Error("unknown code type should fail")
	}
	if err := checkParent("FOO", l1); err == nil {
		t.Error("unknown code type under L1 should fail")
	}
}

func TestValidCodeType(t *testing.T) {
	for _, ct := range []string{CodeTypeL1, CodeTypeL2, CodeTypeITType} {
		if !validCodeType(ct) {
			t.Errorf("%s should be valid", ct)
		}
	}
	for _, ct := range []string{"", "FOO", "budget_l1", "BUDGET_L3"} {
		if validCodeType(ct) {
			t.Errorf("%q should be rejected", ct)
		}
	}
}

func TestBuildCodeTree(t *testing.T) {
	codes := []BudgetCode{
		{CodeID: "BUDGET_L2_002", CodeType: CodeTypeL2, ParentCodeID: strPtr("BUDGET_L1_001"), SortOrder: 2},
		{CodeID: "BUDGET_L1_002", CodeType: CodeTypeL1},
		{CodeID: "BUDGET_L2_001", CodeType: CodeTypeL2, ParentCodeID: strPtr("BUDGET_L1_001"), SortOrder: 1},
		{CodeID: "BUDGET_L1_001", CodeType: CodeTypeL1},
		{CodeID: "BUDGET_L2_003", CodeType: CodeTypeL2, ParentCodeID: strPtr("BUDGET_L1_404")},
	}

	tree := buildCodeTree(codes)
	if len(tree) != 3 {
		t.Fatalf("expected 3 roots (two L1 and one orphan), got %d", len(tree))
	}
	if tree[0].CodeID != "BUDGET_L1_001" {
		t.Fatalf("unexpected first root %s", tree[0].CodeID)
	}
	kids := tree[0].Children
	if len(kids) != 2 || kids[0].CodeID != "BUDGET_L2_001" || kids[1].CodeID != "BUDGET_L2_002" {
		t.Errorf("children not nested in sort order: %+v", kids)
	}
	if len(tree[1].Children) != 0 {
		t.Errorf("BUDGET_L1_002 should have no children")
	}
}

func TestBuildCodeTreeSelfParent(t *testing.T) {
	tree := buildCodeTree([]BudgetCode{{CodeID: "X", ParentCodeID: strPtr("X")}})
	if len(tree) != 1 || len(tree[0].Children) != 0 {
		t.Errorf("self-referencing code should be a childless root: %+v", tree)
	}
}

func TestVendorInput(t *testing.T) {
	v, err := vendorInput{VendorName: " Acme ", BizRegNo: "123-45-67890"}.vendor()
	if err != nil {
		t.Fatalf("vendor: %v", err)
	}
	if v.BizRegNo != "1234567890" || v.VendorName != "Acme" || !v.IsActive {
		t.Errorf("unexpected vendor %+v", v)
	}

	if _, err := (vendorInput{VendorName: "Acme"}).vendor(); err == nil {
		t.Error("missing biz_reg_no should fail")
	}
	if _, err := (vendorInput{VendorName: "Acme", BizRegNo: "1", VendorID: strings.Repeat("V", 21)}).vendor(); err == nil {
		t.Error("overlong vendor_id should fail")
	}
}

func TestShortID(t *testing.T) {
	id := shortID(serviceIDPrefix)
	if !strings.HasPrefix(id, "SVC-") || len(id) != 8 {
		t.Errorf("unexpected id %q", id)
	}
	if strings.ToUpper(id) != id {
		t.Errorf("id should be upper case: %q", id)
	}
}

func TestSplitNamesAndFlags(t *testing.T) {
	got := splitNames("Kim, Lee; Park /  ,")
	if strings.Join(got, "|") != "Kim|Lee|Park" {
		t.Errorf("splitNames = %v", got)
	}
	for _, v := range []string{"Y", "y", "예", "TRUE", "1"} {
		if !parseFlag(v) {
			t.Errorf("parseFlag(%q) should be true", v)
		}
	}
	if parseFlag("N") || parseFlag("") {
		t.Error("N and blank are false")
	}
}

func TestPage(t *testing.T) {
	skip, limit, err := page(httptest.NewRequest("GET", "/?skip=20&limit=5000", nil))
	if err != nil || skip != 20 || limit != maxLimit {
		t.Errorf("page = %d, %d, %v", skip, limit, err)
	}
	if _, _, err := page(httptest.NewRequest("GET", "/?limit=0", nil)); err == nil {
		t.Error("limit=0 should fail")
	}
	_, limit, _ = page(httptest.NewRequest("GET", "/", nil))
	if limit != defaultLimit {
		t.Errorf("default limit = %d", limit)
	}
}

func TestOptionalString(t *testing.T) {
	var p budgetCodePatch
	if err := json.Unmarshal([]byte(`{"name":"x"}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.ParentCodeID.Set {
		t.Error("absent field must not be Set")
	}

	p = budgetCodePatch{}
	json.Unmarshal([]byte(`{"parent_code_id":null}`), &p)
	if !p.ParentCodeID.Set || p.ParentCodeID.Value != nil {
		t.Errorf("explicit null: %+v", p.ParentCodeID)
	}

	p = budgetCodePatch{}
	json.Unmarshal([]byte(`{"parent_code_id":"BUDGET_L1_001"}`), &p)
	if p.ParentCodeID.Value == nil || *p.ParentCodeID.Value != "BUDGET_L1_001" {
		t.Errorf("value: %+v", p.ParentCodeID)
	}
}
