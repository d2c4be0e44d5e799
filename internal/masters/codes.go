package masters

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/itopex/opex-backend/internal/apperr"
)

// nextCodeID returns the id following the highest "<TYPE>_<NNN>" among ids.
func nextCodeID(codeType string, ids []string) string {
	prefix := strings.ToUpper(codeType) + "_"
	highest := 0
	for _, id := range ids {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
		if err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, highest+1)
}

func validCodeType(codeType string) bool {
	switch codeType {
	case CodeTypeL1, CodeTypeL2, CodeTypeITType:
		return true
	}
	return false
}

// checkParent enforces the two-level budget hierarchy: L1 and IT_TYPE codes
// are roots and every L2 code sits under an L1 code.
func checkParent(codeType string, parent *BudgetCode) error {
	switch codeType {
	case CodeTypeL1, CodeTypeITType:
		if parent != nil {
			return apperr.Validation("%s codes cannot have a parent", codeType)
		}
	case CodeTypeL2:
		if parent == nil {
			return apperr.Validation("%s codes need a %s parent", CodeTypeL2, CodeTypeL1)
		}
		if parent.CodeType != CodeTypeL1 {
			return apperr.Validation("parent %s is %s, expected %s", parent.CodeID, parent.CodeType, CodeTypeL1)
		}
	default:
		return apperr.Validation("unknown code_type %q, expected %s, %s or %s", codeType, CodeTypeL1, CodeTypeL2, CodeTypeITType)
	}
	return nil
}

// buildCodeTree nests codes under their parents. Codes whose parent is
// missing are returned as roots. Siblings keep sort order, then id order.
func buildCodeTree(codes []BudgetCode) []BudgetCode {
	byID := make(map[string]bool, len(codes))
	for _, c := range codes {
		byID[c.CodeID] = true
	}

	children := make(map[string][]BudgetCode)
	var roots []BudgetCode
	for _, c := range codes {
		if c.ParentCodeID != nil && byID[*c.ParentCodeID] && *c.ParentCodeID != c.CodeID {
			children[*c.ParentCodeID] = append(children[*c.ParentCodeID], c)
		} else {
			roots = append(roots, c)
		}
	}

	var attach func(nodes []BudgetCode, depth int) []BudgetCode
	attach = func(nodes []BudgetCode, depth int) []BudgetCode {
		sortCodes(nodes)
		for i := range nodes {
			if depth < 8 {
				nodes[i].Children = attach(children[nodes[i].CodeID], depth+1)
			}
		}
		return nodes
	}
	return attach(roots, 0)
}

func sortCodes(codes []BudgetCode) {
	sort.SliceStable(codes, func(i, j int) bool {
		if codes[i].SortOrder != codes[j].SortOrder {
			return codes[i].SortOrder < codes[j].SortOrder
		}
		return codes[i].CodeID < codes[j].CodeID
	})
}
