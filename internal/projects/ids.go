package projects

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/itopex/opex-backend/internal/config"
)

var deptCodePattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

func validDeptCode(dept string) bool { return deptCodePattern.MatchString(dept) }

// nextProjectID returns "<dept>-<NNN>" numbered after the highest existing
// id of the department.
func nextProjectID(dept string, ids []string) string {
	prefix := dept + "-"
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

// DeptResolver derives the managing department from a cost center name.
type DeptResolver struct {
	rules    []config.DeptRule
	fallback string
}

func NewDeptResolver(rules []config.DeptRule, fallback string) DeptResolver {
	return DeptResolver{rules: rules, fallback: fallback}
}

// Resolve returns the department of the first rule whose match text occurs in
// ccName, compared case-insensitively. It returns "" when nothing applies.
func (d DeptResolver) Resolve(ccName string) string {
	name := strings.ToUpper(strings.TrimSpace(ccName))
	if name == "" {
		return ""
	}
	for _, rule := range d.rules {
		if strings.Contains(name, strings.ToUpper(rule.Match)) {
			return rule.Dept
		}
	}
	return d.fallback
}
