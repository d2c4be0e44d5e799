// Package fiscal handles fiscal months (YYYYMM) and fiscal years. The
// fiscal year runs January through December.
package fiscal

import (
	"fmt"
	"strconv"
	"time"

	"github.com/itopex/opex-backend/internal/apperr"
)

// Month is a fiscal month in YYYYMM form.
type Month string

// Parse validates s as YYYYMM.
func Parse(s string) (Month, error) {
	if len(s) != 6 {
		return "", apperr.ErrInvalidMonth.WithMessage("invalid month %q, expected YYYYMM", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return "", apperr.ErrInvalidMonth.WithMessage("invalid month %q, expected YYYYMM", s)
	}
	year, mon := n/100, n%100
	if year < 2000 || year > 2999 || mon < 1 || mon > 12 {
		return "", apperr.ErrInvalidMonth.WithMessage("invalid month %q, expected YYYYMM", s)
	}
	return Month(s), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Month {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Of builds the month for year and month number 1-12.
func Of(year, month int) Month {
	return Month(fmt.Sprintf("%04d%02d", year, month))
}

// FromTime returns the month containing t.
func FromTime(t time.Time) Month {
	return Of(t.Year(), int(t.Month()))
}

func (m Month) String() string { return string(m) }

func (m Month) Year() int {
	n, _ := strconv.Atoi(string(m))
	return n / 100
}

func (m Month) Number() int {
	n, _ := strconv.Atoi(string(m))
	return n % 100
}

// Label renders the month for display, e.g. "2025-01".
func (m Month) Label() string {
	return fmt.Sprintf("%04d-%02d", m.Year(), m.Number())
}

// MonthsOf returns the twelve months of a fiscal year in order.
func MonthsOf(year int) []Month {
	months := make([]Month, 0, 12)
	for i := 1; i <= 12; i++ {
		months = append(months, Of(year, i))
	}
	return months
}

// Years lists the selectable fiscal years: minYear through the current year
// plus two.
func Years(now time.Time, minYear int) []int {
	last := now.Year() + 2
	years := make([]int, 0, last-minYear+1)
	for y := minYear; y <= last; y++ {
		years = append(years, y)
	}
	return years
}
