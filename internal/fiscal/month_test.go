package fiscal

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/itopex/opex-backend/internal/apperr"
)

func TestParse(t *testing.T) {
	valid := []string{"202501", "202512", "200001", "299912"}
	for _, s := range valid {
		if _, err := Parse(s); err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", s, err)
		}
	}

	invalid := []string{"", "2025", "2025-01", "202500", "202513", "199912", "abcdef", "-20251"}
	for _, s := range invalid {
		_, err := Parse(s)
		if !errors.Is(err, apperr.ErrInvalidMonth) {
			t.Errorf("Parse(%q) expected ErrInvalidMonth, got %v", s, err)
		}
	}
}

func TestMonthParts(t *testing.T) {
	m := MustParse("202503")
	if m.Year() != 2025 || m.Number() != 3 {
		t.Fatalf("got year %d month %d", m.Year(), m.Number())
	}
	if m.Label() != "2025-03" {
		t.Errorf("unexpected label %q", m.Label())
	}
	if got := FromTime(time.Date(2024, time.November, 30, 23, 0, 0, 0, time.UTC)); got != "202411" {
		t.Errorf("FromTime = %s", got)
	}
}

func TestMonthsOf(t *testing.T) {
	months := MonthsOf(2025)
	if len(months) != 12 {
		t.Fatalf("expected 12 months, got %d", len(months))
	}
	if months[0] != "202501" || months[11] != "202512" {
		t.Errorf("unexpected range %s..%s", months[0], months[11])
	}
}

func TestYearsEndpoint(t *testing.T) {
	now := func() time.Time { return time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC) }
	srv := httptest.NewServer(SetupRoutes(2022, now))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/years")
	if err != nil {
		t.Fatalf("GET /years: %v", err)
	}
	defer resp.Body.Close()

	var years []int
	if err := json.NewDecoder(resp.Body).Decode(&years); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []int{2022, 2023, 2024, 2025, 2026, 2027}
	if !reflect.DeepEqual(years, want) {
		t.Errorf("got %v, want %v", years, want)
	}
}
