// Package masters manages the reference data projects point at: vendors,
// IT services, G/L accounts, cost centers and budget classification codes.
package masters

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/itopex/opex-backend/internal/apperr"
)

type Handler struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewHandler(gdb *gorm.DB, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{db: gdb, log: log}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apperr.Write(w, r, h.log, err)
}

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// page reads skip/limit query parameters.
func page(r *http.Request) (skip, limit int, err error) {
	q := r.URL.Query()
	limit = defaultLimit
	if v := q.Get("skip"); v != "" {
		if skip, err = strconv.Atoi(v); err != nil || skip < 0 {
			return 0, 0, apperr.Validation("invalid skip %q", v)
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			return 0, 0, apperr.Validation("invalid limit %q", v)
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return skip, limit, nil
}

// shortID returns prefix followed by four upper-case hex characters.
func shortID(prefix string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
}

// uniqueID draws short ids until one is unused in table.
func uniqueID(tx *gorm.DB, table, column, prefix string) (string, error) {
	for i := 0; i < 8; i++ {
		id := shortID(prefix)
		var n int64
		if err := tx.Table(table).Where(column+" = ?", id).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return id, nil
		}
	}
	return "", errors.New("could not allocate a free id")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// parseFlag reads Y/N style spreadsheet flags.
func parseFlag(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "Y", "YES", "TRUE", "1", "O", "예":
		return true
	}
	return false
}

// splitNames splits a cell holding several names separated by commas,
// semicolons or slashes.
func splitNames(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ';' || r == '/' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func overwriteParam(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("overwrite"))
	return v
}

// optionalString tells an absent JSON field from an explicit null.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}
