package importer

import "fmt"

// BulkResult summarizes a bulk import. Duplicates lists the keys that were
// skipped because they already existed; Invalid lists rows that lacked
// required values.
type BulkResult struct {
	TotalCount     int      `json:"total_count"`
	SuccessCount   int      `json:"success_count"`
	DuplicateCount int      `json:"duplicate_count"`
	Duplicates     []string `json:"duplicates"`
	InvalidCount   int      `json:"invalid_count"`
	Invalid        []string `json:"invalid"`
	Message        string   `json:"message"`
}

func (r *BulkResult) Created() { r.SuccessCount++ }

func (r *BulkResult) Duplicate(key string) {
	r.DuplicateCount++
	r.Duplicates = append(r.Duplicates, key)
}

// Reject records a row that was skipped as invalid.
func (r *BulkResult) Reject(line int, reason string) {
	r.InvalidCount++
	r.Invalid = append(r.Invalid, fmt.Sprintf("line %d: %s", line, reason))
}

// Finish fills Message and guarantees non-nil lists.
func (r *BulkResult) Finish() {
	if r.Duplicates == nil {
		r.Duplicates = []string{}
	}
	if r.Invalid == nil {
		r.Invalid = []string{}
	}
	r.Message = fmt.Sprintf("%d of %d rows imported, %d duplicates and %d invalid rows skipped",
		r.SuccessCount, r.TotalCount, r.DuplicateCount, r.InvalidCount)
}
