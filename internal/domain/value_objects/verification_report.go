package valueobjects

import "fmt"

// VerificationReport maps logical table names to the row counts observed
// during verification. Counts are informational only.
type VerificationReport struct {
	tables []string
	counts map[string]int64
}

func NewVerificationReport() VerificationReport {
	return VerificationReport{counts: map[string]int64{}}
}

// Record returns a new report with the table count added or replaced.
func (r VerificationReport) Record(table string, rows int64) (VerificationReport, error) {
	if table == "" {
		return r, fmt.Errorf("table name is required")
	}
	if rows < 0 {
		return r, fmt.Errorf("row count for %s must not be negative, got %d", table, rows)
	}

	next := VerificationReport{
		tables: append([]string(nil), r.tables...),
		counts: make(map[string]int64, len(r.counts)+1),
	}
	for name, count := range r.counts {
		next.counts[name] = count
	}
	if _, exists := next.counts[table]; !exists {
		next.tables = append(next.tables, table)
	}
	next.counts[table] = rows

	return next, nil
}

func (r VerificationReport) Count(table string) (int64, bool) {
	count, ok := r.counts[table]
	return count, ok
}

// Tables returns table names in the order they were recorded.
func (r VerificationReport) Tables() []string {
	return append([]string(nil), r.tables...)
}

func (r VerificationReport) Len() int {
	return len(r.tables)
}

func (r VerificationReport) TotalRows() int64 {
	var total int64
	for _, count := range r.counts {
		total += count
	}

	return total
}
