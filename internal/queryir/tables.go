package queryir

// Table names of the run log.
const (
	TableRuns        = "activity_runs"
	TableProjections = "projection_results"
	TableSchedule    = "recompute_schedule"
)

// Table describes the queryable shape of one table.
type Table struct {
	Name    string
	Columns []string
	// IntColumns are the columns Compare may order against.
	IntColumns []string
}

var tables = map[string]Table{
	TableRuns: {
		Name:       TableRuns,
		Columns:    []string{"id", "seq", "focus_oid", "outcome", "run_status", "message", "next_recompute", "engine_version", "ir_version"},
		IntColumns: []string{"seq", "next_recompute"},
	},
	TableProjections: {
		Name:       TableProjections,
		Columns:    []string{"run_id", "position", "construction_id", "projection_oid", "outcome", "run_status", "message", "outputs", "full_shadow_loads", "next_recompute"},
		IntColumns: []string{"position", "full_shadow_loads", "next_recompute"},
	},
	TableSchedule: {
		Name:       TableSchedule,
		Columns:    []string{"focus_oid", "construction_id", "construction_hash", "next_recompute", "run_id"},
		IntColumns: []string{"next_recompute"},
	},
}

// LookupTable returns the table with the given name.
func LookupTable(name string) (Table, bool) {
	t, ok := tables[name]
	return t, ok
}

// HasColumn reports whether the table has the column.
func (t Table) HasColumn(name string) bool {
	return contains(t.Columns, name)
}

// IsIntColumn reports whether the column holds integers.
func (t Table) IsIntColumn(name string) bool {
	return contains(t.IntColumns, name)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
