package authz

// defaultCostFields are the monetary fields redacted for principals
// without cost visibility.
var defaultCostFields = []string{
	"budget",
	"unit_cost",
	"total_cost",
	"actual_cost",
	"labor_cost",
	"material_cost",
	"budget_display",
}

// CostFields returns the default monetary field names.
func CostFields() []string {
	return append([]string(nil), defaultCostFields...)
}

// FilterCostFields returns a copy of rows with monetary fields nulled when
// the set lacks cost visibility. Redaction applies at every nesting level,
// so monetary fields inside embedded objects and arrays are nulled too.
// The caller's rows are never mutated, and filtering an already filtered
// result is a no-op. Extra field names extend the default cost field set.
func FilterCostFields(rows []map[string]any, set PermissionSet, extra ...string) []map[string]any {
	var redact map[string]struct{}
	if !set.CanViewCosts {
		redact = make(map[string]struct{}, len(defaultCostFields)+len(extra))
		for _, f := range defaultCostFields {
			redact[f] = struct{}{}
		}
		for _, f := range extra {
			redact[f] = struct{}{}
		}
	}

	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = copyRow(row, redact)
	}
	return out
}

func copyRow(row map[string]any, redact map[string]struct{}) map[string]any {
	clean := make(map[string]any, len(row))
	for k, v := range row {
		if _, sensitive := redact[k]; sensitive {
			clean[k] = nil
			continue
		}
		clean[k] = copyValue(v, redact)
	}
	return clean
}

func copyValue(v any, redact map[string]struct{}) any {
	switch val := v.(type) {
	case map[string]any:
		return copyRow(val, redact)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = copyValue(item, redact)
		}
		return items
	default:
		return v
	}
}
