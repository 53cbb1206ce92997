package listview

// FilterDescriptor describes one active filter for a chip or summary line.
type FilterDescriptor struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ActiveFilters returns a descriptor per non-default filter, in declaration
// order.
func ActiveFilters(state State, spec *Spec) []FilterDescriptor {
	var out []FilterDescriptor
	for _, def := range spec.Filters {
		value, ok := state.Filters[def.Key]
		if !ok || filterValuesEqual(value, def.DefaultValue()) {
			continue
		}
		out = append(out, FilterDescriptor{
			Key:   def.Key,
			Label: def.DisplayLabel() + ": " + value.Label(),
		})
	}
	return out
}
