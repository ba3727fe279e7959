package schema

// Description is a serializable view of a registry.
type Description struct {
	Fingerprint string            `json:"fingerprint"`
	Types       []TypeDescription `json:"types"`
}

// TypeDescription describes one mapped type.
type TypeDescription struct {
	Name      string             `json:"name"`
	FieldName string             `json:"field_name,omitempty"`
	Table     string             `json:"table"`
	Where     string             `json:"where,omitempty"`
	OrderBy   []string           `json:"order_by,omitempty"`
	Limit     uint64             `json:"limit,omitempty"`
	Fields    []FieldDescription `json:"fields"`
}

// FieldDescription describes one mapped field. Kind is "column" or "join".
type FieldDescription struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Column string `json:"column,omitempty"`
	Table  string `json:"table,omitempty"`
	Alias  string `json:"alias,omitempty"`
	Target string `json:"target,omitempty"`
	On     string `json:"on,omitempty"`
}

// Describe renders the registry in type name order, fields sorted by name.
func Describe(r *Registry) Description {
	desc := Description{Fingerprint: r.fingerprint}
	for _, name := range r.typeNames {
		tm := r.types[name]
		td := TypeDescription{
			Name:      tm.name,
			FieldName: tm.fieldName,
			Table:     tm.table,
			Where:     conditionSource(tm.where),
			Limit:     tm.limit,
		}
		for _, term := range tm.orderBy {
			td.OrderBy = append(td.OrderBy, term.Column+" "+term.Direction())
		}
		for _, fieldName := range tm.fieldNames {
			switch f := tm.fields[fieldName].(type) {
			case ColumnField:
				td.Fields = append(td.Fields, FieldDescription{
					Name:   f.Name,
					Kind:   "column",
					Column: f.Column,
					Table:  f.Table,
					Alias:  f.Alias,
				})
			case JoinField:
				td.Fields = append(td.Fields, FieldDescription{
					Name:   f.Name,
					Kind:   "join",
					Table:  f.Table,
					Target: f.TargetType,
					On:     conditionSource(f.On),
				})
			}
		}
		desc.Types = append(desc.Types, td)
	}
	return desc
}
