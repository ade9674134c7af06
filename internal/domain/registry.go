package domain

// OtherVariant is the catch-all bucket. Its style colours any variant the
// registry does not know.
const OtherVariant = "other"

const defaultOtherColor = "#595959"

// VariantStyle is the display configuration for one variant.
type VariantStyle struct {
	Variant     string
	Lineage     string
	Color       string
	DisplayName string
}

// Registry maps variant identifiers to their display configuration. A Registry
// is immutable once built; With* methods return modified copies.
type Registry struct {
	order  []string
	styles map[string]VariantStyle
}

// NewRegistry builds a registry from the given entries. Later entries for the
// same variant replace earlier ones. An "other" entry is added if missing.
func NewRegistry(entries ...VariantStyle) *Registry {
	r := &Registry{styles: make(map[string]VariantStyle, len(entries)+1)}
	for _, e := range entries {
		if _, seen := r.styles[e.Variant]; !seen {
			r.order = append(r.order, e.Variant)
		}
		if e.DisplayName == "" {
			e.DisplayName = e.Variant
		}
		r.styles[e.Variant] = e
	}
	if _, ok := r.styles[OtherVariant]; !ok {
		r.order = append(r.order, OtherVariant)
		r.styles[OtherVariant] = VariantStyle{
			Variant:     OtherVariant,
			Lineage:     OtherVariant,
			Color:       defaultOtherColor,
			DisplayName: OtherVariant,
		}
	}
	return r
}

// Lookup returns the style for variant. Unknown variants get the "other"
// colour and lineage, keep their own id as display name, and report ok=false.
func (r *Registry) Lookup(variant string) (VariantStyle, bool) {
	if s, ok := r.styles[variant]; ok {
		return s, true
	}
	other := r.styles[OtherVariant]
	return VariantStyle{
		Variant:     variant,
		Lineage:     other.Lineage,
		Color:       other.Color,
		DisplayName: variant,
	}, false
}

// Variants lists the registered variants in registration order.
func (r *Registry) Variants() []string {
	return append([]string(nil), r.order...)
}

// WithColors returns a copy of r whose colours are overridden by pairs of
// [variant, colour]. Variants not yet registered are added with their own id
// as display and lineage name.
func (r *Registry) WithColors(pairs [][2]string) *Registry {
	entries := make([]VariantStyle, 0, len(r.order)+len(pairs))
	for _, v := range r.order {
		entries = append(entries, r.styles[v])
	}
	idx := make(map[string]int, len(entries))
	for i, e := range entries {
		idx[e.Variant] = i
	}
	for _, p := range pairs {
		variant, color := p[0], p[1]
		if variant == "" || color == "" {
			continue
		}
		if i, ok := idx[variant]; ok {
			entries[i].Color = color
			continue
		}
		idx[variant] = len(entries)
		entries = append(entries, VariantStyle{Variant: variant, Lineage: variant, Color: color})
	}
	return NewRegistry(entries...)
}

// DefaultRegistry is the registry for the nextstrain clades model.
func DefaultRegistry() *Registry {
	return CladesRegistry()
}

// CladesRegistry holds the colours and display names for the current
// nextstrain clade model runs.
func CladesRegistry() *Registry {
	return NewRegistry(
		VariantStyle{Variant: OtherVariant, Lineage: OtherVariant, Color: "#595959", DisplayName: "other"},
		VariantStyle{Variant: "22B (Omicron)", Lineage: "BA.5", Color: "#416DCE", DisplayName: "22B (BA.5)"},
		VariantStyle{Variant: "22D (Omicron)", Lineage: "BA.2.75", Color: "#59A3AA", DisplayName: "22D (BA.2.75)"},
		VariantStyle{Variant: "22E (Omicron)", Lineage: "BQ.1", Color: "#84BA6F", DisplayName: "22E (BQ.1)"},
		VariantStyle{Variant: "22F (Omicron)", Lineage: "XBB", Color: "#BBBC49", DisplayName: "22F (XBB)"},
		VariantStyle{Variant: "23A (Omicron)", Lineage: "XBB.1.5", Color: "#E29D39", DisplayName: "23A (XBB.1.5)"},
		VariantStyle{Variant: "23B (Omicron)", Lineage: "XBB.1.16", Color: "#E1502A", DisplayName: "23B (XBB.1.16)"},
	)
}

// LegacyCladesRegistry is the clade → lineage → colour mapping used by the
// renewal-model charts.
func LegacyCladesRegistry() *Registry {
	lineageColors := map[string]string{
		OtherVariant: "#737373",
		"BA.2":       "#BDBDBD",
		"BA.4":       "#447CCD",
		"BA.5":       "#5EA9A1",
		"BA.2.12.1":  "#8ABB6A",
		"BA.2.75":    "#BEBB48",
		"BQ.1":       "#E29E39",
		"XBB":        "#E2562B",
	}
	cladeToLineage := [][2]string{
		{OtherVariant, OtherVariant},
		{"21L (Omicron)", "BA.2"},
		{"22A (Omicron)", "BA.4"},
		{"22B (Omicron)", "BA.5"},
		{"22C (Omicron)", "BA.2.12.1"},
		{"22D (Omicron)", "BA.2.75"},
		{"22E (Omicron)", "BQ.1"},
		{"22F (Omicron)", "XBB"},
	}
	entries := make([]VariantStyle, 0, len(cladeToLineage))
	for _, cl := range cladeToLineage {
		entries = append(entries, VariantStyle{
			Variant: cl[0],
			Lineage: cl[1],
			Color:   lineageColors[cl[1]],
		})
	}
	return NewRegistry(entries...)
}

// RegistryByName resolves a named registry. ok is false for unknown names.
func RegistryByName(name string) (*Registry, bool) {
	switch name {
	case "clades", "mlr_clades":
		return CladesRegistry(), true
	case "legacy_clades", "renewal":
		return LegacyCladesRegistry(), true
	case "lineages", "mlr_lineages":
		// Lineage runs carry their colours in metadata.variantColors.
		return NewRegistry(), true
	default:
		return nil, false
	}
}
