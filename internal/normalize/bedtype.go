package normalize

import "strings"

// Canonical bed types. This set is frozen; four bedrooms and above collapse
// into ThreePlusBR.
const (
	Studio      = "Studio"
	Convertible = "Convertible"
	OneBR       = "1BR"
	OneBRDen    = "1BR+Den"
	TwoBR       = "2BR"
	ThreePlusBR = "3BR+"
)

// bedTypeAliases maps lowercased, trimmed scraper variants to the canonical
// set. Grown one variant at a time as new platforms surfaced; keep sorted
// within each group.
var bedTypeAliases = map[string]string{
	// Studio
	"0 bed":            Studio,
	"0 bedroom":        Studio,
	"0br":              Studio,
	"eff":              Studio,
	"efficiency":       Studio,
	"s":                Studio,
	"studio":           Studio,
	"studio apartment": Studio,
	// Convertible
	"conv":              Convertible,
	"convertible":       Convertible,
	"convertible 1 bed": Convertible,
	"jr 1 bedroom":      Convertible,
	"jr one bedroom":    Convertible,
	"junior 1 bedroom":  Convertible,
	"junior 1br":        Convertible,
	// 1BR
	"1 bed":       OneBR,
	"1 bedroom":   OneBR,
	"1 br":        OneBR,
	"1bd":         OneBR,
	"1br":         OneBR,
	"1x1":         OneBR,
	"one bedroom": OneBR,
	// 1BR+Den
	"1 bed + den":        OneBRDen,
	"1 bed den":          OneBRDen,
	"1 bedroom + den":    OneBRDen,
	"1 bedroom with den": OneBRDen,
	"1br+den":            OneBRDen,
	"1br den":            OneBRDen,
	// 2BR
	"2 bed":       TwoBR,
	"2 bedroom":   TwoBR,
	"2 br":        TwoBR,
	"2bd":         TwoBR,
	"2br":         TwoBR,
	"2x2":         TwoBR,
	"two bedroom": TwoBR,
	// 3BR+
	"3 bed":         ThreePlusBR,
	"3 bedroom":     ThreePlusBR,
	"3br":           ThreePlusBR,
	"3br+":          ThreePlusBR,
	"3x2":           ThreePlusBR,
	"4 bed":         ThreePlusBR,
	"4 bedroom":     ThreePlusBR,
	"4br":           ThreePlusBR,
	"5 bedroom":     ThreePlusBR,
	"5br":           ThreePlusBR,
	"three bedroom": ThreePlusBR,
}

// canonicalBedType looks up the raw value in the alias table. Unknown values
// pass through with their original casing and canonical=false.
func canonicalBedType(raw string) (bedType string, canonical bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := bedTypeAliases[key]; ok {
		return mapped, true
	}
	return strings.TrimSpace(raw), false
}
