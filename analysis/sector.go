package analysis

import (
	"strings"
	"unicode"
)

// Sector is the closed set of sector/industry classes the engine knows about.
// Free-text vendor labels are mapped onto it by ClassifySector.
type Sector string

const (
	SectorUnknown               Sector = ""
	SectorTechnology            Sector = "Technology"
	SectorSoftware              Sector = "Software"
	SectorHealthcare            Sector = "Healthcare"
	SectorBiotechnology         Sector = "Biotechnology"
	SectorFinance               Sector = "Finance"
	SectorBanking               Sector = "Banking"
	SectorInsurance             Sector = "Insurance"
	SectorUtilities             Sector = "Utilities"
	SectorEnergy                Sector = "Energy"
	SectorConsumerDiscretionary Sector = "Consumer Discretionary"
	SectorConsumerStaples       Sector = "Consumer Staples"
	SectorIndustrial            Sector = "Industrial"
	SectorMaterials             Sector = "Materials"
	SectorRealEstate            Sector = "Real Estate"
	SectorTelecommunications    Sector = "Telecommunications"
)

// DefaultSectorPE is the target P/E used when neither industry nor sector classify.
const DefaultSectorPE = 18.0

var sectorPE = map[Sector]float64{
	SectorTechnology:            28,
	SectorSoftware:              32,
	SectorHealthcare:            22,
	SectorBiotechnology:         25,
	SectorFinance:               12,
	SectorBanking:               11,
	SectorInsurance:             13,
	SectorUtilities:             16,
	SectorEnergy:                14,
	SectorConsumerDiscretionary: 20,
	SectorConsumerStaples:       18,
	SectorIndustrial:            16,
	SectorMaterials:             15,
	SectorRealEstate:            19,
	SectorTelecommunications:    14,
}

// sectorAliases maps normalized labels to a class by exact match. It covers
// the canonical names plus the labels used by Alpha Vantage, FMP and GICS.
var sectorAliases = map[string]Sector{
	"technology":                    SectorTechnology,
	"information technology":        SectorTechnology,
	"tech":                          SectorTechnology,
	"software":                      SectorSoftware,
	"software application":          SectorSoftware,
	"software infrastructure":       SectorSoftware,
	"services prepackaged software": SectorSoftware,
	"healthcare":                    SectorHealthcare,
	"health care":                   SectorHealthcare,
	"life sciences":                 SectorHealthcare,
	"biotechnology":                 SectorBiotechnology,
	"biotech":                       SectorBiotechnology,
	"finance":                       SectorFinance,
	"financial":                     SectorFinance,
	"financials":                    SectorFinance,
	"financial services":            SectorFinance,
	"banking":                       SectorBanking,
	"banks":                         SectorBanking,
	"insurance":                     SectorInsurance,
	"utilities":                     SectorUtilities,
	"energy":                        SectorEnergy,
	"energy transportation":         SectorEnergy,
	"consumer discretionary":        SectorConsumerDiscretionary,
	"consumer cyclical":             SectorConsumerDiscretionary,
	"trade services":                SectorConsumerDiscretionary,
	"consumer staples":              SectorConsumerStaples,
	"consumer defensive":            SectorConsumerStaples,
	"industrial":                    SectorIndustrial,
	"industrials":                   SectorIndustrial,
	"manufacturing":                 SectorIndustrial,
	"materials":                     SectorMaterials,
	"basic materials":               SectorMaterials,
	"real estate":                   SectorRealEstate,
	"real estate construction":      SectorRealEstate,
	"telecommunications":            SectorTelecommunications,
	"telecommunication services":    SectorTelecommunications,
	"communication services":        SectorTelecommunications,
	"telecom services":              SectorTelecommunications,
}

// sectorKeywords is consulted in order when no alias matches. More specific
// classes come first so "bank" wins over "financial" and "software" over
// "computer".
var sectorKeywords = []struct {
	keyword string
	sector  Sector
}{
	{"software", SectorSoftware},
	{"biotech", SectorBiotechnology},
	{"biological products", SectorBiotechnology},
	{"bank", SectorBanking},
	{"insurance", SectorInsurance},
	{"reit", SectorRealEstate},
	{"real estate", SectorRealEstate},
	{"utilit", SectorUtilities},
	{"electric services", SectorUtilities},
	{"semiconductor", SectorTechnology},
	{"computer", SectorTechnology},
	{"electronic", SectorTechnology},
	{"internet", SectorTechnology},
	{"pharmaceutical", SectorHealthcare},
	{"medical", SectorHealthcare},
	{"health", SectorHealthcare},
	{"financial", SectorFinance},
	{"capital markets", SectorFinance},
	{"asset management", SectorFinance},
	{"credit services", SectorFinance},
	{"oil", SectorEnergy},
	{"petroleum", SectorEnergy},
	{"telecom", SectorTelecommunications},
	{"beverages", SectorConsumerStaples},
	{"food", SectorConsumerStaples},
	{"household", SectorConsumerStaples},
	{"retail", SectorConsumerDiscretionary},
	{"restaurants", SectorConsumerDiscretionary},
	{"auto", SectorConsumerDiscretionary},
	{"chemical", SectorMaterials},
	{"steel", SectorMaterials},
	{"mining", SectorMaterials},
	{"metals", SectorMaterials},
	{"aerospace", SectorIndustrial},
	{"machinery", SectorIndustrial},
	{"industrial", SectorIndustrial},
}

// ClassifySector maps a free-text sector or industry label onto a Sector.
// Matching is case and punctuation insensitive; unrecognised or empty labels
// return SectorUnknown.
func ClassifySector(label string) Sector {
	norm := normalizeLabel(label)
	if norm == "" {
		return SectorUnknown
	}
	if s, ok := sectorAliases[norm]; ok {
		return s
	}
	for _, kw := range sectorKeywords {
		if strings.Contains(norm, kw.keyword) {
			return kw.sector
		}
	}
	return SectorUnknown
}

// SectorPE returns the target P/E for a class, or DefaultSectorPE.
func SectorPE(s Sector) float64 {
	if pe, ok := sectorPE[s]; ok {
		return pe
	}
	return DefaultSectorPE
}

// TargetPE resolves the peer P/E preferring industry over sector over the default.
func TargetPE(industry, sector Sector) float64 {
	if pe, ok := sectorPE[industry]; ok {
		return pe
	}
	if pe, ok := sectorPE[sector]; ok {
		return pe
	}
	return DefaultSectorPE
}

// IsGrowth reports whether the class is valued mainly on earnings.
func (s Sector) IsGrowth() bool {
	return s == SectorTechnology || s == SectorSoftware || s == SectorBiotechnology
}

// IsFinancial reports whether book value is the natural anchor for the class.
func (s Sector) IsFinancial() bool {
	return s == SectorFinance || s == SectorBanking
}

// HasFinancialLabel reports whether any label mentions a financial or banking
// business, regardless of the class the label resolves to.
func HasFinancialLabel(labels ...string) bool {
	for _, label := range labels {
		norm := normalizeLabel(label)
		if strings.Contains(norm, "financial") || strings.Contains(norm, "bank") {
			return true
		}
	}
	return false
}

func normalizeLabel(label string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return b.String()
}
