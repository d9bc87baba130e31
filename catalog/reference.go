/*
reference.go - Versioned reference procedure data

PURPOSE:
  The standard CDT subset shipped with the engine. Fees are reference
  (UCR-style) amounts; deployments load their own fee schedules through
  catalog.New with the same entry shape.

VERSIONING:
  The version tag identifies the reference-data release. Catalogs are
  replaced wholesale when reference data changes, never patched.

SEE ALSO:
  - catalog.go: Catalog type and lookup
*/
package catalog

import "github.com/shopspring/decimal"

// ReferenceVersion identifies the bundled reference data release.
const ReferenceVersion = "cdt-2025.1"

func fee(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Fallback coverage fractions per category, used only for plan-free
// quick estimates.
var (
	fallbackDiagnostic  = fee("0.80")
	fallbackPreventive  = fee("0.80")
	fallbackBasic       = fee("0.50")
	fallbackMajor       = fee("0.40")
	fallbackOrthodontic = fee("0.35")
)

// Reference returns the bundled reference catalog.
func Reference() *Catalog {
	return New(ReferenceVersion, referenceCodes())
}

func referenceCodes() []ProcedureCode {
	return []ProcedureCode{
		// Diagnostic
		{Code: "D0120", Description: "Periodic oral evaluation", Category: Diagnostic,
			BaseFee: fee("52.00"), FallbackFraction: fallbackDiagnostic},
		{Code: "D0140", Description: "Limited oral evaluation, problem focused", Category: Diagnostic,
			BaseFee: fee("75.00"), FallbackFraction: fallbackDiagnostic},
		{Code: "D0210", Description: "Intraoral complete series of radiographic images", Category: Diagnostic,
			BaseFee: fee("135.00"), FallbackFraction: fallbackDiagnostic},
		{Code: "D0220", Description: "Intraoral periapical first radiographic image", Category: Diagnostic,
			BaseFee: fee("30.00"), FallbackFraction: fallbackDiagnostic},
		{Code: "D0274", Description: "Bitewings, four radiographic images", Category: Diagnostic,
			BaseFee: fee("65.00"), FallbackFraction: fallbackDiagnostic},
		{Code: "D0330", Description: "Panoramic radiographic image", Category: Diagnostic,
			BaseFee: fee("110.00"), FallbackFraction: fallbackDiagnostic},

		// Preventive
		{Code: "D1110", Description: "Prophylaxis, adult", Category: Preventive,
			BaseFee: fee("89.00"), FallbackFraction: fallbackPreventive},
		{Code: "D1120", Description: "Prophylaxis, child", Category: Preventive,
			BaseFee: fee("65.00"), FallbackFraction: fallbackPreventive},
		{Code: "D1206", Description: "Topical application of fluoride varnish", Category: Preventive,
			BaseFee: fee("38.00"), FallbackFraction: fallbackPreventive},
		{Code: "D1351", Description: "Sealant, per tooth", Category: Preventive,
			BaseFee: fee("48.00"), RequiresTooth: true, FallbackFraction: fallbackPreventive},

		// Restorative
		{Code: "D2140", Description: "Amalgam, one surface", Category: Restorative,
			BaseFee: fee("115.00"), RequiresTooth: true, RequiresSurface: true, MaxSurfaces: 1,
			FallbackFraction: fallbackBasic},
		{Code: "D2150", Description: "Amalgam, two surfaces", Category: Restorative,
			BaseFee: fee("145.00"), RequiresTooth: true, RequiresSurface: true, MaxSurfaces: 2,
			FallbackFraction: fallbackBasic},
		{Code: "D2160", Description: "Amalgam, three surfaces", Category: Restorative,
			BaseFee: fee("175.00"), RequiresTooth: true, RequiresSurface: true, MaxSurfaces: 3,
			FallbackFraction: fallbackBasic},
		{Code: "D2161", Description: "Amalgam, four or more surfaces", Category: Restorative,
			BaseFee: fee("195.00"), RequiresTooth: true, RequiresSurface: true, MaxSurfaces: 5,
			FallbackFraction: fallbackBasic},
		{Code: "D2330", Description: "Resin-based composite, one surface, anterior", Category: Restorative,
			BaseFee: fee("130.00"), RequiresTooth: true, RequiresSurface: true, MaxSurfaces: 4,
			FallbackFraction: fallbackBasic},
		{Code: "D2391", Description: "Resin-based composite, one surface, posterior", Category: Restorative,
			BaseFee: fee("150.00"), RequiresTooth: true, RequiresSurface: true, MaxSurfaces: 4,
			FallbackFraction: fallbackBasic},
		{Code: "D2392", Description: "Resin-based composite, two surfaces, posterior", Category: Restorative,
			BaseFee: fee("190.00"), RequiresTooth: true, RequiresSurface: true, MaxSurfaces: 2,
			FallbackFraction: fallbackBasic},
		{Code: "D2393", Description: "Resin-based composite, three surfaces, posterior", Category: Restorative,
			BaseFee: fee("225.00"), RequiresTooth: true, RequiresSurface: true, MaxSurfaces: 3,
			FallbackFraction: fallbackBasic},
		{Code: "D2394", Description: "Resin-based composite, four or more surfaces, posterior", Category: Restorative,
			BaseFee: fee("260.00"), RequiresTooth: true, RequiresSurface: true, MaxSurfaces: 5,
			FallbackFraction: fallbackBasic},
		{Code: "D2740", Description: "Crown, porcelain/ceramic", Category: Restorative,
			BaseFee: fee("1200.00"), RequiresTooth: true, FallbackFraction: fallbackMajor},
		{Code: "D2750", Description: "Crown, porcelain fused to high noble metal", Category: Restorative,
			BaseFee: fee("1150.00"), RequiresTooth: true, FallbackFraction: fallbackMajor},
		{Code: "D2950", Description: "Core buildup, including any pins", Category: Restorative,
			BaseFee: fee("320.00"), RequiresTooth: true, FallbackFraction: fallbackBasic},

		// Endodontic
		{Code: "D3310", Description: "Endodontic therapy, anterior tooth", Category: Endodontic,
			BaseFee: fee("700.00"), RequiresTooth: true, FallbackFraction: fallbackBasic},
		{Code: "D3320", Description: "Endodontic therapy, premolar tooth", Category: Endodontic,
			BaseFee: fee("850.00"), RequiresTooth: true, FallbackFraction: fallbackBasic},
		{Code: "D3330", Description: "Endodontic therapy, molar tooth", Category: Endodontic,
			BaseFee: fee("1050.00"), RequiresTooth: true, FallbackFraction: fallbackBasic},

		// Periodontic
		{Code: "D4341", Description: "Periodontal scaling and root planing, four or more teeth per quadrant", Category: Periodontic,
			BaseFee: fee("275.00"), RequiresQuadrant: true, FallbackFraction: fallbackBasic},
		{Code: "D4910", Description: "Periodontal maintenance", Category: Periodontic,
			BaseFee: fee("135.00"), FallbackFraction: fallbackBasic},

		// Prosthodontic
		{Code: "D5110", Description: "Complete denture, maxillary", Category: Prosthodontic,
			BaseFee: fee("1800.00"), FallbackFraction: fallbackMajor},
		{Code: "D5120", Description: "Complete denture, mandibular", Category: Prosthodontic,
			BaseFee: fee("1800.00"), FallbackFraction: fallbackMajor},
		{Code: "D5213", Description: "Partial denture, maxillary, cast metal framework", Category: Prosthodontic,
			BaseFee: fee("1650.00"), FallbackFraction: fallbackMajor},

		// Oral surgery
		{Code: "D7140", Description: "Extraction, erupted tooth or exposed root", Category: OralSurgery,
			BaseFee: fee("180.00"), RequiresTooth: true, FallbackFraction: fallbackBasic},
		{Code: "D7210", Description: "Extraction, erupted tooth requiring removal of bone", Category: OralSurgery,
			BaseFee: fee("310.00"), RequiresTooth: true, FallbackFraction: fallbackBasic},

		// Orthodontic
		{Code: "D8080", Description: "Comprehensive orthodontic treatment, adolescent", Category: Orthodontic,
			BaseFee: fee("5200.00"), FallbackFraction: fallbackOrthodontic},
		{Code: "D8090", Description: "Comprehensive orthodontic treatment, adult", Category: Orthodontic,
			BaseFee: fee("5600.00"), FallbackFraction: fallbackOrthodontic},
	}
}
