// Package normalize maps raw provider payload trees into the canonical
// PropertyRecord. Each record field carries its own ordered list of
// candidate paths, so provider shape drift is absorbed by path lists
// instead of per-provider branching.
package normalize

import (
	"propertygate/internal/fieldpath"
	"propertygate/internal/models"
)

// Confidence scores by resolution path
const (
	ConfidenceSingle   = 1.0 // direct single match from the REST provider
	ConfidenceResolved = 0.9 // multi-match settled by the resolver
	ConfidenceLegacy   = 0.8 // legacy async provider result
)

// fieldPaths maps each canonical field to its candidate paths across both
// providers' shapes, in priority order. The REST provider nests everything
// under PropertyProfile; the legacy provider under Result.Property or a
// bare Property root. Brief variants come before generic ones where
// providers populate them inconsistently.
var fieldPaths = map[string][]string{
	"apn": {
		"PropertyProfile.APN",
		"PropertyProfile.FormattedAPN",
		"Result.Property.APN",
		"Property.APN",
	},
	"fips": {
		"PropertyProfile.FIPS",
		"PropertyProfile.FIPSCode",
		"Result.Property.FIPS",
		"Property.FIPS",
	},
	"address": {
		"PropertyProfile.SiteAddress",
		"PropertyProfile.PropertyAddress",
		"Result.Property.SiteAddress",
		"Property.Address",
	},
	"city": {
		"PropertyProfile.SiteCity",
		"Result.Property.SiteCity",
		"Property.City",
	},
	"state": {
		"PropertyProfile.SiteState",
		"Result.Property.SiteState",
		"Property.State",
	},
	"zip": {
		"PropertyProfile.SiteZip",
		"Result.Property.SiteZip",
		"Property.Zip",
	},
	"county": {
		"PropertyProfile.County",
		"PropertyProfile.SiteCounty",
		"Result.Property.County",
		"Property.County",
	},
	"legal_description": {
		"PropertyProfile.LegalBriefDescription",
		"PropertyProfile.LegalDescription",
		"Result.Property.LegalBriefDescription",
		"Result.Property.LegalDescription",
		"Property.LegalBriefDescription",
		"Property.LegalDescription",
	},
	"subdivision": {
		"PropertyProfile.Subdivision",
		"PropertyProfile.LegalSubdivision",
		"Result.Property.Subdivision",
		"Property.Subdivision",
	},
	"lot": {
		"PropertyProfile.LotNumber",
		"PropertyProfile.LegalLot",
		"Result.Property.LotNumber",
		"Property.Lot",
	},
	"block": {
		"PropertyProfile.BlockNumber",
		"PropertyProfile.LegalBlock",
		"Result.Property.BlockNumber",
		"Property.Block",
	},
	"primary_owner": {
		"PropertyProfile.PrimaryOwnerName",
		"PropertyProfile.OwnerName",
		"Result.Property.PrimaryOwnerName",
		"Property.PrimaryOwnerName",
		"Property.OwnerName",
	},
	"secondary_owner": {
		"PropertyProfile.SecondaryOwnerName",
		"Result.Property.SecondaryOwnerName",
		"Property.SecondaryOwnerName",
	},
	"vesting_type": {
		"PropertyProfile.VestingType",
		"PropertyProfile.OwnerVestingType",
		"Result.Property.VestingType",
		"Property.VestingType",
	},
	"assessed_value": {
		"PropertyProfile.AssessedValue",
		"PropertyProfile.TotalAssessedValue",
		"Result.Property.AssessedValue",
		"Property.AssessedValue",
	},
	"tax_amount": {
		"PropertyProfile.TaxAmount",
		"Result.Property.TaxAmount",
		"Property.TaxAmount",
	},
	"tax_year": {
		"PropertyProfile.TaxYear",
		"Result.Property.TaxYear",
		"Property.TaxYear",
	},
}

// salePaths locates the sale history list in either provider's tree
var salePaths = []string{
	"PropertyProfile.SaleHistory",
	"PropertyProfile.Sales",
	"Result.Property.SaleHistory",
	"Property.SaleHistory",
}

// Record builds a PropertyRecord from a raw provider tree. The source tag
// and confidence score describe how the record was obtained, not what it
// contains; callers pick them per resolution path.
func Record(tree map[string]interface{}, source string, confidence float64) *models.PropertyRecord {
	field := func(name string) string {
		return fieldpath.Extract(tree, fieldPaths[name]...)
	}

	return &models.PropertyRecord{
		APN:              field("apn"),
		FIPS:             field("fips"),
		Address:          field("address"),
		City:             field("city"),
		State:            field("state"),
		Zip:              field("zip"),
		County:           field("county"),
		LegalDescription: field("legal_description"),
		Subdivision:      field("subdivision"),
		Lot:              field("lot"),
		Block:            field("block"),
		PrimaryOwner:     field("primary_owner"),
		SecondaryOwner:   field("secondary_owner"),
		VestingType:      field("vesting_type"),
		AssessedValue:    field("assessed_value"),
		TaxAmount:        field("tax_amount"),
		TaxYear:          field("tax_year"),
		SaleHistory:      saleHistory(tree),
		ConfidenceScore:  confidence,
		EnrichmentSource: source,
	}
}

// Usable reports whether a record carries enough substance to return and
// cache. A tree that extracted neither a parcel number nor an address
// produced nothing worth keeping.
func Usable(rec *models.PropertyRecord) bool {
	return rec != nil && (rec.APN != "" || rec.Address != "")
}

func saleHistory(tree map[string]interface{}) []models.SaleRecord {
	node := fieldpath.ExtractAny(tree, salePaths...)
	if node == nil {
		return nil
	}

	// Single-element lists decode as a bare map in XML trees
	var items []interface{}
	switch v := node.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		items = []interface{}{v}
	default:
		return nil
	}

	var sales []models.SaleRecord
	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		sale := models.SaleRecord{
			Date:   fieldpath.Extract(entry, "SaleDate", "RecordingDate", "Date"),
			Price:  fieldpath.Extract(entry, "SalePrice", "Price", "Amount"),
			DocNum: fieldpath.Extract(entry, "DocumentNumber", "DocNum"),
		}
		if sale.Date != "" || sale.Price != "" || sale.DocNum != "" {
			sales = append(sales, sale)
		}
	}
	return sales
}
