package source

import (
	"fmt"
	"sort"
	"strings"
)

// FieldMap maps one county's GIS REST schema onto the canonical parcel
// schema. The mapping is a closed struct, not an open key-value bag: every
// canonical field is named here and an empty string means the source does not
// publish it. A missing required mapping is a startup error, never a runtime
// null.
type FieldMap struct {
	// BaseURL is the feature-layer endpoint, without the trailing /query.
	BaseURL string
	// Where optionally restricts rows on shared statewide layers.
	Where string
	// SequenceField is the monotonically increasing record identifier used
	// as the resume cursor.
	SequenceField string

	// PIN is the only required attribute mapping.
	PIN string

	Address       string
	City          string
	ZipCode       string
	LandValue     string
	BuildingValue string
	TotalValue    string
	UseCode       string
	UseDecode     string
	LandCode      string
	BillingClass  string
	DeedDate      string
	SaleDate      string
	SalePrice     string
	OwnerName     string
	OwnerMailing  string
	Acreage       string
}

// Validate checks the mappings a fetch cannot run without.
func (f FieldMap) Validate() error {
	if f.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if f.SequenceField == "" {
		return fmt.Errorf("sequence field is required")
	}
	if f.PIN == "" {
		return fmt.Errorf("PIN field mapping is required")
	}
	return nil
}

// registry holds the per-county adapters. Counties on the shared NC OneMap
// layer carry a Where filter; the rest query dedicated county layers.
var registry = map[string]FieldMap{
	"wake": {
		BaseURL:       "https://maps.wakegov.com/arcgis/rest/services/Property/Parcels/FeatureServer/0",
		SequenceField: "OBJECTID",
		PIN:           "PIN_NUM",
		Address:       "SITE_ADDRESS",
		City:          "CITY_DECODE",
		ZipCode:       "ZIPNUM",
		LandValue:     "LAND_VAL",
		BuildingValue: "BLDG_VAL",
		TotalValue:    "TOTAL_VALUE_ASSD",
		UseCode:       "TYPE_AND_USE",
		UseDecode:     "TYPE_USE_DECODE",
		LandCode:      "LAND_CODE",
		BillingClass:  "BILLING_CLASS_DECODE",
		DeedDate:      "DEED_DATE",
		SaleDate:      "SALE_DATE",
		SalePrice:     "TOTSALPRICE",
		OwnerName:     "OWNER",
		OwnerMailing:  "ADDR1",
		Acreage:       "REID_ACREAG",
	},
	"mecklenburg": {
		BaseURL:       "https://mcmap.org/rest/services/CountyData/Parcels/MapServer/0",
		SequenceField: "OBJECTID",
		PIN:           "PARCEL_ID",
		Address:       "SITE_ADDR",
		LandValue:     "LAND_VALUE",
		BuildingValue: "BLDG_VALUE",
		TotalValue:    "TOTAL_VALUE",
		UseCode:       "USE_CODE",
		DeedDate:      "DEED_DATE",
		SaleDate:      "SALE_DATE",
		SalePrice:     "SALE_PRICE",
		OwnerName:     "OWNER_NAME",
		Acreage:       "ACREAGE",
	},
	"durham": {
		BaseURL:       "https://services.nconemap.gov/secure/rest/services/NC1Map_Parcels/FeatureServer/0",
		Where:         "COUNTY = 'DURHAM'",
		SequenceField: "OBJECTID",
		PIN:           "PIN",
		LandValue:     "LAND_VALUE",
		TotalValue:    "TOTAL_VALUE",
		DeedDate:      "DEED_DATE",
		OwnerName:     "OWNER_NAME",
	},
	"orange": {
		BaseURL:       "https://services.nconemap.gov/secure/rest/services/NC1Map_Parcels/FeatureServer/0",
		Where:         "COUNTY = 'ORANGE'",
		SequenceField: "OBJECTID",
		PIN:           "PIN",
		LandValue:     "LAND_VALUE",
		TotalValue:    "TOTAL_VALUE",
		DeedDate:      "DEED_DATE",
		OwnerName:     "OWNER_NAME",
	},
	"chatham": {
		BaseURL:       "https://services.nconemap.gov/secure/rest/services/NC1Map_Parcels/FeatureServer/0",
		Where:         "COUNTY = 'CHATHAM'",
		SequenceField: "OBJECTID",
		PIN:           "PIN",
		LandValue:     "LAND_VALUE",
		TotalValue:    "TOTAL_VALUE",
		DeedDate:      "DEED_DATE",
		OwnerName:     "OWNER_NAME",
	},
}

// Adapter returns the field map for a county, or an error if the county is
// not supported. County matching is case-insensitive.
func Adapter(county string) (FieldMap, error) {
	fm, ok := registry[strings.ToLower(county)]
	if !ok {
		return FieldMap{}, fmt.Errorf("county %q is not supported", county)
	}
	return fm, nil
}

// Supported returns the sorted list of supported county names.
func Supported() []string {
	counties := make([]string, 0, len(registry))
	for name := range registry {
		counties = append(counties, name)
	}
	sort.Strings(counties)
	return counties
}

// ValidateRegistry checks every registered adapter at startup so a broken
// mapping is a boot failure rather than a mid-ingestion surprise.
func ValidateRegistry() error {
	for name, fm := range registry {
		if err := fm.Validate(); err != nil {
			return fmt.Errorf("invalid adapter for county %s: %w", name, err)
		}
	}
	return nil
}
