package enums

import "fmt"

// ProductCategory represents the canonical product categories supported by the catalog.
type ProductCategory string

const (
	ProductCategoryBeverages    ProductCategory = "beverages"
	ProductCategorySnacks       ProductCategory = "snacks"
	ProductCategoryDairy        ProductCategory = "dairy"
	ProductCategoryGrains       ProductCategory = "grains"
	ProductCategoryHousehold    ProductCategory = "household"
	ProductCategoryPersonalCare ProductCategory = "personal_care"
	ProductCategoryFrozen       ProductCategory = "frozen"
	ProductCategoryCondiments   ProductCategory = "condiments"
	ProductCategoryBakery       ProductCategory = "bakery"
	ProductCategoryCleaning     ProductCategory = "cleaning"
)

var validProductCategories = []ProductCategory{
	ProductCategoryBeverages,
	ProductCategorySnacks,
	ProductCategoryDairy,
	ProductCategoryGrains,
	ProductCategoryHousehold,
	ProductCategoryPersonalCare,
	ProductCategoryFrozen,
	ProductCategoryCondiments,
	ProductCategoryBakery,
	ProductCategoryCleaning,
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ProductCategory.
func (c ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}

// ProductUnit defines the available unit types for wholesale pricing.
type ProductUnit string

const (
	ProductUnitUnit   ProductUnit = "unit"
	ProductUnitCase   ProductUnit = "case"
	ProductUnitCarton ProductUnit = "carton"
	ProductUnitDozen  ProductUnit = "dozen"
	ProductUnitKg     ProductUnit = "kg"
	ProductUnitLitre  ProductUnit = "litre"
)

var validProductUnits = []ProductUnit{
	ProductUnitUnit,
	ProductUnitCase,
	ProductUnitCarton,
	ProductUnitDozen,
	ProductUnitKg,
	ProductUnitLitre,
}

// String implements fmt.Stringer.
func (u ProductUnit) String() string {
	return string(u)
}

// IsValid reports whether the value matches a known ProductUnit.
func (u ProductUnit) IsValid() bool {
	for _, candidate := range validProductUnits {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseProductUnit converts raw input into a ProductUnit.
func ParseProductUnit(value string) (ProductUnit, error) {
	for _, candidate := range validProductUnits {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product unit %q", value)
}
