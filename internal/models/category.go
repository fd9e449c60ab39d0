// internal/models/category.go
package models

import "fmt"

// ProblemCategory is the closed set of merchant problem areas.
type ProblemCategory string

const (
	CategoryAdmin           ProblemCategory = "admin"
	CategoryAnalytics       ProblemCategory = "analytics"
	CategoryMarketing       ProblemCategory = "marketing"
	CategoryLoyalty         ProblemCategory = "loyalty"
	CategoryPayments        ProblemCategory = "payments"
	CategoryFulfillment     ProblemCategory = "fulfillment"
	CategoryInventory       ProblemCategory = "inventory"
	CategoryCustomerSupport ProblemCategory = "customer_support"
	CategoryDesign          ProblemCategory = "design"
	CategorySEO             ProblemCategory = "seo"
	CategoryIntegrations    ProblemCategory = "integrations"
	CategoryPerformance     ProblemCategory = "performance"
	CategoryPricing         ProblemCategory = "pricing"
	CategoryOther           ProblemCategory = "other"
)

// AllCategories lists every valid category in declaration order.
var AllCategories = []ProblemCategory{
	CategoryAdmin,
	CategoryAnalytics,
	CategoryMarketing,
	CategoryLoyalty,
	CategoryPayments,
	CategoryFulfillment,
	CategoryInventory,
	CategoryCustomerSupport,
	CategoryDesign,
	CategorySEO,
	CategoryIntegrations,
	CategoryPerformance,
	CategoryPricing,
	CategoryOther,
}

var categorySet = func() map[ProblemCategory]struct{} {
	m := make(map[ProblemCategory]struct{}, len(AllCategories))
	for _, c := range AllCategories {
		m[c] = struct{}{}
	}
	return m
}()

// ParseCategory maps a raw string to a ProblemCategory. Unknown values are
// an error; callers decide whether that fails the item or drops it.
func ParseCategory(s string) (ProblemCategory, error) {
	c := ProblemCategory(s)
	if _, ok := categorySet[c]; !ok {
		return "", fmt.Errorf("unknown problem category %q", s)
	}
	return c, nil
}

// IsValid reports whether the category is one of the known values.
func (c ProblemCategory) IsValid() bool {
	_, ok := categorySet[c]
	return ok
}

func (c ProblemCategory) String() string {
	return string(c)
}
