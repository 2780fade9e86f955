package models

// RecordCategory is the fixed record taxonomy shared with record storage.
// The consent engine only consumes it for category scoping; record contents
// live with the record store.
type RecordCategory string

const (
	CategoryGeneral      RecordCategory = "general"
	CategoryCardiology   RecordCategory = "cardiology"
	CategoryRadiology    RecordCategory = "radiology"
	CategoryLaboratory   RecordCategory = "laboratory"
	CategoryPrescription RecordCategory = "prescription"
	CategoryImmunization RecordCategory = "immunization"
	CategoryMentalHealth RecordCategory = "mental-health"
	CategorySurgical     RecordCategory = "surgical"
)

// KnownCategories lists every category in the taxonomy
var KnownCategories = []RecordCategory{
	CategoryGeneral,
	CategoryCardiology,
	CategoryRadiology,
	CategoryLaboratory,
	CategoryPrescription,
	CategoryImmunization,
	CategoryMentalHealth,
	CategorySurgical,
}

// IsKnownCategory reports whether c belongs to the taxonomy
func IsKnownCategory(c RecordCategory) bool {
	for _, k := range KnownCategories {
		if k == c {
			return true
		}
	}
	return false
}
