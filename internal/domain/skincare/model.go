package skincare

import (
	"strings"

	"github.com/yanqian/zephyre/internal/domain/weather"
)

// SkinType is a classifier label. Unknown labels are valid input and fall through to the baseline.
type SkinType string

const (
	Normal         SkinType = "normal"
	Oily           SkinType = "oily"
	Dry            SkinType = "dry"
	Combination    SkinType = "combination"
	Sensitive      SkinType = "sensitive"
	AcneProne      SkinType = "acne_prone"
	Dehydrated     SkinType = "dehydrated"
	MatureSkin     SkinType = "mature_skin"
	Hyperpigmented SkinType = "hyperpigmented_skin"
	RednessRosacea SkinType = "redness_rosacea"
	Textured       SkinType = "textured"
	DullSkin       SkinType = "dull_skin"
	Eczema         SkinType = "eczema"
	AllergyProne   SkinType = "allergy_prone"
	SunDamaged     SkinType = "sun_damaged"
	UnevenTone     SkinType = "uneven_tone"
	PimpleProne    SkinType = "pimple_prone"
	OpenPores      SkinType = "open_pores"
	HealthySkin    SkinType = "healthy_skin"
)

var allSkinTypes = []SkinType{
	Normal, Oily, Dry, Combination, Sensitive, AcneProne,
	Dehydrated, MatureSkin, Hyperpigmented, RednessRosacea,
	Textured, DullSkin, Eczema, AllergyProne, SunDamaged,
	UnevenTone, PimpleProne, OpenPores, HealthySkin,
}

// AllSkinTypes returns the closed set of labels the classifier can emit.
func AllSkinTypes() []SkinType {
	return append([]SkinType(nil), allSkinTypes...)
}

// IsKnown reports whether t belongs to the classifier label set.
func (t SkinType) IsKnown() bool {
	for _, known := range allSkinTypes {
		if known == t {
			return true
		}
	}
	return false
}

// Label renders the type for display, e.g. "acne prone".
func (t SkinType) Label() string {
	return strings.ReplaceAll(string(t), "_", " ")
}

// Category names a product slot in the plan.
type Category string

const (
	Cleanser    Category = "cleanser"
	Toner       Category = "toner"
	Serum       Category = "serum"
	Moisturizer Category = "moisturizer"
	Sunscreen   Category = "sunscreen"
	Treatment   Category = "treatment"
	Exfoliant   Category = "exfoliant"
	Mask        Category = "mask"
)

// Categories lists every product slot in display order.
func Categories() []Category {
	return []Category{Cleanser, Toner, Serum, Moisturizer, Sunscreen, Treatment, Exfoliant, Mask}
}

// Plan is the structured skincare advice returned to clients.
type Plan struct {
	MorningSteps   []string            `json:"morningSteps"`
	EveningSteps   []string            `json:"eveningSteps"`
	Products       map[Category]string `json:"products"`
	Tips           []string            `json:"tips"`
	Lifestyle      []string            `json:"lifestyle"`
	Warnings       []string            `json:"warnings"`
	UrgentCare     []string            `json:"urgentCare"`
	WeatherImpacts []string            `json:"weatherImpacts"`
}

// Request is the payload accepted by the plan endpoint.
type Request struct {
	SkinType string              `json:"skinType"`
	Weather  weather.Observation `json:"weather"`
}
