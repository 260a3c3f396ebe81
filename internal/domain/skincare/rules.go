package skincare

import "github.com/yanqian/zephyre/internal/domain/weather"

// tipPool contributes take entries per plan, chosen by the engine's picker.
type tipPool struct {
	items []string
	take  int
}

type rule struct {
	products   map[Category]string
	tips       tipPool
	lifestyle  []string
	warnings   []string
	urgentCare []string
}

type skinRule struct {
	name    string
	matches []string
	rule
}

type weatherRule struct {
	applies func(weather.Observation) bool
	rule
}

type conditionRule struct {
	keywords []string
	rule
}

type impactRule struct {
	applies func(weather.Observation) bool
	text    string
}

var (
	baselineMorning = []string{"Gentle cleanser", "Hydrating toner", "Serum", "Moisturizer", "Sunscreen SPF 30+"}
	baselineEvening = []string{"Cleansing oil", "Gentle cleanser", "Treatment serum", "Night moisturizer"}

	baselineProducts = map[Category]string{
		Cleanser:    "Gentle foaming cleanser",
		Toner:       "Alcohol-free hydrating toner",
		Serum:       "Hyaluronic acid serum",
		Moisturizer: "Lightweight daily moisturizer",
		Sunscreen:   "Broad-spectrum SPF 50",
		Treatment:   "Hydrating night serum",
		Exfoliant:   "Gentle lactic acid exfoliant (1-2x weekly)",
		Mask:        "Hydrating sheet mask",
	}

	baselineTips = []string{
		"Stay hydrated throughout the day",
		"Use lukewarm water for cleansing",
		"Apply sunscreen 20 minutes before sun exposure",
	}

	baselineLifestyle = []string{
		"Sleep 7-9 hours a night",
		"Eat a diet rich in antioxidants and omega-3s",
		"Change your pillowcase at least once a week",
	}
)

// skinRules are evaluated in priority order; only the first match applies.
var skinRules = []skinRule{
	{
		name:    "oily_acne",
		matches: []string{"oily", "acne", "pimple"},
		rule: rule{
			products: map[Category]string{
				Cleanser:    "Salicylic acid cleanser",
				Toner:       "BHA clarifying toner",
				Moisturizer: "Oil-free gel moisturizer",
				Treatment:   "Benzoyl peroxide spot treatment (2.5%)",
				Mask:        "Kaolin clay mask",
			},
			tips: tipPool{take: 2, items: []string{
				"Use clay masks 1-2 times per week",
				"Choose non-comedogenic products",
				"Avoid touching your face during the day",
				"Cleanse twice a day, not more",
			}},
			lifestyle: []string{
				"Limit high-glycemic and dairy-heavy foods",
				"Wipe your phone screen regularly",
			},
		},
	},
	{
		name:    "dry_dehydrated",
		matches: []string{"dry", "dehydrated"},
		rule: rule{
			products: map[Category]string{
				Cleanser:    "Cream-based gentle cleanser",
				Serum:       "Hyaluronic acid and glycerin serum",
				Moisturizer: "Rich hydrating cream with ceramides",
				Exfoliant:   "PHA exfoliant (once weekly)",
				Mask:        "Overnight hydrating mask",
			},
			tips: tipPool{take: 2, items: []string{
				"Use a humidifier at night",
				"Apply moisturizer to damp skin",
				"Avoid long hot showers",
				"Layer a hydrating toner before serum",
			}},
			lifestyle: []string{
				"Drink at least 8 glasses of water a day",
				"Include healthy fats like avocado and nuts",
			},
			warnings: []string{
				"Avoid foaming or high-pH cleansers that strip the skin barrier",
			},
		},
	},
	{
		name:    "sensitive",
		matches: []string{"sensitive", "rosacea", "allergy"},
		rule: rule{
			products: map[Category]string{
				Cleanser:  "Fragrance-free gentle cleanser",
				Toner:     "Centella calming toner",
				Sunscreen: "Mineral sunscreen SPF 50 (zinc oxide)",
				Treatment: "Soothing aloe vera gel",
				Exfoliant: "Enzyme exfoliant (monthly at most)",
			},
			tips: tipPool{take: 2, items: []string{
				"Patch test new products before use",
				"Introduce one new product at a time",
				"Pat skin dry instead of rubbing",
				"Keep your routine short and simple",
			}},
			lifestyle: []string{
				"Limit spicy food, alcohol and hot drinks that trigger flushing",
				"Manage stress with regular breaks",
			},
			warnings: []string{
				"Avoid fragrance, essential oils and alcohol-based products",
				"Stop any product that causes burning or stinging",
			},
			urgentCare: []string{
				"See a dermatologist if you develop swelling, hives or blistering after using a product",
			},
		},
	},
	{
		name:    "mature_sun_damaged",
		matches: []string{"mature", "sun_damaged"},
		rule: rule{
			products: map[Category]string{
				Serum:       "Vitamin C antioxidant serum",
				Moisturizer: "Peptide-rich firming cream",
				Sunscreen:   "Broad-spectrum SPF 50 with antioxidants",
				Treatment:   "Retinol night treatment (start at 0.25%)",
				Exfoliant:   "Glycolic acid exfoliant (1-2x weekly)",
			},
			tips: tipPool{take: 2, items: []string{
				"Apply retinol only at night",
				"Wear sunscreen even on cloudy days",
				"Extend your routine to the neck and chest",
				"Apply eye cream with your ring finger",
			}},
			lifestyle: []string{
				"Avoid smoking and second-hand smoke",
				"Wear a wide-brimmed hat outdoors",
			},
			warnings: []string{
				"Retinol increases sun sensitivity; always follow with sunscreen",
			},
			urgentCare: []string{
				"Have a dermatologist check any new, changing or bleeding spots",
			},
		},
	},
	{
		name:    "pigmentation",
		matches: []string{"hyperpigment", "uneven"},
		rule: rule{
			products: map[Category]string{
				Serum:     "Vitamin C brightening serum",
				Sunscreen: "Tinted mineral SPF 50 with iron oxides",
				Treatment: "Niacinamide and tranexamic acid treatment",
				Exfoliant: "AHA exfoliant (twice weekly)",
				Mask:      "Brightening mask",
			},
			tips: tipPool{take: 2, items: []string{
				"Reapply sunscreen every 2 hours outdoors",
				"Expect pigment to fade over 8-12 weeks",
				"Avoid picking at blemishes to prevent marks",
				"Use brightening ingredients consistently",
			}},
			lifestyle: []string{
				"Eat vitamin C rich fruits and vegetables",
			},
			warnings: []string{
				"Avoid layering multiple strong acids in one routine",
			},
		},
	},
	{
		name:    "eczema",
		matches: []string{"eczema"},
		rule: rule{
			products: map[Category]string{
				Cleanser:    "Soap-free cleansing cream",
				Toner:       "Skip toner during flare-ups",
				Moisturizer: "Thick occlusive ointment-based moisturizer",
				Treatment:   "Colloidal oatmeal barrier cream",
				Exfoliant:   "Avoid exfoliation during flare-ups",
				Mask:        "Colloidal oatmeal soothing mask",
			},
			tips: tipPool{take: 2, items: []string{
				"Moisturize within 3 minutes after bathing",
				"Keep showers short and lukewarm",
				"Wear soft, breathable cotton fabrics",
				"Track and avoid your personal triggers",
			}},
			lifestyle: []string{
				"Use fragrance-free laundry detergent",
				"Keep fingernails short to limit scratching damage",
			},
			warnings: []string{
				"Avoid fragrance, wool and harsh soaps",
			},
			urgentCare: []string{
				"Consult a dermatologist if patches crack, ooze, bleed or look infected",
			},
		},
	},
	{
		name:    "combination",
		matches: []string{"combination"},
		rule: rule{
			products: map[Category]string{
				Cleanser:    "Balancing gel cleanser",
				Toner:       "Balancing toner",
				Moisturizer: "Lightweight balancing lotion",
				Mask:        "Multi-mask: clay on the T-zone, hydrating on the cheeks",
			},
			tips: tipPool{take: 2, items: []string{
				"Treat the T-zone and cheeks differently",
				"Use blotting papers on the T-zone",
				"Adjust products with the seasons",
			}},
			lifestyle: []string{
				"Keep a consistent routine for at least 4 weeks",
			},
		},
	},
}

var humidityRules = []weatherRule{
	{
		applies: func(o weather.Observation) bool { return o.Humidity > 70 },
		rule: rule{
			products: map[Category]string{Moisturizer: "Lightweight gel moisturizer"},
			tips: tipPool{take: 2, items: []string{
				"Blot excess oil during the day",
				"Use a mattifying primer",
				"Apply thinner layers of product",
			}},
		},
	},
	{
		applies: func(o weather.Observation) bool { return o.Humidity < 40 },
		rule: rule{
			products: map[Category]string{Moisturizer: "Rich hydrating cream"},
			tips: tipPool{take: 2, items: []string{
				"Use a facial mist throughout the day",
				"Seal in hydration with a facial oil at night",
				"Run a humidifier indoors",
			}},
		},
	},
}

var temperatureRules = []weatherRule{
	{
		applies: func(o weather.Observation) bool { return o.Temperature > 25 },
		rule: rule{
			products: map[Category]string{Sunscreen: "Water-resistant SPF 50+"},
			tips: tipPool{take: 2, items: []string{
				"Seek shade during peak sun hours (10am-4pm)",
				"Reapply sunscreen every 2 hours",
				"Keep a cooling facial mist handy",
			}},
			lifestyle: []string{
				"Wear a hat and UV-protective sunglasses outdoors",
				"Drink extra water in hot weather",
			},
		},
	},
	{
		applies: func(o weather.Observation) bool { return o.Temperature < 10 },
		rule: rule{
			products: map[Category]string{Treatment: "Barrier repair balm with ceramides"},
			tips: tipPool{take: 2, items: []string{
				"Cover exposed skin with a scarf in cold air",
				"Apply a nourishing lip balm before heading into the cold",
				"Switch to a richer night cream during cold weather",
			}},
		},
	},
}

var conditionRules = []conditionRule{
	{
		keywords: []string{"rain", "humid"},
		rule: rule{
			tips: tipPool{take: 2, items: []string{
				"Use water-resistant sunscreen and makeup",
				"Pat skin dry after getting caught in the rain",
				"Carry blotting papers on damp days",
			}},
		},
	},
	{
		keywords: []string{"wind"},
		rule: rule{
			tips: tipPool{take: 2, items: []string{
				"Apply a barrier cream before going out in the wind",
				"Protect lips with an SPF lip balm",
				"Wrap a scarf over your cheeks on gusty days",
			}},
			warnings: []string{
				"Strong wind can cause windburn and irritation; cover exposed skin",
			},
		},
	},
}

// impactRules use cold < 15, unlike the cold product rule at < 10.
var impactRules = []impactRule{
	{applies: func(o weather.Observation) bool { return o.Humidity > 70 }, text: "High humidity may increase oil production"},
	{applies: func(o weather.Observation) bool { return o.Humidity < 40 }, text: "Low humidity may cause skin dehydration"},
	{applies: func(o weather.Observation) bool { return o.Temperature > 25 }, text: "Hot weather increases UV exposure risk"},
	{applies: func(o weather.Observation) bool { return o.Temperature < 15 }, text: "Cold weather may cause skin dryness"},
}
