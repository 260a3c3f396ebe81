package skincare

import (
	"strings"

	"github.com/yanqian/zephyre/internal/domain/weather"
	"github.com/yanqian/zephyre/pkg/util"
)

// TipPicker chooses n entries from a rule's tip pool.
type TipPicker interface {
	Pick(pool []string, n int) []string
}

// FirstTips picks the first n entries in table order.
type FirstTips struct{}

func (FirstTips) Pick(pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	return append([]string(nil), pool[:n]...)
}

// ShuffledTips picks n entries after a Fisher-Yates shuffle driven by rng.
type ShuffledTips struct {
	rng util.Intner
}

func (p ShuffledTips) Pick(pool []string, n int) []string {
	shuffled := append([]string(nil), pool...)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := p.rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}

// Engine turns a skin type and a weather observation into a Plan.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	picker TipPicker
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRandomTips varies tip selection using rng. Cardinality is unchanged.
func WithRandomTips(rng util.Intner) Option {
	return func(e *Engine) {
		e.picker = ShuffledTips{rng: rng}
	}
}

// NewEngine builds an engine with deterministic tip selection unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{picker: FirstTips{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = NewEngine()

// GeneratePlan runs the deterministic default engine.
func GeneratePlan(skinType string, obs weather.Observation) Plan {
	return defaultEngine.GeneratePlan(skinType, obs)
}

// GeneratePlan layers skin type, humidity, temperature and condition rules over the baseline.
// It never fails: unknown labels and out-of-range numbers fall through to defaults.
func (e *Engine) GeneratePlan(skinType string, obs weather.Observation) Plan {
	plan := Baseline()

	if sr, ok := matchSkinRule(skinType); ok {
		e.apply(&plan, sr.rule)
	}
	for _, wr := range humidityRules {
		if wr.applies(obs) {
			e.apply(&plan, wr.rule)
		}
	}
	for _, wr := range temperatureRules {
		if wr.applies(obs) {
			e.apply(&plan, wr.rule)
		}
	}
	condition := strings.ToLower(obs.Condition)
	for _, cr := range conditionRules {
		if containsAny(condition, cr.keywords) {
			e.apply(&plan, cr.rule)
		}
	}

	plan.WeatherImpacts = WeatherImpacts(obs)
	return plan
}

// Baseline returns a fresh copy of the default plan before any rule runs.
func Baseline() Plan {
	categories := Categories()
	products := make(map[Category]string, len(categories))
	for _, category := range categories {
		products[category] = baselineProducts[category]
	}
	return Plan{
		MorningSteps:   append([]string(nil), baselineMorning...),
		EveningSteps:   append([]string(nil), baselineEvening...),
		Products:       products,
		Tips:           append([]string(nil), baselineTips...),
		Lifestyle:      append([]string(nil), baselineLifestyle...),
		Warnings:       []string{},
		UrgentCare:     []string{},
		WeatherImpacts: []string{},
	}
}

// WeatherImpacts summarizes how the observation affects skin, one line per triggered threshold.
func WeatherImpacts(obs weather.Observation) []string {
	impacts := []string{}
	for _, ir := range impactRules {
		if ir.applies(obs) {
			impacts = append(impacts, ir.text)
		}
	}
	return impacts
}

// ruleGroup reports the name of the skin-type rule that applies to skinType, if any.
func ruleGroup(skinType string) (string, bool) {
	sr, ok := matchSkinRule(skinType)
	if !ok {
		return "", false
	}
	return sr.name, true
}

func (e *Engine) apply(plan *Plan, r rule) {
	for category, product := range r.products {
		plan.Products[category] = product
	}
	if r.tips.take > 0 {
		plan.Tips = append(plan.Tips, e.picker.Pick(r.tips.items, r.tips.take)...)
	}
	plan.Lifestyle = append(plan.Lifestyle, r.lifestyle...)
	plan.Warnings = append(plan.Warnings, r.warnings...)
	plan.UrgentCare = append(plan.UrgentCare, r.urgentCare...)
}

func matchSkinRule(skinType string) (skinRule, bool) {
	label := strings.ToLower(strings.TrimSpace(skinType))
	if label == "" {
		return skinRule{}, false
	}
	for _, sr := range skinRules {
		if containsAny(label, sr.matches) {
			return sr, true
		}
	}
	return skinRule{}, false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
