package session

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/yanqian/zephyre/internal/domain/skincare"
	"github.com/yanqian/zephyre/internal/domain/weather"
)

const (
	defaultProfileName      = "Demo User"
	defaultProfileSkinType  = skincare.Combination
	defaultProfileSkinScore = 78
)

var whitespace = regexp.MustCompile(`\s+`)

// Profile summarizes the session for the profile page.
type Profile struct {
	Name           string            `json:"name"`
	SkinType       skincare.SkinType `json:"currentSkinType"`
	SkinScore      int               `json:"skinScore"`
	HasAnalysis    bool              `json:"hasAnalysis"`
	Notes          string            `json:"latestNotes,omitempty"`
	WeatherSummary string            `json:"weatherSummary,omitempty"`
	ShareText      string            `json:"shareText"`
}

// BuildProfile derives the profile view, falling back to demo values when nothing is known yet.
func BuildProfile(state State) Profile {
	profile := Profile{
		Name:      state.UserName,
		SkinType:  defaultProfileSkinType,
		SkinScore: defaultProfileSkinScore,
	}
	if profile.Name == "" {
		profile.Name = defaultProfileName
	}
	if state.Analysis != nil {
		profile.SkinType = state.Analysis.SkinType
		profile.SkinScore = state.Analysis.Confidence
		profile.Notes = state.Analysis.Notes
		profile.HasAnalysis = true
	}
	if obs := reportWeather(state); obs != nil {
		profile.WeatherSummary = obs.Summary()
	}
	profile.ShareText = fmt.Sprintf("My Zephyre Results: %s skin, %d%% confidence", profile.SkinType, profile.SkinScore)
	return profile
}

// Report is the exportable snapshot of a profile.
type Report struct {
	Name        string               `json:"name"`
	SkinType    skincare.SkinType    `json:"skinType"`
	Confidence  int                  `json:"confidence"`
	Date        string               `json:"date"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Notes       string               `json:"notes,omitempty"`
	Weather     *weather.Observation `json:"weather,omitempty"`
}

// BuildReport snapshots the profile at now.
func BuildReport(state State, now time.Time) Report {
	profile := BuildProfile(state)
	return Report{
		Name:        profile.Name,
		SkinType:    profile.SkinType,
		Confidence:  profile.SkinScore,
		Date:        now.Format("2006-01-02"),
		GeneratedAt: now,
		Notes:       profile.Notes,
		Weather:     reportWeather(state),
	}
}

// Filename is the suggested download name, e.g. zephyre-report-Jane-Doe.json.
func (r Report) Filename() string {
	return "zephyre-report-" + whitespace.ReplaceAllString(strings.TrimSpace(r.Name), "-") + ".json"
}

// Text renders the printable plain-text form of the report.
func (r Report) Text() string {
	notes := r.Notes
	if notes == "" {
		notes = "No recent analysis available"
	}
	conditions := "Not available"
	if r.Weather != nil {
		conditions = fmt.Sprintf("%s, %.0f%% humidity", r.Weather.Summary(), r.Weather.DisplayHumidity())
	}

	var b strings.Builder
	b.WriteString("=== ZEPHYRE SKIN ANALYSIS REPORT ===\n")
	fmt.Fprintf(&b, "User: %s\n", r.Name)
	fmt.Fprintf(&b, "Date: %s\n", r.Date)
	fmt.Fprintf(&b, "Skin Type: %s\n", strings.ToUpper(string(r.SkinType)))
	fmt.Fprintf(&b, "Confidence: %d%%\n\n", r.Confidence)
	fmt.Fprintf(&b, "Latest Analysis Notes:\n%s\n\n", notes)
	fmt.Fprintf(&b, "Weather Conditions:\n%s\n\n", conditions)
	b.WriteString("Recommendations:\n")
	b.WriteString("- Continue regular skin analysis\n")
	b.WriteString("- Follow weather-adapted skincare routine\n")
	b.WriteString("- Monitor skin health progress\n\n")
	b.WriteString("Generated by Zephyre - Your Weather-Powered Derma AI\n")
	return b.String()
}

// reportWeather prefers the weather recorded with the analysis over the latest lookup.
func reportWeather(state State) *weather.Observation {
	if state.Analysis != nil && state.Analysis.Weather != nil {
		return state.Analysis.Weather
	}
	return state.Weather
}
