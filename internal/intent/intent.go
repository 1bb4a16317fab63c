// Package intent assigns a coarse routing label to user requests. The label
// only selects a prompt template; it is stored on turns for inspection but
// carries no structural guarantee.
package intent

import "strings"

// Label is a coarse category of a user request.
type Label string

const (
	CropAdvice Label = "crop_advice"
	Fertilizer Label = "fertilizer"
	SoilHealth Label = "soil_health"
	FAQ        Label = "faq"
	Other      Label = "other"
)

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	switch l {
	case CropAdvice, Fertilizer, SoilHealth, FAQ, Other:
		return true
	}
	return false
}

// Keyword cue tables. Checked in order: soil cues win over fertilizer cues,
// which win over crop cues.
var (
	soilCues       = []string{"soil", "drying", "dead soil", "erosion", "compost", "ph level"}
	fertilizerCues = []string{"fertilizer", "fertiliser", "nutrient", "npk", "urea", "feeding", "manure"}
	cropCues       = []string{"crop", "plant", "seed", "harvest", "pest", "leaves", "leaf", "grow", "sow", "rice", "wheat", "cabbage"}
)

// Classify applies the keyword rules to text. The second return value reports
// whether a rule matched; when false the caller may consult the model, and
// the returned FAQ label stands as the final fallback.
func Classify(text string) (Label, bool) {
	t := strings.ToLower(text)
	for _, cue := range soilCues {
		if strings.Contains(t, cue) {
			return SoilHealth, true
		}
	}
	for _, cue := range fertilizerCues {
		if strings.Contains(t, cue) {
			return Fertilizer, true
		}
	}
	for _, cue := range cropCues {
		if strings.Contains(t, cue) {
			return CropAdvice, true
		}
	}
	return FAQ, false
}
