package answer

import (
	"context"
	"strings"

	"swasthya/backend/internal/profile"
)

const (
	symptomInfo = "<strong>Symptom Information</strong>\n\n" +
		"Common symptoms vary by disease. E.g., Dengue: High fever, headache, muscle pain; " +
		"Malaria: Fever with chills, fatigue; Typhoid: Prolonged fever, stomach pain."
	preventionInfo = "<strong>Prevention Methods</strong>\n\n" +
		"• Use mosquito nets & repellents\n• Wear long sleeves\n• Avoid stagnant water\n• Vaccinations"
	vaccinationInfo = "<strong>Vaccination Info</strong>\n\n" +
		"• Newborns: BCG, polio, hepatitis B\n• 6 weeks: Pentavalent, rotavirus\n• Children: Measles, DPT, typhoid"
	generalInfo = "<strong>Health Assistance</strong>\n\n" +
		"I can help with symptoms, prevention, vaccines, and health alerts. What would you like to know?"
)

// StaticFallback answers from canned text by keyword. It never fails.
type StaticFallback struct{}

var _ Provider = (*StaticFallback)(nil)

func (f *StaticFallback) Name() string { return SourceFallback }

func (f *StaticFallback) TryAnswer(_ context.Context, req Request) (string, bool) {
	return f.Respond(req.Message, req.Profile), true
}

func (f *StaticFallback) Respond(message string, user profile.Context) string {
	lower := strings.ToLower(message)

	var response string
	switch {
	case strings.Contains(lower, "symptom"):
		response = symptomInfo
	case strings.Contains(lower, "prevent"), strings.Contains(lower, "malaria"):
		response = preventionInfo
	case strings.Contains(lower, "vaccin"):
		response = vaccinationInfo
	default:
		response = generalInfo
	}

	if location := strings.TrimSpace(user.Location); location != "" {
		response += "\n\n<strong>Location Note:</strong> Since you're in " + location + ", consider local health advisories."
	}
	return response
}
