package profile

type Reminder struct {
	Child       string   `json:"child"`
	Age         int      `json:"age"`
	Vaccines    []string `json:"vaccines"`
	NextCheckup string   `json:"nextCheckup"`
}

var vaccineSchedule = map[int][]string{
	0:  {"BCG", "OPV-0", "Hepatitis B"},
	6:  {"OPV-1", "Pentavalent-1", "Rotavirus"},
	9:  {"MMR-1"},
	10: {"OPV-2", "Pentavalent-2"},
	14: {"OPV-3", "Pentavalent-3"},
	16: {"MMR-2"},
	18: {"DPT Booster"},
}

// VaccinationReminders lists the vaccines due for each child at their
// recorded age. Children with nothing due are left out.
func VaccinationReminders(children []Child) []Reminder {
	reminders := make([]Reminder, 0, len(children))
	for _, child := range children {
		vaccines := VaccinesByAge(child.Age)
		if len(vaccines) == 0 {
			continue
		}
		reminders = append(reminders, Reminder{
			Child:       child.Name,
			Age:         child.Age,
			Vaccines:    vaccines,
			NextCheckup: NextCheckup(child.Age),
		})
	}
	return reminders
}

func VaccinesByAge(age int) []string {
	scheduled, ok := vaccineSchedule[age]
	if !ok {
		return nil
	}
	out := make([]string, len(scheduled))
	copy(out, scheduled)
	return out
}

func NextCheckup(age int) string {
	switch {
	case age < 1:
		return "Monthly"
	case age < 2:
		return "Every 3 months"
	case age < 5:
		return "Every 6 months"
	default:
		return "Yearly"
	}
}
