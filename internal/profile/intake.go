package profile

// CompletionMessage is the reply sent on the turn that exhausts the intake questions.
const CompletionMessage = "Profile creation complete! You can now ask me health questions."

var intakeQuestions = [...]string{
	"Hello! I'm Swasthya HealthBot. What's your name?",
	"How old are you?",
	"Do you have any children? Names and ages, e.g., Aarav-8, Anika-3.",
	"Do you have any pre-existing health conditions or diseases I should know about?",
	"Where do you live? (City or village)",
}

// NextQuestion returns the intake prompt at step, or false once step has
// reached the end of the script.
func NextQuestion(step int) (string, bool) {
	if step < 0 || step >= len(intakeQuestions) {
		return "", false
	}
	return intakeQuestions[step], true
}

func QuestionCount() int {
	return len(intakeQuestions)
}
