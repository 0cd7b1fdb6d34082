package domain

// Outcome: терминальное состояние заявки.
type Outcome string

const (
	OutcomeAccepted  Outcome = "ACCEPTED"
	OutcomeDenied    Outcome = "DENIED"
	OutcomeWithdrawn Outcome = "WITHDRAWN"
)

// OutcomeOf переводит решение кнопки/текста в терминальное состояние.
func OutcomeOf(a Action) Outcome {
	if a == ActionAccept {
		return OutcomeAccepted
	}
	return OutcomeDenied
}
