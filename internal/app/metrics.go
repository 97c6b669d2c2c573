package app

import (
	"math"

	"study-session-service/internal/domain"
)

// Summarize derives performance from the answer log.
func Summarize(answers []domain.AnswerRecord) domain.Performance {
	total := len(answers)
	if total == 0 {
		return domain.Performance{}
	}
	correct := 0
	var rtSum int64
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
		rtSum += a.RTMs
	}
	return domain.Performance{
		Total:    total,
		Correct:  correct,
		Accuracy: float64(correct) / float64(total),
		AvgRTMs:  int64(math.Round(float64(rtSum) / float64(total))),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
