package app

import "study-session-service/internal/domain"

// ConditionAssigner performs the per-participant random draws. Each draw is
// independent of performance, demographics and the other draw.
type ConditionAssigner struct {
	src RandomSource
}

func NewConditionAssigner(src RandomSource) *ConditionAssigner {
	return &ConditionAssigner{src: src}
}

// AssignFeedback draws Positive95 or Negative60 with equal probability.
func (c *ConditionAssigner) AssignFeedback() domain.FeedbackCondition {
	if c.src.Float64() < 0.5 {
		return domain.FeedbackPositive95
	}
	return domain.FeedbackNegative60
}

// AssignMusic draws Classical or Metal with equal probability.
func (c *ConditionAssigner) AssignMusic() domain.MusicCondition {
	if c.src.Float64() < 0.5 {
		return domain.MusicClassical
	}
	return domain.MusicMetal
}
