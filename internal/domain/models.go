package domain

import (
	"encoding/json"
	"strings"
)

// Stage enumerates the top-level phases of the protocol, including the
// feedback screen that sits between the task and the distraction phase.
type Stage int

const (
	StageDemographics Stage = iota + 1
	StageTask
	StageFeedback
	StageDistraction
	StageMotivation
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageDemographics:
		return "demographics"
	case StageTask:
		return "task"
	case StageFeedback:
		return "feedback"
	case StageDistraction:
		return "distraction"
	case StageMotivation:
		return "motivation"
	case StageComplete:
		return "complete"
	default:
		return "unknown"
	}
}

func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Operator is the arithmetic operation of a Problem.
type Operator string

const (
	OpAdd      Operator = "+"
	OpSubtract Operator = "-"
	OpMultiply Operator = "×"
	OpDivide   Operator = "÷"
)

// Apply computes the exact result. Division is only generated with an exact
// integer quotient.
func (o Operator) Apply(a, b int) int {
	switch o {
	case OpAdd:
		return a + b
	case OpSubtract:
		return a - b
	case OpMultiply:
		return a * b
	case OpDivide:
		if b == 0 {
			return 0
		}
		return a / b
	default:
		return 0
	}
}

// Problem is one arithmetic item. Index is 1-based.
type Problem struct {
	Index   int      `json:"index"`
	A       int      `json:"a"`
	B       int      `json:"b"`
	Op      Operator `json:"op"`
	Correct int      `json:"correct"`
}

// ProblemView is what the participant sees: the problem without its answer.
type ProblemView struct {
	Index int      `json:"index"`
	A     int      `json:"a"`
	B     int      `json:"b"`
	Op    Operator `json:"op"`
}

func (p Problem) View() ProblemView {
	return ProblemView{Index: p.Index, A: p.A, B: p.B, Op: p.Op}
}

// AnswerRecord is one submitted response. UserAnswer is nil when the
// submitted text was not a number; such answers are never correct.
type AnswerRecord struct {
	Index      int      `json:"index"`
	UserAnswer *float64 `json:"userAnswer"`
	Correct    int      `json:"correct"`
	IsCorrect  bool     `json:"isCorrect"`
	RTMs       int64    `json:"rtMs"`
}

// Demographics holds the five categorical intake fields.
type Demographics struct {
	AgeRange        string `json:"ageRange"`
	Gender          string `json:"gender"`
	Education       string `json:"education"`
	MathComfort     string `json:"mathComfort"`
	PriorTimedTasks string `json:"priorTimedTasks"`
}

// Complete reports whether every field is filled in.
func (d Demographics) Complete() bool {
	for _, v := range []string{d.AgeRange, d.Gender, d.Education, d.MathComfort, d.PriorTimedTasks} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Motivation holds the four 1-7 Likert items (0 means unset) and an optional comment.
type Motivation struct {
	Return     int    `json:"mot_return"`
	Effort     int    `json:"mot_effort"`
	Interest   int    `json:"mot_interest"`
	Confidence int    `json:"mot_confidence"`
	Open       string `json:"open"`
}

const (
	LikertMin = 1
	LikertMax = 7
)

func (m Motivation) items() []int {
	return []int{m.Return, m.Effort, m.Interest, m.Confidence}
}

// Valid reports whether all four Likert items are within [1,7].
func (m Motivation) Valid() bool {
	for _, v := range m.items() {
		if v < LikertMin || v > LikertMax {
			return false
		}
	}
	return true
}

// Mean is the average of the four Likert items, unrounded.
func (m Motivation) Mean() float64 {
	sum := 0
	items := m.items()
	for _, v := range items {
		sum += v
	}
	return float64(sum) / float64(len(items))
}

// FeedbackCondition is the randomly assigned feedback valence. The empty
// value means not yet assigned and encodes as JSON null.
type FeedbackCondition string

const (
	FeedbackPositive95 FeedbackCondition = "Positive95"
	FeedbackNegative60 FeedbackCondition = "Negative60"
)

// Score is the displayed score. It is decorative and unrelated to accuracy.
func (f FeedbackCondition) Score() int {
	switch f {
	case FeedbackPositive95:
		return 95
	case FeedbackNegative60:
		return 60
	default:
		return 0
	}
}

// Message is the line shown next to the score.
func (f FeedbackCondition) Message() string {
	switch f {
	case FeedbackPositive95:
		return "Excellent performance!"
	case FeedbackNegative60:
		return "There is room for improvement."
	default:
		return ""
	}
}

func (f FeedbackCondition) MarshalJSON() ([]byte, error) {
	return nullableString(string(f))
}

// MusicCondition is the randomly assigned distraction music. Empty means
// not yet assigned.
type MusicCondition string

const (
	MusicClassical MusicCondition = "Classical"
	MusicMetal     MusicCondition = "Metal"
)

func (m MusicCondition) MarshalJSON() ([]byte, error) {
	return nullableString(string(m))
}

func nullableString(s string) ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(s)
}

// Performance is derived from the answer log on demand.
type Performance struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"` // fraction in [0,1]
	AvgRTMs  int64   `json:"avgRtMs"`
}
