package domain

import "math"

// StageTag names a stage-completion event in outbound reports.
type StageTag string

const (
	TagPhase1Complete StageTag = "phase1_complete"
	TagPhase2Complete StageTag = "phase2_complete"
	TagFeedbackShown  StageTag = "feedback_shown"
	TagPhase3Complete StageTag = "phase3_complete"
	TagPhase4Complete StageTag = "phase4_complete"
)

// PerformanceSummary is the phase2 block of a report: accuracy is a
// percentage rounded to one decimal.
type PerformanceSummary struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
	AvgRTMs  int64   `json:"avgRtMs"`
}

func (p Performance) Summary() PerformanceSummary {
	return PerformanceSummary{
		Total:    p.Total,
		Correct:  p.Correct,
		Accuracy: math.Round(p.Accuracy*1000) / 10,
		AvgRTMs:  p.AvgRTMs,
	}
}

// Report is the payload sent once per stage-completion event.
type Report struct {
	ParticipantID    string             `json:"participantId"`
	Timestamp        string             `json:"timestamp"`
	Stage            StageTag           `json:"stage"`
	Demo             Demographics       `json:"demo"`
	Phase2           PerformanceSummary `json:"phase2"`
	FeedbackAssigned FeedbackCondition  `json:"feedbackAssigned"`
	MusicAssigned    MusicCondition     `json:"musicAssigned"`
	Motivation       Motivation         `json:"motivation"`

	// phase2_complete only
	RawAnswers []AnswerRecord `json:"rawAnswers,omitempty"`
	Problems   []Problem      `json:"problems,omitempty"`

	// phase4_complete only
	MotivationAvg *float64 `json:"motivationAvg,omitempty"`
}

// SessionDump is the full-session manual export.
type SessionDump struct {
	ParticipantID    string            `json:"participantId"`
	Demo             Demographics      `json:"demo"`
	Answers          []AnswerRecord    `json:"answers"`
	Problems         []Problem         `json:"problems"`
	FeedbackAssigned FeedbackCondition `json:"feedbackAssigned"`
	MusicAssigned    MusicCondition    `json:"musicAssigned"`
	Motivation       Motivation        `json:"motivation"`
}

// FallbackFilename is the local file name for a report that could not be delivered.
func FallbackFilename(participantID string, stage StageTag) string {
	return "participant_" + participantID + "_" + string(stage) + ".json"
}

// AnswersCSVFilename is the manual CSV export file name.
func AnswersCSVFilename(participantID string) string {
	return "participant_" + participantID + "_answers.csv"
}

// DumpFilename is the manual full-session JSON export file name.
func DumpFilename(participantID string) string {
	return "participant_" + participantID + "_ALL.json"
}
