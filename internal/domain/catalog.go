package domain

// DemographicOptions lists the choices offered for each intake field.
type DemographicOptions struct {
	AgeRange        []string `json:"ageRange"`
	Gender          []string `json:"gender"`
	Education       []string `json:"education"`
	MathComfort     []string `json:"mathComfort"`
	PriorTimedTasks []string `json:"priorTimedTasks"`
}

func DefaultDemographicOptions() DemographicOptions {
	return DemographicOptions{
		AgeRange:        []string{"18-24", "25-34", "35-44", "45-54", "55+"},
		Gender:          []string{"female", "male", "other", "prefer not to say"},
		Education:       []string{"high school", "bachelor", "master", "doctorate", "other"},
		MathComfort:     []string{"low", "medium", "high"},
		PriorTimedTasks: []string{"none", "some", "a lot"},
	}
}

// LikertItem is one motivation question.
type LikertItem struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

func MotivationItems() []LikertItem {
	return []LikertItem{
		{Key: "mot_return", Text: "How motivated are you to do the arithmetic task again? (1 = very low, 7 = very high)"},
		{Key: "mot_effort", Text: "How much effort would you be willing to invest in another attempt?"},
		{Key: "mot_interest", Text: "How interesting or challenging was the task for you?"},
		{Key: "mot_confidence", Text: "How confident are you that you could improve in another round?"},
	}
}
