package app

import "study-session-service/internal/domain"

// StudyConfig parameterizes one run of the protocol.
type StudyConfig struct {
	ProblemCount       int
	TaskSeconds        int
	BreakAfter         int
	BreakSeconds       int
	DistractionSeconds int
	MusicURLs          map[domain.MusicCondition]string
}

func DefaultStudyConfig() StudyConfig {
	return StudyConfig{
		ProblemCount:       DefaultProblemCount,
		TaskSeconds:        180,
		BreakAfter:         15,
		BreakSeconds:       25,
		DistractionSeconds: 60,
		MusicURLs: map[domain.MusicCondition]string{
			domain.MusicClassical: "https://www.youtube.com/embed/CX8Oui6yCSs?autoplay=1",
			domain.MusicMetal:     "https://www.youtube.com/embed/9sTQ0QdkN3Q?autoplay=1",
		},
	}
}

// withDefaults fills zero values from DefaultStudyConfig.
func (c StudyConfig) withDefaults() StudyConfig {
	d := DefaultStudyConfig()
	if c.ProblemCount <= 0 {
		c.ProblemCount = d.ProblemCount
	}
	if c.TaskSeconds <= 0 {
		c.TaskSeconds = d.TaskSeconds
	}
	if c.BreakAfter <= 0 {
		c.BreakAfter = d.BreakAfter
	}
	if c.BreakSeconds <= 0 {
		c.BreakSeconds = d.BreakSeconds
	}
	if c.DistractionSeconds <= 0 {
		c.DistractionSeconds = d.DistractionSeconds
	}
	urls := make(map[domain.MusicCondition]string, 2)
	for _, music := range []domain.MusicCondition{domain.MusicClassical, domain.MusicMetal} {
		urls[music] = d.MusicURLs[music]
		if url := c.MusicURLs[music]; url != "" {
			urls[music] = url
		}
	}
	c.MusicURLs = urls
	return c
}
