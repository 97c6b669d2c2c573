package app

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"study-session-service/internal/domain"
)

// isoMillis matches the ISO-8601 form browsers emit for timestamps.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type timerKind int

const (
	timerTask timerKind = iota
	timerBreak
	timerDistraction
)

func (k timerKind) String() string {
	switch k {
	case timerTask:
		return "task"
	case timerBreak:
		return "break"
	default:
		return "distraction"
	}
}

// tickTask is one scheduled fixed-interval callback owned by a session.
type tickTask struct {
	cancel func()
}

// FeedbackView is the feedback screen content.
type FeedbackView struct {
	Condition domain.FeedbackCondition `json:"condition"`
	Score     int                      `json:"score"`
	Message   string                   `json:"message"`
	Note      string                   `json:"note"`
}

const feedbackNote = "Methodological note: this feedback was assigned at random and does not reflect the correctness of your answers."

// Snapshot is a read-only view of a session for clients.
type Snapshot struct {
	ParticipantID        string                    `json:"participantId"`
	Stage                domain.Stage              `json:"stage"`
	DemographicsComplete bool                      `json:"demographicsComplete"`
	OnBreak              bool                      `json:"onBreak"`
	TaskOver             bool                      `json:"taskOver"`
	ProblemCount         int                       `json:"problemCount"`
	Answered             int                       `json:"answered"`
	CurrentProblem       *domain.ProblemView       `json:"currentProblem,omitempty"`
	TaskRemaining        int                       `json:"taskRemaining"`
	BreakRemaining       int                       `json:"breakRemaining"`
	CanResume            bool                      `json:"canResume"`
	DistractionRemaining int                       `json:"distractionRemaining"`
	Performance          domain.PerformanceSummary `json:"performance"`
	Feedback             *FeedbackView             `json:"feedback,omitempty"`
	Music                domain.MusicCondition     `json:"music"`
	MusicURL             string                    `json:"musicUrl,omitempty"`
	MotivationValid      bool                      `json:"motivationValid"`
	MotivationAvg        *float64                  `json:"motivationAvg,omitempty"`
}

// FallbackNotice tells the client a report could not be delivered and
// carries the file it should offer for download.
type FallbackNotice struct {
	Filename string        `json:"filename"`
	Report   domain.Report `json:"report"`
}

// SessionOptions injects the collaborators a session consumes.
type SessionOptions struct {
	Random    RandomSource
	Scheduler Scheduler
	Now       func() time.Time
}

// Session is the stage controller for one participant. All state lives in
// memory; every method is safe for concurrent use by the transport and the
// tick goroutines. Transitions whose guard is unmet are silent no-ops.
type Session struct {
	id         string
	cfg        StudyConfig
	now        func() time.Time
	conditions *ConditionAssigner
	scheduler  Scheduler

	mu            sync.RWMutex
	closed        bool
	stage         domain.Stage
	onBreak       bool
	demo          domain.Demographics
	problems      []domain.Problem
	answers       []domain.AnswerRecord
	cursor        int
	taskStartedAt time.Time
	feedback      domain.FeedbackCondition
	music         domain.MusicCondition
	motivation    domain.Motivation
	motivationAvg *float64

	taskTimer        *PhaseTimer
	breakTimer       *PhaseTimer
	distractionTimer *PhaseTimer
	ticks            map[timerKind]*tickTask

	subscribers map[chan Snapshot]struct{}
	fallbacks   chan FallbackNotice
}

// NewSession creates a session at the demographics stage and generates its
// problem sequence once.
func NewSession(id string, cfg StudyConfig, opts SessionOptions) *Session {
	cfg = cfg.withDefaults()
	if opts.Random == nil {
		opts.Random = NewRandomSource()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewTickerScheduler()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		id:               id,
		cfg:              cfg,
		now:              opts.Now,
		conditions:       NewConditionAssigner(opts.Random),
		scheduler:        opts.Scheduler,
		stage:            domain.StageDemographics,
		problems:         GenerateProblems(opts.Random, cfg.ProblemCount),
		taskTimer:        NewPhaseTimer(cfg.TaskSeconds),
		breakTimer:       NewPhaseTimer(cfg.BreakSeconds),
		distractionTimer: NewPhaseTimer(cfg.DistractionSeconds),
		ticks:            make(map[timerKind]*tickTask),
		subscribers:      make(map[chan Snapshot]struct{}),
		// at least one slot per reportable stage, so delivery never blocks
		fallbacks: make(chan FallbackNotice, 8),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Stage() domain.Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// Snapshot returns the current client view.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// SetDemographics stores the intake answers while the demographics stage is current.
func (s *Session) SetDemographics(d domain.Demographics) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stage != domain.StageDemographics {
		return s.snapshotLocked()
	}
	s.demo = d
	return s.broadcastLocked()
}

// StartTask moves Demographics -> Task when all five fields are filled.
func (s *Session) StartTask() (Snapshot, *domain.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stage != domain.StageDemographics || !s.demo.Complete() {
		return s.snapshotLocked(), nil
	}

	s.answers = nil
	s.cursor = 0
	s.onBreak = false
	s.taskStartedAt = s.now()
	s.taskTimer.Reset()
	s.breakTimer.Reset()
	report := s.reportLocked(domain.TagPhase1Complete)
	s.stage = domain.StageTask
	s.startTickLocked(timerTask)
	return s.broadcastLocked(), report
}

// SubmitAnswer records raw against the current problem. Text that does not
// parse as a number is recorded as incorrect. Reaching the break threshold
// suspends the task timer and starts the break timer.
func (s *Session) SubmitAnswer(raw string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw = strings.TrimSpace(raw)
	if s.closed || s.stage != domain.StageTask || s.onBreak || s.taskOverLocked() || raw == "" {
		return s.snapshotLocked()
	}

	problem := s.problems[s.cursor]
	record := domain.AnswerRecord{
		Index:   problem.Index,
		Correct: problem.Correct,
		RTMs:    s.now().Sub(s.taskStartedAt).Milliseconds(),
	}
	if v, ok := parseAnswer(raw); ok {
		record.UserAnswer = &v
		record.IsCorrect = v == float64(problem.Correct)
	}
	s.answers = append(s.answers, record)

	next := s.cursor + 1
	if next == s.cfg.BreakAfter {
		s.onBreak = true
		s.breakTimer.Reset()
		s.taskTimer.Pause()
		s.cancelTickLocked(timerTask)
		s.startTickLocked(timerBreak)
	}
	if next < len(s.problems) {
		s.cursor = next
	}
	return s.broadcastLocked()
}

// ResumeFromBreak leaves the break once the break timer has expired.
func (s *Session) ResumeFromBreak() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stage != domain.StageTask || !s.onBreak || !s.breakTimer.Expired() {
		return s.snapshotLocked()
	}
	s.onBreak = false
	s.cancelTickLocked(timerBreak)
	s.taskTimer.Resume()
	if !s.taskTimer.Expired() {
		s.startTickLocked(timerTask)
	}
	return s.broadcastLocked()
}

// ShowFeedback moves Task -> Feedback once every problem is answered or the
// task timer has run out, drawing the feedback condition.
func (s *Session) ShowFeedback() (Snapshot, *domain.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stage != domain.StageTask || s.onBreak || !s.taskOverLocked() {
		return s.snapshotLocked(), nil
	}

	s.cancelTickLocked(timerTask)
	s.cancelTickLocked(timerBreak)
	if s.feedback == "" {
		s.feedback = s.conditions.AssignFeedback()
	}
	report := s.reportLocked(domain.TagPhase2Complete)
	report.RawAnswers = append([]domain.AnswerRecord(nil), s.answers...)
	report.Problems = append([]domain.Problem(nil), s.problems...)
	s.stage = domain.StageFeedback
	return s.broadcastLocked(), report
}

// StartDistraction moves Feedback -> Distraction, drawing the music
// condition and starting the distraction timer.
func (s *Session) StartDistraction() (Snapshot, *domain.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stage != domain.StageFeedback || s.feedback == "" {
		return s.snapshotLocked(), nil
	}

	if s.music == "" {
		s.music = s.conditions.AssignMusic()
	}
	s.distractionTimer.Reset()
	report := s.reportLocked(domain.TagFeedbackShown)
	s.stage = domain.StageDistraction
	s.startTickLocked(timerDistraction)
	return s.broadcastLocked(), report
}

// FinishDistraction moves Distraction -> Motivation once the distraction timer expired.
func (s *Session) FinishDistraction() (Snapshot, *domain.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stage != domain.StageDistraction || !s.distractionTimer.Expired() {
		return s.snapshotLocked(), nil
	}
	s.cancelTickLocked(timerDistraction)
	report := s.reportLocked(domain.TagPhase3Complete)
	s.stage = domain.StageMotivation
	return s.broadcastLocked(), report
}

// SetMotivation stores questionnaire answers while the motivation stage is current.
func (s *Session) SetMotivation(m domain.Motivation) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stage != domain.StageMotivation {
		return s.snapshotLocked()
	}
	s.motivation = m
	return s.broadcastLocked()
}

// Finish moves Motivation -> Complete when all four Likert items are in
// range. No mutation is accepted afterwards.
func (s *Session) Finish() (Snapshot, *domain.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.stage != domain.StageMotivation || !s.motivation.Valid() {
		return s.snapshotLocked(), nil
	}
	avg := round2(s.motivation.Mean())
	s.motivationAvg = &avg
	report := s.reportLocked(domain.TagPhase4Complete)
	report.MotivationAvg = &avg
	s.stage = domain.StageComplete
	return s.broadcastLocked(), report
}

// Dump returns the full-session export.
func (s *Session) Dump() domain.SessionDump {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.SessionDump{
		ParticipantID:    s.id,
		Demo:             s.demo,
		Answers:          append([]domain.AnswerRecord{}, s.answers...),
		Problems:         append([]domain.Problem{}, s.problems...),
		FeedbackAssigned: s.feedback,
		MusicAssigned:    s.music,
		Motivation:       s.motivation,
	}
}

// Answers returns a copy of the answer log.
func (s *Session) Answers() []domain.AnswerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AnswerRecord(nil), s.answers...)
}

// ActiveTimers lists the timers whose tick task is currently scheduled.
func (s *Session) ActiveTimers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ticks))
	for _, k := range []timerKind{timerTask, timerBreak, timerDistraction} {
		if _, ok := s.ticks[k]; ok {
			out = append(out, k.String())
		}
	}
	return out
}

// Close cancels every tick task and ends all subscriptions. Later calls
// to any method leave the session unchanged.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for kind := range s.ticks {
		s.cancelTickLocked(kind)
	}
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	close(s.fallbacks)
}

// Subscribe returns a channel receiving a snapshot after every change.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Fallbacks yields notices for reports that fell back to a local file.
func (s *Session) Fallbacks() <-chan FallbackNotice {
	return s.fallbacks
}

func (s *Session) deliverFallback(n FallbackNotice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.fallbacks <- n:
	default:
	}
}

func (s *Session) startTickLocked(kind timerKind) {
	s.cancelTickLocked(kind)
	task := &tickTask{}
	task.cancel = s.scheduler.Every(TickInterval, func() { s.onTick(kind, task) })
	s.ticks[kind] = task
}

func (s *Session) cancelTickLocked(kind timerKind) {
	task, ok := s.ticks[kind]
	if !ok {
		return
	}
	delete(s.ticks, kind)
	task.cancel()
}

// onTick ignores callbacks from tasks that have already been cancelled.
func (s *Session) onTick(kind timerKind, task *tickTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.ticks[kind] != task {
		return
	}

	var timer *PhaseTimer
	switch kind {
	case timerTask:
		timer = s.taskTimer
	case timerBreak:
		timer = s.breakTimer
	default:
		timer = s.distractionTimer
	}
	timer.Tick()
	if timer.Expired() {
		s.cancelTickLocked(kind)
	}
	s.broadcastLocked()
}

func (s *Session) taskOverLocked() bool {
	return len(s.answers) >= len(s.problems) || s.taskTimer.Expired()
}

func (s *Session) reportLocked(tag domain.StageTag) *domain.Report {
	return &domain.Report{
		ParticipantID:    s.id,
		Timestamp:        s.now().UTC().Format(isoMillis),
		Stage:            tag,
		Demo:             s.demo,
		Phase2:           Summarize(s.answers).Summary(),
		FeedbackAssigned: s.feedback,
		MusicAssigned:    s.music,
		Motivation:       s.motivation,
	}
}

func (s *Session) broadcastLocked() Snapshot {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the oldest pending snapshot; only the latest state matters
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ParticipantID:        s.id,
		Stage:                s.stage,
		DemographicsComplete: s.demo.Complete(),
		OnBreak:              s.onBreak,
		ProblemCount:         len(s.problems),
		Answered:             len(s.answers),
		TaskRemaining:        s.taskTimer.Remaining(),
		BreakRemaining:       s.breakTimer.Remaining(),
		CanResume:            s.onBreak && s.breakTimer.Expired(),
		DistractionRemaining: s.distractionTimer.Remaining(),
		Performance:          Summarize(s.answers).Summary(),
		Music:                s.music,
		MusicURL:             s.cfg.MusicURLs[s.music],
		MotivationValid:      s.motivation.Valid(),
		MotivationAvg:        s.motivationAvg,
	}
	if s.stage == domain.StageTask {
		snap.TaskOver = s.taskOverLocked()
		if !s.onBreak && !snap.TaskOver {
			view := s.problems[s.cursor].View()
			snap.CurrentProblem = &view
		}
	}
	if s.feedback != "" && s.stage >= domain.StageFeedback {
		snap.Feedback = &FeedbackView{
			Condition: s.feedback,
			Score:     s.feedback.Score(),
			Message:   s.feedback.Message(),
			Note:      feedbackNote,
		}
	}
	return snap
}

func parseAnswer(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
