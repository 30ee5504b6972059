package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"mcq-service/internal/models"
	"mcq-service/internal/quiz"
)

// memSessionStore mimics the mongo session repository, including its
// compare-and-swap update semantics. beforeUpdate, when set, runs ahead of
// each Update so tests can interleave a racing writer.
type memSessionStore struct {
	mu           sync.Mutex
	sessions     map[string]*models.QuizSession
	beforeUpdate func()
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*models.QuizSession)}
}

func key(studentID, sessionID string) string { return studentID + "/" + sessionID }

func (m *memSessionStore) Create(_ context.Context, s *models.QuizSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(s.StudentID, s.SessionID)
	if _, ok := m.sessions[k]; ok {
		return quiz.ErrWriteConflict
	}
	s.Version = 1
	cp := *s
	m.sessions[k] = &cp
	return nil
}

func (m *memSessionStore) Find(_ context.Context, studentID, sessionID string) (*models.QuizSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key(studentID, sessionID)]
	if !ok {
		return nil, quiz.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionStore) Update(_ context.Context, s *models.QuizSession) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[key(s.StudentID, s.SessionID)]
	if !ok || stored.Version != s.Version {
		return quiz.ErrWriteConflict
	}
	s.Version++
	cp := *s
	m.sessions[key(s.StudentID, s.SessionID)] = &cp
	return nil
}

func (m *memSessionStore) Delete(_ context.Context, studentID, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(studentID, sessionID)
	if _, ok := m.sessions[k]; !ok {
		return false, nil
	}
	delete(m.sessions, k)
	return true, nil
}

func (m *memSessionStore) CountSessions(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sessions)), nil
}

func (m *memSessionStore) CountDistinctStudents(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	students := make(map[string]struct{})
	for _, s := range m.sessions {
		students[s.StudentID] = struct{}{}
	}
	return int64(len(students)), nil
}

func (m *memSessionStore) SessionIDsByStudent(_ context.Context) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	grouped := make(map[string][]string)
	for _, s := range m.sessions {
		grouped[s.StudentID] = append(grouped[s.StudentID], s.SessionID)
	}
	return grouped, nil
}

type memCompletedStore struct {
	mu      sync.Mutex
	records map[string]*models.CompletedQuiz
}

func newMemCompletedStore() *memCompletedStore {
	return &memCompletedStore{records: make(map[string]*models.CompletedQuiz)}
}

func (m *memCompletedStore) Create(_ context.Context, r *models.CompletedQuiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.SessionID]; ok {
		return quiz.ErrWriteConflict
	}
	cp := *r
	m.records[r.SessionID] = &cp
	return nil
}

func (m *memCompletedStore) FindByStudent(_ context.Context, studentID string, skip, limit int64) ([]models.CompletedQuiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CompletedQuiz
	for _, r := range m.records {
		if r.StudentID == studentID {
			out = append(out, *r)
		}
	}
	if skip > int64(len(out)) {
		return nil, nil
	}
	out = out[skip:]
	if limit < int64(len(out)) {
		out = out[:limit]
	}
	return out, nil
}

type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) Publish(eventType string, payload interface{}) error {
	p.events = append(p.events, eventType)
	return nil
}

// scriptedQuestionSource always answers B and echoes the requested difficulty.
type scriptedQuestionSource struct {
	err error
}

func (s *scriptedQuestionSource) Generate(_ context.Context, course, topic string, difficulty int, history string) (*quiz.MCQ, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &quiz.MCQ{
		Question: fmt.Sprintf("%s/%s question at level %d", course, topic, difficulty),
		Options: map[string]string{
			"A": "first", "B": "second", "C": "third", "D": "fourth",
		},
		CorrectAnswer: "B",
		Explanation:   "second is right",
		Difficulty:    difficulty,
	}, nil
}

type scriptedFeedbackSource struct {
	err error
}

func (s *scriptedFeedbackSource) Generate(_ context.Context, course, topic, question, userAnswer, correctAnswer, explanation string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "nice work", nil
}

func newTestService(qErr, fErr error) (*SessionService, *memSessionStore, *memCompletedStore, *recordingPublisher) {
	sessions := newMemSessionStore()
	completed := newMemCompletedStore()
	publisher := &recordingPublisher{}
	machine := quiz.NewMachine(&scriptedQuestionSource{err: qErr}, &scriptedFeedbackSource{err: fErr})
	return NewSessionService(sessions, completed, machine, publisher), sessions, completed, publisher
}

func TestStartCreatesSessionWithFirstQuestion(t *testing.T) {
	svc, sessions, _, _ := newTestService(nil, nil)

	result, err := svc.StartOrResume(context.Background(), StartRequest{
		StudentID:         "student-1",
		Course:            "Biology",
		Topic:             "Genetics",
		InitialDifficulty: 2,
	})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}

	if result.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if result.QuestionNumber != 1 {
		t.Errorf("question_number = %d, want 1", result.QuestionNumber)
	}
	if len(result.Options) != 4 {
		t.Errorf("got %d options, want 4", len(result.Options))
	}
	if result.Difficulty != 2 {
		t.Errorf("difficulty = %d, want 2", result.Difficulty)
	}

	stored, err := sessions.Find(context.Background(), "student-1", result.SessionID)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if stored.Phase != string(quiz.PhaseAwaitingAnswer) {
		t.Errorf("persisted phase = %q, want %q", stored.Phase, quiz.PhaseAwaitingAnswer)
	}
	if stored.CorrectAnswer != "B" {
		t.Errorf("persisted answer key = %q, want B", stored.CorrectAnswer)
	}
}

func TestStartDefaultsDifficulty(t *testing.T) {
	svc, _, _, _ := newTestService(nil, nil)

	result, err := svc.StartOrResume(context.Background(), StartRequest{
		StudentID: "student-1", Course: "Biology", Topic: "Genetics",
	})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}
	if result.Difficulty != defaultDifficulty {
		t.Errorf("difficulty = %d, want default %d", result.Difficulty, defaultDifficulty)
	}
}

func TestStartKeepsCallerSessionIDWhenUnknown(t *testing.T) {
	svc, _, _, _ := newTestService(nil, nil)

	result, err := svc.StartOrResume(context.Background(), StartRequest{
		StudentID: "student-1", Course: "Biology", Topic: "Genetics", SessionID: "chosen-id",
	})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}
	if result.SessionID != "chosen-id" {
		t.Errorf("session_id = %q, want caller-supplied id", result.SessionID)
	}
}

func TestStartGenerationFailureCreatesNothing(t *testing.T) {
	svc, sessions, _, _ := newTestService(errors.New("model down"), nil)

	_, err := svc.StartOrResume(context.Background(), StartRequest{
		StudentID: "student-1", Course: "Biology", Topic: "Genetics",
	})
	if !errors.Is(err, quiz.ErrGenerationParse) {
		t.Fatalf("err = %v, want ErrGenerationParse", err)
	}
	count, _ := sessions.CountSessions(context.Background())
	if count != 0 {
		t.Errorf("sessions persisted after failed generation: %d", count)
	}
}

func TestResumeRejectsActiveQuestion(t *testing.T) {
	svc, _, _, _ := newTestService(nil, nil)

	result, err := svc.StartOrResume(context.Background(), StartRequest{
		StudentID: "student-1", Course: "Biology", Topic: "Genetics",
	})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}

	// A question is pending; resuming must not generate another one.
	_, err = svc.StartOrResume(context.Background(), StartRequest{
		StudentID: "student-1", Course: "Biology", Topic: "Genetics", SessionID: result.SessionID,
	})
	if !errors.Is(err, quiz.ErrInvalidPhase) {
		t.Fatalf("err = %v, want ErrInvalidPhase", err)
	}
}

func TestSubmitAnswerLifecycle(t *testing.T) {
	svc, sessions, _, _ := newTestService(nil, nil)
	ctx := context.Background()

	start, err := svc.StartOrResume(ctx, StartRequest{
		StudentID: "student-1", Course: "Biology", Topic: "Genetics", InitialDifficulty: 2,
	})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}

	result, err := svc.SubmitAnswer(ctx, "student-1", start.SessionID, "b")
	if err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	if !result.IsCorrect {
		t.Error("lowercase correct label judged incorrect")
	}
	if result.Score != 1 || result.TotalQuestions != 1 {
		t.Errorf("score/total = %d/%d, want 1/1", result.Score, result.TotalQuestions)
	}
	if result.Difficulty != 3 {
		t.Errorf("difficulty = %d, want 3", result.Difficulty)
	}
	if result.Feedback == "" {
		t.Error("expected feedback text")
	}

	stored, _ := sessions.Find(ctx, "student-1", start.SessionID)
	if stored.Phase != string(quiz.PhaseAwaitingQuestion) {
		t.Errorf("persisted phase = %q, want %q", stored.Phase, quiz.PhaseAwaitingQuestion)
	}

	// The next question resumes at the ratcheted difficulty.
	next, err := svc.StartOrResume(ctx, StartRequest{
		StudentID: "student-1", Course: "Biology", Topic: "Genetics", SessionID: start.SessionID,
	})
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if next.Difficulty != 3 {
		t.Errorf("resumed difficulty = %d, want 3", next.Difficulty)
	}
	if next.QuestionNumber != 2 {
		t.Errorf("question_number = %d, want 2", next.QuestionNumber)
	}
}

func TestSubmitAnswerUnknownSession(t *testing.T) {
	svc, _, _, _ := newTestService(nil, nil)

	_, err := svc.SubmitAnswer(context.Background(), "student-1", "missing", "A")
	if !errors.Is(err, quiz.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSubmitAnswerWrongStudent(t *testing.T) {
	svc, _, _, _ := newTestService(nil, nil)
	ctx := context.Background()

	start, err := svc.StartOrResume(ctx, StartRequest{
		StudentID: "student-1", Course: "Biology", Topic: "Genetics",
	})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}

	// Sessions are only visible to their owning student.
	_, err = svc.SubmitAnswer(ctx, "student-2", start.SessionID, "A")
	if !errors.Is(err, quiz.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSubmitAnswerFeedbackFailurePersistsScoring(t *testing.T) {
	svc, sessions, _, _ := newTestService(nil, errors.New("feedback model down"))
	ctx := context.Background()

	start, err := svc.StartOrResume(ctx, StartRequest{
		StudentID: "student-1", Course: "Biology", Topic: "Genetics", InitialDifficulty: 2,
	})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}

	result, err := svc.SubmitAnswer(ctx, "student-1", start.SessionID, "B")
	if !errors.Is(err, quiz.ErrFeedbackGeneration) {
		t.Fatalf("err = %v, want ErrFeedbackGeneration", err)
	}
	if result == nil || result.Score != 1 || result.Difficulty != 3 {
		t.Fatalf("result = %+v, want authoritative scoring", result)
	}

	stored, _ := sessions.Find(ctx, "student-1", start.SessionID)
	if stored.Score != 1 || stored.TotalQuestions != 1 || stored.Difficulty != 3 {
		t.Errorf("scoring not persisted: score=%d total=%d difficulty=%d",
			stored.Score, stored.TotalQuestions, stored.Difficulty)
	}
	if stored.Phase != string(quiz.PhaseAwaitingQuestion) {
		t.Errorf("phase = %q, want %q", stored.Phase, quiz.PhaseAwaitingQuestion)
	}
}

func TestGetStatusIsReadOnly(t *testing.T) {
	svc, _, _, _ := newTestService(nil, nil)
	ctx := context.Background()

	start, err := svc.StartOrResume(ctx, StartRequest{
		StudentID: "student-1", Course: "Biology", Topic: "Genetics",
	})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}

	var last *SessionStatus
	for i := 0; i < 3; i++ {
		status, err := svc.GetStatus(ctx, "student-1", start.SessionID)
		if err != nil {
			t.Fatalf("GetStatus failed: %v", err)
		}
		if last != nil && *status != *last {
			t.Errorf("GetStatus mutated state between calls: %+v vs %+v", status, last)
		}
		last = status
	}
	if last.Course != "Biology" || last.Topic != "Genetics" {
		t.Errorf("projection wrong: %+v", last)
	}
}

func TestEndComputesAccuracyAndArchives(t *testing.T) {
	svc, sessions, completed, publisher := newTestService(nil, nil)
	ctx := context.Background()

	start, err := svc.StartOrResume(ctx, StartRequest{
		StudentID: "student-1", Course: "Biology", Topic: "Genetics", InitialDifficulty: 2,
	})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}

	// Five answers: three correct, two wrong.
	answers := []string{"B", "A", "B", "C", "B"}
	for i, answer := range answers {
		if i > 0 {
			if _, err := svc.StartOrResume(ctx, StartRequest{
				StudentID: "student-1", Course: "Biology", Topic: "Genetics", SessionID: start.SessionID,
			}); err != nil {
				t.Fatalf("round %d: resume failed: %v", i, err)
			}
		}
		if _, err := svc.SubmitAnswer(ctx, "student-1", start.SessionID, answer); err != nil {
			t.Fatalf("round %d: SubmitAnswer failed: %v", i, err)
		}
	}

	summary, err := svc.End(ctx, "student-1", start.SessionID)
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if summary.Score != 3 || summary.TotalQuestions != 5 {
		t.Errorf("score/total = %d/%d, want 3/5", summary.Score, summary.TotalQuestions)
	}
	if summary.Accuracy != 60.0 {
		t.Errorf("accuracy = %v, want 60.0", summary.Accuracy)
	}

	if _, err := svc.GetStatus(ctx, "student-1", start.SessionID); !errors.Is(err, quiz.ErrSessionNotFound) {
		t.Errorf("GetStatus after End: err = %v, want ErrSessionNotFound", err)
	}
	count, _ := sessions.CountSessions(ctx)
	if count != 0 {
		t.Errorf("live sessions after End: %d, want 0", count)
	}

	records, err := completed.FindByStudent(ctx, "student-1", 0, 10)
	if err != nil || len(records) != 1 {
		t.Fatalf("archived records = %d (%v), want 1", len(records), err)
	}
	if records[0].Score != 3 || records[0].TotalQuestions != 5 {
		t.Errorf("archived record wrong: %+v", records[0])
	}

	if len(publisher.events) != 1 || publisher.events[0] != "quiz.session.completed" {
		t.Errorf("events = %v, want one quiz.session.completed", publisher.events)
	}
}

func TestEndWithNoAnswersYieldsZeroAccuracy(t *testing.T) {
	svc, _, _, _ := newTestService(nil, nil)
	ctx := context.Background()

	start, err := svc.StartOrResume(ctx, StartRequest{
		StudentID: "student-1", Course: "Biology", Topic: "Genetics",
	})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}

	summary, err := svc.End(ctx, "student-1", start.SessionID)
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if summary.Accuracy != 0 {
		t.Errorf("accuracy = %v, want 0 with no answers", summary.Accuracy)
	}
}

func TestEndTwiceFails(t *testing.T) {
	svc, _, _, _ := newTestService(nil, nil)
	ctx := context.Background()

	start, err := svc.StartOrResume(ctx, StartRequest{
		StudentID: "student-1", Course: "Biology", Topic: "Genetics",
	})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}
	if _, err := svc.End(ctx, "student-1", start.SessionID); err != nil {
		t.Fatalf("first End failed: %v", err)
	}
	if _, err := svc.End(ctx, "student-1", start.SessionID); !errors.Is(err, quiz.ErrSessionNotFound) {
		t.Fatalf("second End: err = %v, want ErrSessionNotFound", err)
	}
}

func TestAccuracyRounding(t *testing.T) {
	testCases := []struct {
		score, total int
		expected     float64
	}{
		{3, 5, 60.0},
		{0, 0, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{5, 5, 100.0},
	}
	for _, tc := range testCases {
		if got := accuracy(tc.score, tc.total); got != tc.expected {
			t.Errorf("accuracy(%d, %d) = %v, want %v", tc.score, tc.total, got, tc.expected)
		}
	}
}

func TestSubmitAnswerLostRaceSurfacesConflict(t *testing.T) {
	svc, sessions, _, _ := newTestService(nil, nil)
	ctx := context.Background()

	start, err := svc.StartOrResume(ctx, StartRequest{
		StudentID: "student-1", Course: "Biology", Topic: "Genetics",
	})
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}

	// A racing request writes the session between this request's read and
	// write; the version check must reject the stale write.
	sessions.beforeUpdate = func() {
		sessions.beforeUpdate = nil
		raced, err := sessions.Find(ctx, "student-1", start.SessionID)
		if err != nil {
			t.Fatalf("racing find failed: %v", err)
		}
		if err := sessions.Update(ctx, raced); err != nil {
			t.Fatalf("racing update failed: %v", err)
		}
	}

	_, err = svc.SubmitAnswer(ctx, "student-1", start.SessionID, "B")
	if !errors.Is(err, quiz.ErrWriteConflict) {
		t.Fatalf("err = %v, want ErrWriteConflict", err)
	}
}

func TestStatsAggregates(t *testing.T) {
	svc, _, _, _ := newTestService(nil, nil)
	ctx := context.Background()

	for _, student := range []string{"student-1", "student-1", "student-2"} {
		if _, err := svc.StartOrResume(ctx, StartRequest{
			StudentID: student, Course: "Biology", Topic: "Genetics",
		}); err != nil {
			t.Fatalf("StartOrResume failed: %v", err)
		}
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalSessions != 3 {
		t.Errorf("total_sessions = %d, want 3", stats.TotalSessions)
	}
	if stats.DistinctStudents != 2 {
		t.Errorf("distinct_students = %d, want 2", stats.DistinctStudents)
	}
	if len(stats.SessionsByStudent["student-1"]) != 2 {
		t.Errorf("student-1 sessions = %d, want 2", len(stats.SessionsByStudent["student-1"]))
	}
}
