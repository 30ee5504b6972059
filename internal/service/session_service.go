package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"mcq-service/internal/models"
	"mcq-service/internal/quiz"

	"github.com/google/uuid"
)

// SessionStore is the live-session side of the session store contract.
type SessionStore interface {
	Create(ctx context.Context, session *models.QuizSession) error
	Find(ctx context.Context, studentID, sessionID string) (*models.QuizSession, error)
	Update(ctx context.Context, session *models.QuizSession) error
	Delete(ctx context.Context, studentID, sessionID string) (bool, error)
	CountSessions(ctx context.Context) (int64, error)
	CountDistinctStudents(ctx context.Context) (int64, error)
	SessionIDsByStudent(ctx context.Context) (map[string][]string, error)
}

// CompletedStore is the archival side of the session store contract.
type CompletedStore interface {
	Create(ctx context.Context, record *models.CompletedQuiz) error
	FindByStudent(ctx context.Context, studentID string, skip, limit int64) ([]models.CompletedQuiz, error)
}

// CompletionPublisher emits events when sessions are finalized. It is
// optional; a nil publisher disables events.
type CompletionPublisher interface {
	Publish(eventType string, payload interface{}) error
}

const defaultDifficulty = 2

// SessionService is the session lifecycle manager. It owns the translation
// between durable records and the state machine's in-memory projection and
// persists every transition before returning. Its four operations are the
// entire mutation surface of the quiz core.
type SessionService struct {
	sessions  SessionStore
	completed CompletedStore
	machine   *quiz.Machine
	publisher CompletionPublisher
}

func NewSessionService(sessions SessionStore, completed CompletedStore, machine *quiz.Machine, publisher CompletionPublisher) *SessionService {
	return &SessionService{
		sessions:  sessions,
		completed: completed,
		machine:   machine,
		publisher: publisher,
	}
}

// StartRequest carries the inputs for StartOrResume. SessionID is optional:
// when set and matching a stored record, that session is resumed.
type StartRequest struct {
	StudentID         string
	Course            string
	Topic             string
	InitialDifficulty int
	SessionID         string
}

// StartResult is the response to StartOrResume. It never exposes the
// correct answer.
type StartResult struct {
	SessionID      string            `json:"session_id"`
	Course         string            `json:"course"`
	Topic          string            `json:"topic"`
	Difficulty     int               `json:"difficulty"`
	Question       string            `json:"question"`
	Options        map[string]string `json:"options"`
	QuestionNumber int               `json:"question_number"`
}

// SessionStatus is the read-only projection returned by GetStatus.
type SessionStatus struct {
	SessionID      string    `json:"session_id"`
	Course         string    `json:"course"`
	Topic          string    `json:"topic"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Difficulty     int       `json:"difficulty"`
	Phase          string    `json:"current_phase"`
	CreatedAt      time.Time `json:"created_at"`
}

// SessionSummary is the final result computed by End.
type SessionSummary struct {
	SessionID       string  `json:"session_id"`
	StudentID       string  `json:"student_id"`
	Score           int     `json:"score"`
	TotalQuestions  int     `json:"total_questions"`
	Accuracy        float64 `json:"accuracy"`
	FinalDifficulty int     `json:"final_difficulty"`
}

// StoreStats aggregates live-session counts for health and admin endpoints.
type StoreStats struct {
	TotalSessions     int64               `json:"total_sessions"`
	DistinctStudents  int64               `json:"distinct_students"`
	SessionsByStudent map[string][]string `json:"sessions_by_student"`
}

// StartOrResume resumes the named session if it exists, otherwise creates a
// new one, then generates the next question and persists the record. A
// resumed session must be awaiting a question; anything else fails with
// ErrInvalidPhase.
func (s *SessionService) StartOrResume(ctx context.Context, req StartRequest) (*StartResult, error) {
	if req.SessionID != "" {
		session, err := s.sessions.Find(ctx, req.StudentID, req.SessionID)
		if err == nil {
			return s.resume(ctx, session)
		}
		if !errors.Is(err, quiz.ErrSessionNotFound) {
			return nil, err
		}
		// No matching record: fall through and create a session under the
		// caller-supplied id.
	}
	return s.create(ctx, req)
}

func (s *SessionService) resume(ctx context.Context, session *models.QuizSession) (*StartResult, error) {
	state := toState(session)
	if err := s.machine.GenerateQuestion(ctx, state); err != nil {
		return nil, err
	}
	applyState(session, state)
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	return startResult(session), nil
}

func (s *SessionService) create(ctx context.Context, req StartRequest) (*StartResult, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	difficulty := req.InitialDifficulty
	if difficulty == 0 {
		difficulty = defaultDifficulty
	}
	if difficulty < quiz.MinDifficulty || difficulty > quiz.MaxDifficulty {
		return nil, fmt.Errorf("initial difficulty %d out of range [%d,%d]",
			difficulty, quiz.MinDifficulty, quiz.MaxDifficulty)
	}

	session := &models.QuizSession{
		SessionID:  sessionID,
		StudentID:  req.StudentID,
		Course:     req.Course,
		Topic:      req.Topic,
		Difficulty: difficulty,
		Options:    map[string]string{},
		Phase:      string(quiz.PhaseAwaitingQuestion),
		CreatedAt:  time.Now().UTC(),
	}

	state := toState(session)
	if err := s.machine.GenerateQuestion(ctx, state); err != nil {
		return nil, err
	}
	applyState(session, state)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return startResult(session), nil
}

// SubmitAnswer runs the answer transition and persists the outcome. When the
// feedback source fails the scoring update is still persisted and the result
// is returned alongside ErrFeedbackGeneration.
func (s *SessionService) SubmitAnswer(ctx context.Context, studentID, sessionID, answer string) (*quiz.AnswerResult, error) {
	session, err := s.sessions.Find(ctx, studentID, sessionID)
	if err != nil {
		return nil, err
	}

	state := toState(session)
	result, transitionErr := s.machine.SubmitAnswer(ctx, state, answer)
	if transitionErr != nil && !errors.Is(transitionErr, quiz.ErrFeedbackGeneration) {
		return nil, transitionErr
	}

	applyState(session, state)
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	return result, transitionErr
}

// GetStatus returns a read-only projection of the session. It never mutates
// state.
func (s *SessionService) GetStatus(ctx context.Context, studentID, sessionID string) (*SessionStatus, error) {
	session, err := s.sessions.Find(ctx, studentID, sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionStatus{
		SessionID:      session.SessionID,
		Course:         session.Course,
		Topic:          session.Topic,
		Score:          session.Score,
		TotalQuestions: session.TotalQuestions,
		Difficulty:     session.Difficulty,
		Phase:          session.Phase,
		CreatedAt:      session.CreatedAt,
	}, nil
}

// End finalizes a session: computes the summary, writes the archival record,
// deletes the live record and publishes a completion event. The archival
// insert is keyed by session id, so a concurrent End loses there and no
// session is archived twice. A second End fails with ErrSessionNotFound.
func (s *SessionService) End(ctx context.Context, studentID, sessionID string) (*SessionSummary, error) {
	session, err := s.sessions.Find(ctx, studentID, sessionID)
	if err != nil {
		return nil, err
	}

	summary := &SessionSummary{
		SessionID:       session.SessionID,
		StudentID:       session.StudentID,
		Score:           session.Score,
		TotalQuestions:  session.TotalQuestions,
		Accuracy:        accuracy(session.Score, session.TotalQuestions),
		FinalDifficulty: session.Difficulty,
	}

	record := &models.CompletedQuiz{
		SessionID:       session.SessionID,
		StudentID:       session.StudentID,
		Course:          session.Course,
		Topic:           session.Topic,
		FinalDifficulty: session.Difficulty,
		Score:           session.Score,
		TotalQuestions:  session.TotalQuestions,
		CreatedAt:       session.CreatedAt,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := s.completed.Create(ctx, record); err != nil {
		return nil, err
	}

	if _, err := s.sessions.Delete(ctx, studentID, sessionID); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish("quiz.session.completed", summary); err != nil {
			log.Printf("publish completion event for session %s: %v", sessionID, err)
		}
	}
	return summary, nil
}

// Stats reports aggregate counts over the live sessions.
func (s *SessionService) Stats(ctx context.Context) (*StoreStats, error) {
	total, err := s.sessions.CountSessions(ctx)
	if err != nil {
		return nil, err
	}
	students, err := s.sessions.CountDistinctStudents(ctx)
	if err != nil {
		return nil, err
	}
	grouped, err := s.sessions.SessionIDsByStudent(ctx)
	if err != nil {
		return nil, err
	}
	return &StoreStats{
		TotalSessions:     total,
		DistinctStudents:  students,
		SessionsByStudent: grouped,
	}, nil
}

// CompletedQuizzes lists a student's archived quizzes, paginated.
func (s *SessionService) CompletedQuizzes(ctx context.Context, studentID string, skip, limit int64) ([]models.CompletedQuiz, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	return s.completed.FindByStudent(ctx, studentID, skip, limit)
}

// accuracy is score/total as a percentage rounded to two decimals, or 0 when
// nothing was answered.
func accuracy(score, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(score)/float64(total)*10000) / 100
}

func startResult(session *models.QuizSession) *StartResult {
	return &StartResult{
		SessionID:      session.SessionID,
		Course:         session.Course,
		Topic:          session.Topic,
		Difficulty:     session.Difficulty,
		Question:       session.CurrentQuestion,
		Options:        session.Options,
		QuestionNumber: session.TotalQuestions + 1,
	}
}

// toState rebuilds the machine's projection from the durable record. It is
// reconstructed fresh on every request; nothing survives across calls.
func toState(session *models.QuizSession) *quiz.State {
	return &quiz.State{
		Course:          session.Course,
		Topic:           session.Topic,
		Difficulty:      session.Difficulty,
		CurrentQuestion: session.CurrentQuestion,
		Options:         session.Options,
		UserAnswer:      session.UserAnswer,
		CorrectAnswer:   session.CorrectAnswer,
		Explanation:     session.Explanation,
		Score:           session.Score,
		TotalQuestions:  session.TotalQuestions,
		Feedback:        session.Feedback,
		Phase:           quiz.Phase(session.Phase),
		CreatedAt:       session.CreatedAt,
	}
}

// applyState writes the projection back onto the durable record. Identity
// fields (ids, course, topic, created_at) are immutable and never copied.
func applyState(session *models.QuizSession, state *quiz.State) {
	session.Difficulty = state.Difficulty
	session.CurrentQuestion = state.CurrentQuestion
	session.Options = state.Options
	session.UserAnswer = state.UserAnswer
	session.CorrectAnswer = state.CorrectAnswer
	session.Explanation = state.Explanation
	session.Score = state.Score
	session.TotalQuestions = state.TotalQuestions
	session.Feedback = state.Feedback
	session.Phase = string(state.Phase)
}
