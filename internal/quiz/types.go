package quiz

import (
	"context"
	"time"
)

// Phase is the session's position in the question/answer cycle.
type Phase string

const (
	// PhaseAwaitingQuestion means no question is active; the next legal
	// transition is GenerateQuestion.
	PhaseAwaitingQuestion Phase = "awaiting_question"
	// PhaseAwaitingAnswer means a question is active; the next legal
	// transition is SubmitAnswer.
	PhaseAwaitingAnswer Phase = "awaiting_answer"
)

// MinDifficulty and MaxDifficulty bound the adaptive ratchet.
const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// MCQ is the structured payload a question source must return.
type MCQ struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   string            `json:"explanation"`
	Difficulty    int               `json:"difficulty"`
}

// State is the in-memory projection of one session the machine operates on.
// It is rebuilt from the store on every request and written back afterwards;
// the machine never holds it across requests.
type State struct {
	Course          string
	Topic           string
	Difficulty      int
	CurrentQuestion string
	Options         map[string]string
	UserAnswer      string
	CorrectAnswer   string
	Explanation     string
	Score           int
	TotalQuestions  int
	Feedback        string
	Phase           Phase
	CreatedAt       time.Time
}

// QuestionSource produces a question for the given scope and difficulty.
// history is a compact record of prior questions in the session, used to bias
// the source away from repetition.
type QuestionSource interface {
	Generate(ctx context.Context, course, topic string, difficulty int, history string) (*MCQ, error)
}

// FeedbackSource produces prose feedback for an answered question.
type FeedbackSource interface {
	Generate(ctx context.Context, course, topic, question, userAnswer, correctAnswer, explanation string) (string, error)
}

// AnswerResult reports the outcome of a SubmitAnswer transition. All scoring
// fields are populated even when the feedback call failed.
type AnswerResult struct {
	IsCorrect      bool   `json:"is_correct"`
	Feedback       string `json:"feedback"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"total_questions"`
	Difficulty     int    `json:"new_difficulty"`
}
