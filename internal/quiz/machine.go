package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const noHistory = "No previous questions."

// Machine runs the two-phase session state machine. Each method executes
// exactly one transition with at most one external-source call and validates
// its own precondition; illegal calls leave the state untouched.
type Machine struct {
	questions QuestionSource
	feedback  FeedbackSource
}

// NewMachine creates a state machine backed by the given sources.
func NewMachine(questions QuestionSource, feedback FeedbackSource) *Machine {
	return &Machine{questions: questions, feedback: feedback}
}

// GenerateQuestion runs the AwaitingQuestion -> AwaitingAnswer transition.
// On success the state carries the new question, its answer key and the
// difficulty echoed by the source. On failure the state is unchanged.
func (m *Machine) GenerateQuestion(ctx context.Context, st *State) error {
	if st.Phase != PhaseAwaitingQuestion {
		return fmt.Errorf("%w: a question is already active", ErrInvalidPhase)
	}

	history := st.CurrentQuestion
	if history == "" {
		history = noHistory
	}

	mcq, err := m.questions.Generate(ctx, st.Course, st.Topic, st.Difficulty, history)
	if err != nil {
		if !errors.Is(err, ErrGenerationParse) {
			err = fmt.Errorf("%w: %v", ErrGenerationParse, err)
		}
		return err
	}

	st.CurrentQuestion = mcq.Question
	st.Options = mcq.Options
	st.CorrectAnswer = mcq.CorrectAnswer
	st.Explanation = mcq.Explanation
	// The source may hold or adjust difficulty; its echo is authoritative.
	st.Difficulty = mcq.Difficulty
	st.Phase = PhaseAwaitingAnswer
	return nil
}

// SubmitAnswer runs the AwaitingAnswer -> AwaitingQuestion transition:
// correctness check, scoring, the difficulty ratchet and the feedback call,
// in that order. Scoring and the ratchet commit before feedback is requested,
// so a feedback failure returns ErrFeedbackGeneration together with a result
// whose score, total and difficulty are authoritative.
func (m *Machine) SubmitAnswer(ctx context.Context, st *State, answer string) (*AnswerResult, error) {
	if st.Phase != PhaseAwaitingAnswer {
		return nil, fmt.Errorf("%w: no active question", ErrInvalidPhase)
	}

	normalized := strings.ToUpper(strings.TrimSpace(answer))
	switch normalized {
	case "A", "B", "C", "D":
	default:
		return nil, fmt.Errorf("%w: got %q", ErrInvalidAnswer, answer)
	}

	correctAnswer := strings.ToUpper(strings.TrimSpace(st.CorrectAnswer))
	isCorrect := normalized == correctAnswer

	st.UserAnswer = normalized
	if isCorrect {
		st.Score++
	}
	st.TotalQuestions++
	st.Difficulty = nextDifficulty(st.Difficulty, isCorrect)
	st.Phase = PhaseAwaitingQuestion

	result := &AnswerResult{
		IsCorrect:      isCorrect,
		Score:          st.Score,
		TotalQuestions: st.TotalQuestions,
		Difficulty:     st.Difficulty,
	}

	text, err := m.feedback.Generate(ctx, st.Course, st.Topic, st.CurrentQuestion,
		normalized, correctAnswer, st.Explanation)
	if err != nil {
		if !errors.Is(err, ErrFeedbackGeneration) {
			err = fmt.Errorf("%w: %v", ErrFeedbackGeneration, err)
		}
		return result, err
	}

	st.Feedback = strings.TrimSpace(text)
	result.Feedback = st.Feedback
	return result, nil
}

// nextDifficulty applies the adaptive ratchet: one step up on a correct
// answer, one step down on an incorrect one, saturating at the bounds.
func nextDifficulty(current int, isCorrect bool) int {
	if isCorrect && current < MaxDifficulty {
		return current + 1
	}
	if !isCorrect && current > MinDifficulty {
		return current - 1
	}
	return current
}
