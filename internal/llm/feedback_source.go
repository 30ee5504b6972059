package llm

import (
	"context"
	"fmt"
	"strings"

	"mcq-service/internal/quiz"
)

// FeedbackSource generates tutoring feedback through the chat API.
type FeedbackSource struct {
	client *Client
}

func NewFeedbackSource(client *Client) *FeedbackSource {
	return &FeedbackSource{client: client}
}

// Generate returns prose feedback for an answered question, trimmed of
// surrounding whitespace. Failures surface as quiz.ErrFeedbackGeneration;
// by the time this is called the scoring update has already committed.
func (s *FeedbackSource) Generate(ctx context.Context, course, topic, question, userAnswer, correctAnswer, explanation string) (string, error) {
	prompt := fmt.Sprintf(feedbackPrompt, course, topic, question, userAnswer, correctAnswer, explanation)

	text, err := s.client.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", quiz.ErrFeedbackGeneration, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", quiz.ErrFeedbackGeneration)
	}
	return text, nil
}
