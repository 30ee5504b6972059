package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mcq-service/internal/quiz"

	"github.com/xeipuuv/gojsonschema"
)

// mcqSchema is the strict contract for the question source payload: exactly
// four labeled options, a correct label in {A,B,C,D} and a difficulty echo in
// [1,5]. Anything the model returns that does not satisfy it is a
// GenerationParseError, never a silent repair.
const mcqSchema = `{
	"type": "object",
	"required": ["question", "options", "correct_answer", "explanation", "difficulty"],
	"properties": {
		"question": {"type": "string", "minLength": 1},
		"options": {
			"type": "object",
			"required": ["A", "B", "C", "D"],
			"properties": {
				"A": {"type": "string"},
				"B": {"type": "string"},
				"C": {"type": "string"},
				"D": {"type": "string"}
			},
			"additionalProperties": false
		},
		"correct_answer": {"type": "string", "enum": ["A", "B", "C", "D"]},
		"explanation": {"type": "string", "minLength": 1},
		"difficulty": {"type": "integer", "minimum": 1, "maximum": 5}
	}
}`

var mcqSchemaLoader = gojsonschema.NewStringLoader(mcqSchema)

// QuestionSource generates multiple-choice questions through the chat API.
type QuestionSource struct {
	client *Client
}

func NewQuestionSource(client *Client) *QuestionSource {
	return &QuestionSource{client: client}
}

// Generate asks for one MCQ scoped to course/topic at the given difficulty.
// Every failure mode, from transport to malformed payload, surfaces as
// quiz.ErrGenerationParse so the caller can retry the same transition.
func (s *QuestionSource) Generate(ctx context.Context, course, topic string, difficulty int, history string) (*quiz.MCQ, error) {
	prompt := fmt.Sprintf(mcqGenerationPrompt, course, topic, difficulty, difficulty, history)

	raw, err := s.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", quiz.ErrGenerationParse, err)
	}

	payload, err := extractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", quiz.ErrGenerationParse, err)
	}

	result, err := gojsonschema.Validate(mcqSchemaLoader, gojsonschema.NewStringLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: schema validation: %v", quiz.ErrGenerationParse, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("%w: %s", quiz.ErrGenerationParse, strings.Join(details, "; "))
	}

	var mcq quiz.MCQ
	if err := json.Unmarshal([]byte(payload), &mcq); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", quiz.ErrGenerationParse, err)
	}
	return &mcq, nil
}
