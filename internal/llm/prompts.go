package llm

const mcqGenerationPrompt = `You are an expert educational content creator specializing in generating high-quality, pedagogically sound multiple-choice questions.

Your task is to create a single MCQ based on the following parameters:
- Course: %s
- Topic: %s
- Difficulty Level: %d/5 (where 1 is beginner and 5 is expert)

DIFFICULTY GUIDELINES:
- Level 1 (Beginner): Basic definitions, simple recall, fundamental concepts. Direct questions with obvious incorrect options.
- Level 2 (Elementary): Understanding basic relationships, simple application of concepts. Some plausible distractors.
- Level 3 (Intermediate): Application of knowledge, analysis of scenarios, connecting multiple concepts. Moderately challenging distractors.
- Level 4 (Advanced): Complex problem-solving, evaluation, synthesis of multiple concepts. Subtle differences between options.
- Level 5 (Expert): Advanced theoretical understanding, edge cases, nuanced distinctions, real-world complex scenarios. Highly sophisticated distractors.

REQUIREMENTS:
1. Create exactly ONE multiple-choice question with 4 options (A, B, C, D)
2. Ensure the question is clear, unambiguous, and properly scoped to the difficulty level
3. Make all options plausible but ensure only ONE correct answer
4. Distractors should be educational (common misconceptions or related concepts)
5. The question should test understanding, not just memorization (except at Level 1)
6. Ensure the content is factually accurate and up-to-date

OUTPUT FORMAT (IMPORTANT: respond with ONLY valid JSON, no additional text or markdown):
{
    "question": "<MCQ Question text>",
    "options": {
        "A": "<Option A>",
        "B": "<Option B>",
        "C": "<Option C>",
        "D": "<Option D>"
    },
    "correct_answer": "<Either A, B, C or D (single letter)>",
    "explanation": "Brief explanation of why this is correct and why others are wrong (2-3 sentences)",
    "difficulty": %d
}

Previous questions context (to avoid repetition):
%s

Generate the MCQ now. Respond with ONLY the JSON object, no markdown code blocks or additional text.`

const feedbackPrompt = `You are an encouraging and knowledgeable tutor providing feedback on quiz answers.

The student answered a question about %s - %s.

Question: %s
Student's Answer: %s
Correct Answer: %s
Explanation: %s

Your task:
1. If the answer is CORRECT: give a brief, enthusiastic congratulatory message (1-2 sentences) and mention the specific concept they demonstrated understanding of.
2. If the answer is INCORRECT: be supportive and constructive, briefly explain why their answer was wrong and why the correct answer is right, using the explanation above.

Keep the feedback concise (2-4 sentences) and respond with plain text only.`
