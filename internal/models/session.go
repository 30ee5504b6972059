package models

import "time"

// QuizSession is the live state of one adaptive quiz session. It is keyed by
// (student_id, session_id); a session is only visible to its owning student.
// Version backs optimistic locking: every write is a compare-and-swap on the
// version read, so concurrent submissions against the same session cannot
// double-count the score or corrupt the phase.
type QuizSession struct {
	SessionID       string            `bson:"_id" json:"session_id"`
	StudentID       string            `bson:"student_id" json:"student_id"`
	Course          string            `bson:"course" json:"course"`
	Topic           string            `bson:"topic" json:"topic"`
	Difficulty      int               `bson:"difficulty" json:"difficulty"`
	CurrentQuestion string            `bson:"current_question" json:"current_question"`
	Options         map[string]string `bson:"options" json:"options"`
	UserAnswer      string            `bson:"user_answer" json:"user_answer"`
	CorrectAnswer   string            `bson:"correct_answer" json:"-"`
	Explanation     string            `bson:"explanation" json:"-"`
	Score           int               `bson:"score" json:"score"`
	TotalQuestions  int               `bson:"total_questions" json:"total_questions"`
	Feedback        string            `bson:"feedback" json:"feedback"`
	Phase           string            `bson:"phase" json:"phase"`
	Version         int64             `bson:"version" json:"-"`
	CreatedAt       time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `bson:"updated_at" json:"updated_at"`
}
