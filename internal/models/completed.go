package models

import "time"

// CompletedQuiz is the immutable archival record written when a session ends.
// CreatedAt carries over the session's creation time; UpdatedAt is the time the
// session was ended. These records feed downstream profile analytics.
type CompletedQuiz struct {
	SessionID       string    `bson:"_id" json:"session_id"`
	StudentID       string    `bson:"student_id" json:"student_id"`
	Course          string    `bson:"course" json:"course"`
	Topic           string    `bson:"topic" json:"topic"`
	FinalDifficulty int       `bson:"final_difficulty" json:"final_difficulty"`
	Score           int       `bson:"score" json:"score"`
	TotalQuestions  int       `bson:"total_questions" json:"total_questions"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}
