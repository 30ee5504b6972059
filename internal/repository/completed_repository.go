package repository

import (
	"context"
	"fmt"

	"mcq-service/internal/models"
	"mcq-service/internal/quiz"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CompletedQuizRepository stores the immutable archival records written when
// sessions end. The session id doubles as the document id, so a session can
// be archived at most once.
type CompletedQuizRepository struct {
	Col *mongo.Collection
}

func NewCompletedQuizRepository(db *mongo.Database) *CompletedQuizRepository {
	return &CompletedQuizRepository{Col: db.Collection("completed_quizzes")}
}

func (r *CompletedQuizRepository) Create(ctx context.Context, record *models.CompletedQuiz) error {
	_, err := r.Col.InsertOne(ctx, record)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: session %s already archived", quiz.ErrWriteConflict, record.SessionID)
	}
	return err
}

// FindByStudent lists a student's archived quizzes, newest first.
func (r *CompletedQuizRepository) FindByStudent(ctx context.Context, studentID string, skip, limit int64) ([]models.CompletedQuiz, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cur, err := r.Col.Find(ctx, bson.M{"student_id": studentID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var records []models.CompletedQuiz
	for cur.Next(ctx) {
		var rec models.CompletedQuiz
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, cur.Err()
}
