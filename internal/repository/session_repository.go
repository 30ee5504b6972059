package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mcq-service/internal/models"
	"mcq-service/internal/quiz"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// SessionRepository stores live quiz sessions. Writes after creation go
// through a compare-and-swap on the version field so concurrent
// read-modify-write cycles against the same (student_id, session_id) key
// cannot silently overwrite each other.
type SessionRepository struct {
	Col *mongo.Collection
}

func NewSessionRepository(db *mongo.Database) *SessionRepository {
	return &SessionRepository{Col: db.Collection("quiz_sessions")}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.QuizSession) error {
	session.Version = 1
	session.CreatedAt = session.CreatedAt.UTC()
	session.UpdatedAt = time.Now().UTC()
	_, err := r.Col.InsertOne(ctx, session)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: session %s already exists", quiz.ErrWriteConflict, session.SessionID)
	}
	return err
}

func (r *SessionRepository) Find(ctx context.Context, studentID, sessionID string) (*models.QuizSession, error) {
	var session models.QuizSession
	err := r.Col.FindOne(ctx, bson.M{"_id": sessionID, "student_id": studentID}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, quiz.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Update writes the session back under the version it was read at. A zero
// match count means another request won the race (or the session was ended
// concurrently); the caller gets quiz.ErrWriteConflict and nothing is written.
func (r *SessionRepository) Update(ctx context.Context, session *models.QuizSession) error {
	filter := bson.M{
		"_id":        session.SessionID,
		"student_id": session.StudentID,
		"version":    session.Version,
	}
	update := bson.M{
		"$set": bson.M{
			"difficulty":       session.Difficulty,
			"current_question": session.CurrentQuestion,
			"options":          session.Options,
			"user_answer":      session.UserAnswer,
			"correct_answer":   session.CorrectAnswer,
			"explanation":      session.Explanation,
			"score":            session.Score,
			"total_questions":  session.TotalQuestions,
			"feedback":         session.Feedback,
			"phase":            session.Phase,
			"updated_at":       time.Now().UTC(),
		},
		"$inc": bson.M{"version": 1},
	}

	res, err := r.Col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return quiz.ErrWriteConflict
	}
	session.Version++
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, studentID, sessionID string) (bool, error) {
	res, err := r.Col.DeleteOne(ctx, bson.M{"_id": sessionID, "student_id": studentID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *SessionRepository) CountSessions(ctx context.Context) (int64, error) {
	return r.Col.CountDocuments(ctx, bson.M{})
}

func (r *SessionRepository) CountDistinctStudents(ctx context.Context) (int64, error) {
	students, err := r.Col.Distinct(ctx, "student_id", bson.M{})
	if err != nil {
		return 0, err
	}
	return int64(len(students)), nil
}

// SessionIDsByStudent returns the ids of all live sessions grouped by their
// owning student.
func (r *SessionRepository) SessionIDsByStudent(ctx context.Context) (map[string][]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":      "$student_id",
			"sessions": bson.M{"$push": "$_id"},
		}}},
	}
	cur, err := r.Col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	grouped := make(map[string][]string)
	for cur.Next(ctx) {
		var row struct {
			StudentID string   `bson:"_id"`
			Sessions  []string `bson:"sessions"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		grouped[row.StudentID] = row.Sessions
	}
	return grouped, cur.Err()
}
