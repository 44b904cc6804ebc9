package postgres

import (
	"context"
	"fmt"

	"github.com/auniver/quiz-bridge/internal/domain/testresult"
)

// Compile-time interface check.
var _ testresult.Repository = (*TestResultRepository)(nil)

// TestResultRepository implements testresult.Repository.
type TestResultRepository struct {
	conn *Connection
}

// NewTestResultRepository creates a new TestResultRepository.
func NewTestResultRepository(conn *Connection) *TestResultRepository {
	return &TestResultRepository{conn: conn}
}

// Insert appends a test result and returns its id.
func (r *TestResultRepository) Insert(ctx context.Context, tr *testresult.TestResult) (int64, error) {
	query := `
		INSERT INTO test_result (user_id, subject_id, correct_answers, total_questions)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.conn.QueryRow(ctx, query,
		tr.UserID,
		tr.SubjectID,
		tr.CorrectAnswers,
		tr.TotalQuestions,
	).Scan(&tr.ID, &tr.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert test result: %w", err)
	}

	return tr.ID, nil
}
