// Package testresult содержит результаты тестов, зеркалируемые из основного бэкенда.
// Результаты только добавляются.
package testresult

import (
	"context"
	"time"
)

// TestResult - один пройденный тест.
type TestResult struct {
	ID             int64
	UserID         int64
	SubjectID      int64
	CorrectAnswers int
	TotalQuestions int
	CreatedAt      time.Time
}

// Repository сохраняет результаты тестов.
type Repository interface {
	// Insert добавляет результат и возвращает его ID.
	Insert(ctx context.Context, r *TestResult) (int64, error)
}
