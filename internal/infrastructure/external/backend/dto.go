package backend

// ══════════════════════════════════════════════════════════════════════════════
// PRIMARY BACKEND DTOs
// ══════════════════════════════════════════════════════════════════════════════

// UserDTO is a user as the Primary Backend reports it.
// ID belongs to the Primary Backend, not to the Remote Store.
type UserDTO struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// TelegramUserResponse is the body of GET /telegram/user/{id}.
type TelegramUserResponse struct {
	Success bool     `json:"success"`
	User    *UserDTO `json:"user,omitempty"`
	Message string   `json:"message,omitempty"`
}

// TelegramData is the sender profile forwarded on link.
type TelegramData struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// LinkRequest is the body of POST /telegram/link.
type LinkRequest struct {
	Email        string       `json:"email"`
	Password     string       `json:"password"`
	TelegramData TelegramData `json:"telegram_data"`
}

// LinkResponse is the body returned by POST /telegram/link.
type LinkResponse struct {
	Success bool     `json:"success"`
	User    *UserDTO `json:"user,omitempty"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// SubjectDTO is one entry of GET /subjects.
type SubjectDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FacultyName   string `json:"faculty_name"`
	QuestionCount int    `json:"question_count"`
}

type subjectsResponse struct {
	Subjects []SubjectDTO `json:"subjects"`
}

// StatsDTO is the stats object of GET /user/{id}/stats.
type StatsDTO struct {
	TotalTests     int     `json:"total_tests"`
	AvgPercentage  float64 `json:"avg_percentage"`
	BestPercentage float64 `json:"best_percentage"`
	SubjectsTested int     `json:"subjects_tested"`
}

type statsResponse struct {
	Stats *StatsDTO `json:"stats"`
}
