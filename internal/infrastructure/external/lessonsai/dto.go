package lessonsai

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// API RESPONSE WRAPPERS
// ══════════════════════════════════════════════════════════════════════════════

// APIResponse represents a generic API response wrapper.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION DTOs
// ══════════════════════════════════════════════════════════════════════════════

// QuestionDTO represents a question as returned by the LessonsAI API.
// This is the external representation that gets mapped to the domain model.
type QuestionDTO struct {
	// ID is the question identifier assigned by the generator.
	ID string `json:"id"`

	// Kind is the question type: multiple_choice, true_false or fill_blank.
	Kind string `json:"kind"`

	// Prompt is the question text.
	Prompt string `json:"prompt"`

	// Options holds the answer options (multiple_choice only).
	Options []string `json:"options,omitempty"`

	// CorrectOption is the index of the correct option (multiple_choice only).
	CorrectOption int `json:"correct_option"`

	// CorrectBool is the correct answer (true_false only).
	CorrectBool bool `json:"correct_bool"`

	// AcceptedAnswers lists accepted answers (fill_blank only).
	AcceptedAnswers []string `json:"accepted_answers,omitempty"`
}

// WeekQuestionsDTO is the payload of the per-week questions endpoint.
type WeekQuestionsDTO struct {
	// WeekID identifies the study week the quiz belongs to.
	WeekID string `json:"week_id"`

	// Questions holds the generated questions in a fixed order.
	Questions []QuestionDTO `json:"questions"`

	// GeneratedAt is when the generator produced this set.
	GeneratedAt time.Time `json:"generated_at"`
}
