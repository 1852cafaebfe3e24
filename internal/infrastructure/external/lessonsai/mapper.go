// Package lessonsai implements the LessonsAI generator API client.
package lessonsai

import (
	"errors"
	"strings"

	"github.com/deoglory/study-engine/internal/domain/practice"
)

// ErrNilDTO is returned when a nil DTO is passed to a mapper method.
var ErrNilDTO = errors.New("lessonsai: nil DTO")

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to Domain Entity transformations
// ══════════════════════════════════════════════════════════════════════════════

// Mapper handles transformation between LessonsAI DTOs and domain entities.
// This follows the Anti-Corruption Layer pattern from DDD, protecting the
// domain from external API changes: every question is validated before it
// enters a session snapshot.
type Mapper struct{}

// NewMapper creates a new Mapper instance.
func NewMapper() *Mapper {
	return &Mapper{}
}

// QuestionFromDTO converts a QuestionDTO to a domain question.
func (m *Mapper) QuestionFromDTO(dto QuestionDTO) (practice.Question, error) {
	q := practice.Question{
		ID:              strings.TrimSpace(dto.ID),
		Kind:            practice.QuestionKind(strings.ToLower(strings.TrimSpace(dto.Kind))),
		Prompt:          strings.TrimSpace(dto.Prompt),
		Options:         dto.Options,
		CorrectOption:   dto.CorrectOption,
		CorrectBool:     dto.CorrectBool,
		AcceptedAnswers: dto.AcceptedAnswers,
	}
	if err := q.Validate(); err != nil {
		return practice.Question{}, err
	}
	return q, nil
}

// QuestionsFromDTO converts a week payload to domain questions, keeping
// the generator's order. A single malformed question rejects the whole
// set: a quiz with a hole in it is unusable.
func (m *Mapper) QuestionsFromDTO(dto *WeekQuestionsDTO) ([]practice.Question, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}

	questions := make([]practice.Question, 0, len(dto.Questions))
	for _, qd := range dto.Questions {
		q, err := m.QuestionFromDTO(qd)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}
