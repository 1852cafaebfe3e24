package practice

import (
	"strconv"
	"strings"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUESTION (размеченный вариант: multiple_choice | true_false | fill_blank)
// ══════════════════════════════════════════════════════════════════════════════
//
// Все типы вопросов разделяют один контракт Evaluate(answer) → correct,
// чтобы подсчёт очков в движке практики оставался единообразным.

// QuestionKind представляет тип вопроса.
type QuestionKind string

const (
	// KindMultipleChoice - выбор одного из вариантов.
	KindMultipleChoice QuestionKind = "multiple_choice"
	// KindTrueFalse - утверждение верно/неверно.
	KindTrueFalse QuestionKind = "true_false"
	// KindFillBlank - заполнение пропуска текстом.
	KindFillBlank QuestionKind = "fill_blank"
)

// IsValid проверяет, что тип вопроса известен.
func (k QuestionKind) IsValid() bool {
	switch k {
	case KindMultipleChoice, KindTrueFalse, KindFillBlank:
		return true
	}
	return false
}

// Question представляет один вопрос практики.
// Поля-варианты заполняются в зависимости от Kind.
type Question struct {
	// ID - идентификатор вопроса.
	ID string `json:"id"`

	// Kind - тип вопроса.
	Kind QuestionKind `json:"kind"`

	// Prompt - текст вопроса.
	Prompt string `json:"prompt"`

	// Options - варианты ответа (только multiple_choice).
	Options []string `json:"options,omitempty"`

	// CorrectOption - индекс правильного варианта (только multiple_choice).
	CorrectOption int `json:"-"`

	// CorrectBool - правильный ответ (только true_false).
	CorrectBool bool `json:"-"`

	// AcceptedAnswers - допустимые ответы (только fill_blank).
	// Сравнение регистронезависимое, пробелы по краям игнорируются.
	AcceptedAnswers []string `json:"-"`
}

// Validate проверяет согласованность вопроса с его типом.
func (q Question) Validate() error {
	if q.ID == "" || q.Prompt == "" {
		return shared.NewDomainError("practice", "Validate", shared.ErrInvalidEntity, "question without id or prompt")
	}
	switch q.Kind {
	case KindMultipleChoice:
		if len(q.Options) < 2 {
			return shared.NewDomainError("practice", "Validate", shared.ErrInvalidEntity, "multiple choice needs at least two options")
		}
		if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
			return shared.NewDomainError("practice", "Validate", shared.ErrInvalidEntity, "correct option out of range")
		}
	case KindTrueFalse:
		// Нечего проверять: CorrectBool всегда валиден.
	case KindFillBlank:
		if len(q.AcceptedAnswers) == 0 {
			return shared.NewDomainError("practice", "Validate", shared.ErrInvalidEntity, "fill blank needs accepted answers")
		}
	default:
		return shared.NewDomainError("practice", "Validate", shared.ErrInvalidEntity, "unknown question kind")
	}
	return nil
}

// Evaluate проверяет ответ пользователя.
// Формат ответа зависит от типа вопроса:
//   - multiple_choice: индекс варианта ("0", "1", ...);
//   - true_false: "true" или "false";
//   - fill_blank: произвольный текст.
func (q Question) Evaluate(answer string) (bool, error) {
	answer = strings.TrimSpace(answer)
	switch q.Kind {
	case KindMultipleChoice:
		idx, err := strconv.Atoi(answer)
		if err != nil || idx < 0 || idx >= len(q.Options) {
			return false, shared.NewDomainError("practice", "Evaluate", shared.ErrInvalidInput, "answer is not a valid option index")
		}
		return idx == q.CorrectOption, nil

	case KindTrueFalse:
		switch strings.ToLower(answer) {
		case "true":
			return q.CorrectBool, nil
		case "false":
			return !q.CorrectBool, nil
		default:
			return false, shared.NewDomainError("practice", "Evaluate", shared.ErrInvalidInput, "answer must be true or false")
		}

	case KindFillBlank:
		normalized := strings.ToLower(answer)
		for _, accepted := range q.AcceptedAnswers {
			if strings.ToLower(strings.TrimSpace(accepted)) == normalized {
				return true, nil
			}
		}
		return false, nil
	}
	return false, shared.NewDomainError("practice", "Evaluate", shared.ErrInvalidEntity, "unknown question kind")
}
