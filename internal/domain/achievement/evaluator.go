package achievement

import (
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// Evaluator проверяет условия достижений против снимка прогресса.
// Без состояния: каталог передаётся при создании, снимок - при оценке.
//
// Оценка идемпотентна и не зависит от порядка: повторная оценка или
// оценка в любом порядке дают одно и то же итоговое множество
// разблокированных достижений.
type Evaluator struct {
	catalog []Achievement
}

// NewEvaluator создаёт оценщик с заданным каталогом.
func NewEvaluator(catalog []Achievement) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// Evaluate возвращает достижения, которые должны быть разблокированы
// по снимку, но ещё не разблокированы. Результат отсортирован по коду,
// чтобы вывод был детерминированным.
func (e *Evaluator) Evaluate(snapshot Snapshot, unlockedCodes map[string]bool, now time.Time) []Unlock {
	var delta []Unlock
	for _, a := range e.catalog {
		if unlockedCodes[a.Code] {
			continue
		}
		if a.Requirement.IsSatisfied(snapshot) {
			delta = append(delta, Unlock{
				UserID:     snapshot.UserID,
				Code:       a.Code,
				UnlockedAt: now.UTC(),
			})
		}
	}
	sort.Slice(delta, func(i, j int) bool { return delta[i].Code < delta[j].Code })
	return delta
}

// Get возвращает запись каталога по коду.
func (e *Evaluator) Get(code string) (Achievement, bool) {
	for _, a := range e.catalog {
		if a.Code == code {
			return a, true
		}
	}
	return Achievement{}, false
}

// Catalog возвращает каталог достижений.
func (e *Evaluator) Catalog() []Achievement {
	return e.catalog
}
