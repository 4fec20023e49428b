package postgres

import (
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/crm/internal/domain"
)

// whereBuilder собирает условия WHERE с позиционными параметрами $n.
type whereBuilder struct {
	conds []string
	args  []any
}

// bind добавляет аргумент и возвращает его плейсхолдер.
func (w *whereBuilder) bind(arg any) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}

// add добавляет условие с одним плейсхолдером "?".
func (w *whereBuilder) add(cond string, arg any) {
	w.conds = append(w.conds, strings.Replace(cond, "?", w.bind(arg), 1))
}

func (w *whereBuilder) addContains(column, value string) {
	if value == "" {
		return
	}
	w.add(column+" ILIKE ?", containsPattern(value))
}

func (w *whereBuilder) addTimeRange(column string, r domain.TimeRange) {
	if !r.From.IsZero() {
		w.add(column+" >= ?", r.From)
	}
	if !r.To.IsZero() {
		w.add(column+" < ?", r.To)
	}
}

func (w *whereBuilder) addDecimalRange(column string, r domain.DecimalRange) {
	if r.Min != nil {
		w.add(column+" >= ?", *r.Min)
	}
	if r.Max != nil {
		w.add(column+" <= ?", *r.Max)
	}
}

func (w *whereBuilder) addIntRange(column string, r domain.IntRange) {
	if r.Min != nil {
		w.add(column+" >= ?", *r.Min)
	}
	if r.Max != nil {
		w.add(column+" <= ?", *r.Max)
	}
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderClause превращает распознанную сортировку в ORDER BY; иначе порядок вставки.
// Колонки берутся только из columns, пользовательская строка в SQL не попадает.
func orderClause(ordering domain.Ordering, ok bool, columns map[string]string, seqColumn string) string {
	column, known := columns[ordering.Field]
	if !ok || !known {
		return " ORDER BY " + seqColumn
	}
	direction := "ASC"
	if ordering.Desc {
		direction = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s", column, direction, seqColumn)
}

func containsPattern(s string) string {
	return "%" + escapeLike(s) + "%"
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
