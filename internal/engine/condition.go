package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/shaiso/conveyor/internal/domain"
)

// Evaluator — скомпилированное условие шага.
//
// Каждый из десяти операторов компилируется в свой вариант — замкнутое
// множество типов, а не одна функция с switch по строке. Так
// "body-оператору нужен field" обеспечивается конструктором варианта,
// а вычисление не знает про сырые {operator, field, value}.
type Evaluator interface {
	// Satisfied проверяет условие против исхода вызова.
	// body — сырое тело ответа; непарсящееся тело под body-оператором
	// даёт "не выполнено", никогда не ошибку.
	Satisfied(statusCode int, body []byte) bool
}

// Compile компилирует StepCondition в Evaluator.
//
// Ошибки компиляции — ошибки конфигурации: граница сохранения (api)
// обязана их отлавливать; executor при встрече в рантайме фейлит шаг
// без единого вызова.
func Compile(cond *domain.StepCondition) (Evaluator, error) {
	if cond == nil {
		return nil, nil
	}

	switch cond.Operator {
	case domain.OpStatusCodeEquals:
		code, err := intValue(cond.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadConditionValue, cond.Operator, err)
		}
		return &statusEquals{code: code}, nil

	case domain.OpStatusCodeIn, domain.OpStatusCodeNotIn:
		codes, err := intListValue(cond.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadConditionValue, cond.Operator, err)
		}
		return &statusIn{codes: codes, negate: cond.Operator == domain.OpStatusCodeNotIn}, nil

	case domain.OpEquals, domain.OpNotEquals:
		field, err := bodyField(cond)
		if err != nil {
			return nil, err
		}
		return &bodyEquals{field: field, want: stringValue(cond.Value), negate: cond.Operator == domain.OpNotEquals}, nil

	case domain.OpContains, domain.OpNotContains:
		field, err := bodyField(cond)
		if err != nil {
			return nil, err
		}
		return &bodyContains{field: field, want: stringValue(cond.Value), negate: cond.Operator == domain.OpNotContains}, nil

	case domain.OpRegex:
		field, err := bodyField(cond)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(stringValue(cond.Value))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPattern, err)
		}
		return &bodyRegex{field: field, re: re}, nil

	case domain.OpExists, domain.OpNotExists:
		field, err := bodyField(cond)
		if err != nil {
			return nil, err
		}
		return &bodyExists{field: field, negate: cond.Operator == domain.OpNotExists}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, cond.Operator)
	}
}

// bodyField извлекает обязательный field body-оператора.
func bodyField(cond *domain.StepCondition) (string, error) {
	if cond.Field == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingField, cond.Operator)
	}
	return cond.Field, nil
}

// --- Варианты по статус-коду (field и body игнорируются) ---

type statusEquals struct {
	code int
}

func (e *statusEquals) Satisfied(statusCode int, _ []byte) bool {
	return statusCode == e.code
}

type statusIn struct {
	codes  []int
	negate bool
}

func (e *statusIn) Satisfied(statusCode int, _ []byte) bool {
	found := false
	for _, c := range e.codes {
		if c == statusCode {
			found = true
			break
		}
	}
	return found != e.negate
}

// --- Варианты по телу ответа ---

// lookupField достаёт значение поля из тела.
// Непарсящееся тело — поле не найдено.
func lookupField(body []byte, field string) (gjson.Result, bool) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, false
	}
	res := gjson.GetBytes(body, field)
	return res, res.Exists()
}

type bodyEquals struct {
	field  string
	want   string
	negate bool
}

func (e *bodyEquals) Satisfied(_ int, body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	res, ok := lookupField(body, e.field)
	equal := ok && res.String() == e.want
	return equal != e.negate
}

type bodyContains struct {
	field  string
	want   string
	negate bool
}

func (e *bodyContains) Satisfied(_ int, body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	res, ok := lookupField(body, e.field)
	contains := ok && strings.Contains(res.String(), e.want)
	return contains != e.negate
}

type bodyRegex struct {
	field string
	re    *regexp.Regexp
}

func (e *bodyRegex) Satisfied(_ int, body []byte) bool {
	res, ok := lookupField(body, e.field)
	return ok && e.re.MatchString(res.String())
}

type bodyExists struct {
	field  string
	negate bool
}

func (e *bodyExists) Satisfied(_ int, body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	_, ok := lookupField(body, e.field)
	return ok != e.negate
}

// --- Коэрция value из JSON ---

// intValue приводит value к int.
// Из JSON числа приходят как float64, из API-клиентов — как int или строка.
func intValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, err
		}
		return int(i), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

// intListValue приводит value к списку int.
func intListValue(v any) ([]int, error) {
	switch list := v.(type) {
	case []int:
		if len(list) == 0 {
			return nil, fmt.Errorf("empty status code list")
		}
		return list, nil
	case []any:
		if len(list) == 0 {
			return nil, fmt.Errorf("empty status code list")
		}
		codes := make([]int, 0, len(list))
		for _, item := range list {
			code, err := intValue(item)
			if err != nil {
				return nil, err
			}
			codes = append(codes, code)
		}
		return codes, nil
	default:
		return nil, fmt.Errorf("not an integer list: %T", v)
	}
}

// stringValue приводит value к строке для body-сравнений.
// Числа и bool сравниваются через их текстовое представление —
// так "42" из body матчится и с value 42, и с value "42".
func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}
