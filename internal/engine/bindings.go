package engine

// Bindings — run-scoped переменные для интерполяции.
//
// Семантика append-only со снапшотами по шагам: каждый шаг видит
// binding'и на момент конца предыдущего шага. Extend не мутирует
// исходную map, а возвращает новый снапшот — так результат шага N
// гарантированно не виден самому шагу N, и будущее распараллеливание
// шагов не меняет семантику "чья экстракция победила".
type Bindings map[string]string

// NewBindings создаёт стартовый снапшот из initial_variables вызывающего.
// nil допустим — получается пустой набор.
func NewBindings(initial map[string]string) Bindings {
	b := make(Bindings, len(initial))
	for k, v := range initial {
		b[k] = v
	}
	return b
}

// Extend возвращает новый снапшот: текущие binding'и плюс extra.
// Коллизия имён разрешается в пользу extra (более поздний шаг побеждает).
func (b Bindings) Extend(extra map[string]string) Bindings {
	if len(extra) == 0 {
		return b
	}
	next := make(Bindings, len(b)+len(extra))
	for k, v := range b {
		next[k] = v
	}
	for k, v := range extra {
		next[k] = v
	}
	return next
}

// Lookup возвращает значение переменной.
func (b Bindings) Lookup(name string) (string, bool) {
	v, ok := b[name]
	return v, ok
}

// Len возвращает количество переменных.
func (b Bindings) Len() int {
	return len(b)
}
