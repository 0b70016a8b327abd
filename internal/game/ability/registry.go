package ability

import (
	"maps"
	"slices"
)

// Func is an ability effect function. It runs after validation, target
// resolution and mana/cooldown spending; the definition's effect specs are
// applied after it returns (except for "apply", which applies them itself).
type Func func(ctx *Context) error

// funcs maps func key → implementation. Populated by init() in builtin.go and script.go.
var funcs = map[string]Func{}

// Register registers an ability func by key. Later registrations replace earlier ones.
func Register(key string, fn Func) {
	funcs[key] = fn
}

func lookup(key string) (Func, bool) {
	fn, ok := funcs[key]
	return fn, ok
}

// Keys returns registered func keys, sorted.
func Keys() []string {
	return slices.Sorted(maps.Keys(funcs))
}
