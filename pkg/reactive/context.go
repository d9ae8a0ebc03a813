package reactive

import "reflect"

// Provide stores value in the ambient current owner's context, keyed by
// its type. Descendant scopes retrieve it with Use. Providing a second
// value of the same type in the same scope replaces the first; providing
// it in a child scope shadows the parent's for that subtree.
//
//	type Theme struct{ Dark bool }
//
//	root.With(func() {
//	    Provide(Theme{Dark: true})
//	    child.With(func() {
//	        theme, ok := Use[Theme]() // walks outward: child, then root
//	    })
//	})
func Provide[T any](value T) {
	currentOwner().provide(typeKey[T](), value)
}

// Use retrieves the nearest context value of type T, walking from the
// ambient current owner outward to the root. The second result reports
// whether a value was found.
func Use[T any]() (T, bool) {
	v, ok := currentOwner().lookup(typeKey[T]())
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return typed, true
}

// typeKey returns the reflect.Type for T, valid for interface types too.
func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
