package glue

import "fmt"

// Optional is either a present value or absence. Reading the value of an
// absent Optional is a contract violation.
type Optional[T any] struct {
	present bool
	value   T
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{present: true, value: v}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// IsPresent reports whether o holds a value.
func (o Optional[T]) IsPresent() bool { return o.present }

// Get returns the value and whether it is present. When absent the
// returned value is the zero value of T.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

// MustGet returns the value and panics when o is absent.
func (o Optional[T]) MustGet() T {
	if !o.present {
		var zero T
		panic(fmt.Sprintf("glue: read of absent Optional[%T]", zero))
	}
	return o.value
}

// OrElse returns the value, or def when o is absent.
func (o Optional[T]) OrElse(def T) T {
	if !o.present {
		return def
	}
	return o.value
}

func (o Optional[T]) String() string {
	if !o.present {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", o.value)
}
