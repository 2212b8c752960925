package state

type entry[T any] struct {
	id uint64
	fn func(T)
}

// observers is an ordered list of callbacks. It is guarded by Store.mu.
type observers[T any] struct {
	entries []entry[T]
}

func (o *observers[T]) add(id uint64, fn func(T)) {
	o.entries = append(o.entries, entry[T]{id: id, fn: fn})
}

func (o *observers[T]) remove(id uint64) {
	for i, e := range o.entries {
		if e.id == id {
			o.entries = append(o.entries[:i:i], o.entries[i+1:]...)
			return
		}
	}
}

// list returns a copy that can be iterated without holding the lock.
func (o *observers[T]) list() []func(T) {
	fns := make([]func(T), len(o.entries))
	for i, e := range o.entries {
		fns[i] = e.fn
	}
	return fns
}

func notify[T any](fns []func(T), v T) {
	for _, fn := range fns {
		fn(v)
	}
}
