package common

// registry hands out the opaque uint64 handles the renderer sees for Vulkan objects. Handles start at 1 so
// the zero value stays the null handle, and they are never reused.
type registry[T any] struct {
	next  uint64
	items map[uint64]T
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{items: make(map[uint64]T)}
}

func (r *registry[T]) add(v T) uint64 {
	r.next++
	r.items[r.next] = v
	return r.next
}

func (r *registry[T]) get(h uint64) (T, bool) {
	v, ok := r.items[h]
	return v, ok
}

// mustGet panics for unknown handles. A stale handle reaching the backend is a bug in the caller.
func (r *registry[T]) mustGet(h uint64, kind string) T {
	v, ok := r.items[h]
	if !ok {
		panicf("unknown %s handle %d", kind, h)
	}
	return v
}

func (r *registry[T]) remove(h uint64) (T, bool) {
	v, ok := r.items[h]
	if ok {
		delete(r.items, h)
	}
	return v, ok
}

func (r *registry[T]) len() int {
	return len(r.items)
}

// each visits every live object. Removing the visited handle from inside fn is allowed.
func (r *registry[T]) each(fn func(h uint64, v T)) {
	for h, v := range r.items {
		fn(h, v)
	}
}
