// Package tailq implements a FIFO queue class on the cobj runtime. Its
// instance operations are dispatched dynamically, so subclasses may override
// any of them; construction and destruction are class-side operations.
package tailq

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/libcobj/cobj"
)

// ErrNotSupported is returned by the default implementations, for classes
// that do not implement an operation.
var ErrNotSupported = errors.New("tailq: operation not supported")

// Queue is an instance of Class.
type Queue struct {
	cobj.Object

	mu    sync.Mutex
	items list.List
}

// queuer is implemented by *Queue and by every type embedding Queue.
type queuer interface {
	queue() *Queue
}

func (q *Queue) queue() *Queue {
	return q
}

// Operations. Instance operations take the receiver first; class-side
// operations take the registry and the class.
var (
	AddOp = cobj.NewOp("tailq_add",
		func(o cobj.Instance, v any) error { return ErrNotSupported })
	PollOp = cobj.NewOp("tailq_poll",
		func(o cobj.Instance) any { return nil })
	FlushOp = cobj.NewOp("tailq_flush",
		func(o cobj.Instance) error { return ErrNotSupported })

	CreateOp = cobj.NewOp("tailq_create",
		func(r *cobj.Registry, cls *cobj.Class) (cobj.Instance, error) { return nil, ErrNotSupported })
	DestroyOp = cobj.NewOp("tailq_destroy",
		func(r *cobj.Registry, cls *cobj.Class, o cobj.Instance) error { return ErrNotSupported })
)

// Class is the queue class.
var Class = cobj.DefineClass[Queue]("tailq", cobj.MethodTable{
	// instance methods
	AddOp.Impl(add),
	PollOp.Impl(poll),
	FlushOp.Impl(flush),

	// class-side methods
	CreateOp.Impl(create),
	DestroyOp.Impl(destroy),
})

func asQueue(o cobj.Instance) (*Queue, error) {
	qr, ok := o.(queuer)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a queue", cobj.ErrInvalidArgument, o)
	}
	q := qr.queue()
	if q == nil {
		return nil, fmt.Errorf("%w: nil queue", cobj.ErrInvalidArgument)
	}
	return q, nil
}

// add enqueues v at the tail.
func add(o cobj.Instance, v any) error {
	if v == nil {
		return fmt.Errorf("%w: nil value", cobj.ErrInvalidArgument)
	}
	q, err := asQueue(o)
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.items.PushBack(v)
	q.mu.Unlock()
	return nil
}

// poll dequeues from the head, returning nil when the queue is empty.
func poll(o cobj.Instance) any {
	q, err := asQueue(o)
	if err != nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.items.Front()
	if e == nil {
		return nil
	}
	return q.items.Remove(e)
}

func flush(o cobj.Instance) error {
	q, err := asQueue(o)
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.items.Init()
	q.mu.Unlock()
	return nil
}

func create(r *cobj.Registry, cls *cobj.Class) (cobj.Instance, error) {
	inst, err := r.Create(cls)
	if err != nil {
		return nil, err
	}
	if _, err := asQueue(inst); err != nil {
		err = fmt.Errorf("class %s: %w", cls.Name, err)
		return nil, errors.Join(err, r.Delete(inst))
	}
	return inst, nil
}

// destroy flushes o and deletes it.
func destroy(r *cobj.Registry, cls *cobj.Class, o cobj.Instance) error {
	if err := FlushOp.Func(o)(o); err != nil {
		return err
	}
	return r.Delete(o)
}

// ---------------------------------------------------------------------------
// Convenience wrappers
// ---------------------------------------------------------------------------

// New creates a queue of Class.
func New(r *cobj.Registry) (*Queue, error) {
	inst, err := Create(r, Class)
	if err != nil {
		return nil, err
	}
	return inst.(*Queue), nil
}

// Create creates an instance of cls, which must be Class or a subclass,
// through its class-side constructor.
func Create(r *cobj.Registry, cls *cobj.Class) (cobj.Instance, error) {
	if cls == nil {
		return nil, fmt.Errorf("%w: nil class", cobj.ErrInvalidArgument)
	}
	return CreateOp.ClassFunc(cls)(r, cls)
}

// Destroy destroys o through its class's class-side destructor.
func Destroy(r *cobj.Registry, o cobj.Instance) error {
	cls := cobj.ClassOf(o)
	if cls == nil {
		return fmt.Errorf("%w: instance has no class", cobj.ErrNotInitialized)
	}
	return DestroyOp.ClassFunc(cls)(r, cls, o)
}

// Add enqueues v on o.
func Add(o cobj.Instance, v any) error {
	return AddOp.Func(o)(o, v)
}

// Poll dequeues from o, returning nil when it is empty.
func Poll(o cobj.Instance) any {
	return PollOp.Func(o)(o)
}

// Flush discards every item queued on o.
func Flush(o cobj.Instance) error {
	return FlushOp.Func(o)(o)
}

// Len returns the number of items queued on o.
func Len(o cobj.Instance) int {
	if cobj.ClassOf(o) == nil {
		return 0
	}
	q, err := asQueue(o)
	if err != nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
