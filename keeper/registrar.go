package keeper

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownTask is returned when disarming a handle the registrar never
// issued or has already released.
var ErrUnknownTask = errors.New("keeper: unknown task handle")

// LocalRegistrar is the in-process task registrar. It issues opaque handles
// and tracks the armed set the keeper loop polls. Satisfies dca.TaskRegistrar.
type LocalRegistrar struct {
	mu    sync.Mutex
	tasks map[string][20]byte
}

// NewLocalRegistrar creates an empty registrar.
func NewLocalRegistrar() *LocalRegistrar {
	return &LocalRegistrar{tasks: make(map[string][20]byte)}
}

// Arm registers a recurring trigger for the owner and returns its handle.
func (r *LocalRegistrar) Arm(owner [20]byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle := uuid.NewString()
	r.tasks[handle] = owner
	return handle, nil
}

// Disarm releases a previously issued handle.
func (r *LocalRegistrar) Disarm(handle string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[handle]; !ok {
		return ErrUnknownTask
	}
	delete(r.tasks, handle)
	return nil
}

// Armed returns the owners with a currently registered trigger.
func (r *LocalRegistrar) Armed() [][20]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	owners := make([][20]byte, 0, len(r.tasks))
	for _, owner := range r.tasks {
		owners = append(owners, owner)
	}
	return owners
}
