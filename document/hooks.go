package document

import (
	"context"
)

// HookType is the document lifecycle hook stage.
type HookType int

// Enumerated hook stages.
const (
	PreValidate HookType = iota
	PostValidate
	PreSave
	PostSave
	PreDelete
	PostDelete
)

// String implements fmt.Stringer interface.
func (h HookType) String() string {
	switch h {
	case PreValidate:
		return "PreValidate"
	case PostValidate:
		return "PostValidate"
	case PreSave:
		return "PreSave"
	case PostSave:
		return "PostSave"
	case PreDelete:
		return "PreDelete"
	case PostDelete:
		return "PostDelete"
	}
	return "Unknown"
}

// HookFunc is the function executed at the given hook stage. Non nil error aborts the operation.
type HookFunc func(ctx context.Context, d *Document) error

// AddHook registers the hook function for the stage 'h'. The hooks are executed in
// the registration order.
func (m *Model) AddHook(h HookType, fn HookFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hooks == nil {
		m.hooks = make(map[HookType][]HookFunc)
	}
	m.hooks[h] = append(m.hooks[h], fn)
}

// RunHooks executes the model hooks of the stage 'h' for the document 'd'.
func (m *Model) RunHooks(ctx context.Context, h HookType, d *Document) error {
	m.mu.RLock()
	hooks := m.hooks[h]
	m.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, d); err != nil {
			logger.Debug2f("%s hook failed for: %s - %v", h, d, err)
			return err
		}
	}
	return nil
}
