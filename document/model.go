package document

import (
	"context"
	"sync"

	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/mapping"
)

// Validator is the custom document validator. The 'false' result fails the validation.
type Validator func(d *Document) bool

// AsyncValidator is the custom document validator that might block i.e. on external lookups.
// The documents with asynchronous validators are validated concurrently.
type AsyncValidator func(ctx context.Context, d *Document) error

// Model is the registered model definition with its hooks, listeners and validators.
// The documents keep only the reference to their model.
type Model struct {
	*mapping.ModelStruct

	registry *Registry

	mu             sync.RWMutex
	hooks          map[HookType][]HookFunc
	listenersList  []Listener
	validator      Validator
	asyncValidator AsyncValidator
}

// New creates new unsaved document of the model with provided 'fields'.
func (m *Model) New(fields map[string]interface{}) *Document {
	d := &Document{model: m, fields: make(map[string]interface{}, len(fields))}
	for k, v := range fields {
		d.fields[k] = v
	}
	return d
}

// Registry gets the registry of the model.
func (m *Model) Registry() *Registry {
	return m.registry
}

// Related gets the related model of the relationship.
func (m *Model) Related(r mapping.Relationship) *Model {
	return m.registry.ModelOf(r.Related())
}

// SetValidator sets the custom document validator.
func (m *Model) SetValidator(v Validator) {
	m.mu.Lock()
	m.validator = v
	m.mu.Unlock()
}

// SetAsyncValidator sets the asynchronous custom document validator.
func (m *Model) SetAsyncValidator(v AsyncValidator) {
	m.mu.Lock()
	m.asyncValidator = v
	m.mu.Unlock()
}

// Listen adds the event listener for all the documents of the model.
func (m *Model) Listen(l Listener) {
	m.mu.Lock()
	m.listenersList = append(m.listenersList, l)
	m.mu.Unlock()
}

func (m *Model) listeners() []Listener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listenersList
}

func (m *Model) customValidators() (Validator, AsyncValidator) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.validator, m.asyncValidator
}

// Registry contains the models of the model map.
type Registry struct {
	modelMap *mapping.ModelMap

	mu     sync.RWMutex
	models map[*mapping.ModelStruct]*Model
}

// NewRegistry creates the registry for the models of the 'modelMap'.
func NewRegistry(modelMap *mapping.ModelMap) *Registry {
	r := &Registry{modelMap: modelMap, models: make(map[*mapping.ModelStruct]*Model)}
	for _, mStruct := range modelMap.Models() {
		r.models[mStruct] = &Model{ModelStruct: mStruct, registry: r}
	}
	return r
}

// ModelMap gets the registry's model map.
func (r *Registry) ModelMap() *mapping.ModelMap {
	return r.modelMap
}

// Model gets the model by its name.
func (r *Registry) Model(name string) (*Model, error) {
	mStruct, ok := r.modelMap.Get(name)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownModel, "model: '%s'", name)
	}
	return r.ModelOf(mStruct), nil
}

// MustModel gets the model by its name. Panics if the model is not registered.
func (r *Registry) MustModel(name string) *Model {
	m, err := r.Model(name)
	if err != nil {
		panic(err)
	}
	return m
}

// ModelOf gets the model for provided model struct. Models registered in the model map
// after the registry was created are added on first use.
func (r *Registry) ModelOf(mStruct *mapping.ModelStruct) *Model {
	r.mu.RLock()
	m, ok := r.models[mStruct]
	r.mu.RUnlock()
	if ok {
		return m
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok = r.models[mStruct]; !ok {
		m = &Model{ModelStruct: mStruct, registry: r}
		r.models[mStruct] = m
	}
	return m
}

// Models gets all the models sorted by name.
func (r *Registry) Models() []*Model {
	structs := r.modelMap.Models()
	models := make([]*Model, len(structs))
	for i, mStruct := range structs {
		models[i] = r.ModelOf(mStruct)
	}
	return models
}
