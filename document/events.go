package document

// Event is the document lifecycle notification.
type Event int

const (
	// EventSaving is emitted before the document is saved.
	EventSaving Event = iota + 1
	// EventSaved is emitted after the document is written.
	EventSaved
	// EventDeleted is emitted after the document is deleted.
	EventDeleted
	// EventChange is emitted after the change feed modification is applied.
	EventChange
	// EventError is emitted when the change feed fails.
	EventError
)

// String implements fmt.Stringer interface.
func (e Event) String() string {
	switch e {
	case EventSaving:
		return "saving"
	case EventSaved:
		return "saved"
	case EventDeleted:
		return "deleted"
	case EventChange:
		return "change"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Listener is the function called on the document events. The 'err' is set only for the EventError.
type Listener func(d *Document, e Event, err error)

// Listen adds the document specific event listener.
func (d *Document) Listen(l Listener) {
	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()
}

// Emit notifies the model and the document listeners about the event 'e'.
func (d *Document) Emit(e Event, err error) {
	d.mu.RLock()
	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	for _, l := range d.model.listeners() {
		l(d, e, err)
	}
	for _, l := range listeners {
		l(d, e, err)
	}
}
