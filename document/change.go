package document

// ApplyChange applies the change feed 'newValue' on the document and emits the EventChange.
// The nil 'newValue' means that the document was deleted: all the fields are cleared and the
// document is marked as not saved. Otherwise the new value replaces the document fields,
// except the relation fields, and the document is marked as saved.
// In both cases the previous fields are kept as the old value.
func ApplyChange(d *Document, newValue map[string]interface{}) {
	d.mu.Lock()
	old := make(map[string]interface{}, len(d.fields))
	for k, v := range d.fields {
		old[k] = v
	}
	if newValue == nil {
		d.fields = make(map[string]interface{})
		d.meta.saved = false
	} else {
		for k := range d.fields {
			if _, ok := newValue[k]; !ok && !d.model.IsRelation(k) {
				delete(d.fields, k)
			}
		}
		for k, v := range newValue {
			d.fields[k] = v
		}
		d.meta.saved = true
	}
	d.meta.oldValue = old
	d.mu.Unlock()

	logger.Debug3f("change applied on: %s", d)
	d.Emit(EventChange, nil)
}
