package entity

// Field is one named value of a booking record.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// BookingRecord is one trip extracted from a document. It is immutable:
// construct it with NewBookingRecord and read it through accessors.
type BookingRecord struct {
	source string
	fields []Field
}

// NewBookingRecord copies fields, so later changes to the slice do not leak in.
func NewBookingRecord(source string, fields []Field) BookingRecord {
	cp := make([]Field, len(fields))
	copy(cp, fields)
	return BookingRecord{source: source, fields: cp}
}

// Source is the path of the document the record came from.
func (r BookingRecord) Source() string { return r.source }

// Fields returns the fields in record order.
func (r BookingRecord) Fields() []Field {
	cp := make([]Field, len(r.fields))
	copy(cp, r.fields)
	return cp
}

// Get returns a field value by name.
func (r BookingRecord) Get(name string) (string, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Len is the number of fields.
func (r BookingRecord) Len() int { return len(r.fields) }
