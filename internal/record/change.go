package record

import "slices"

type ChangeKind string

// OldNew is the only change kind produced today: a field moved from Old to New.
const OldNew ChangeKind = "old_new"

// Change is the delta of a single field.
type Change struct {
	Field    string
	Old      any
	New      any
	Kind     ChangeKind
	Complete bool
}

func NewChange(field string, oldValue, newValue any) Change {
	return Change{Field: field, Old: oldValue, New: newValue, Kind: OldNew, Complete: true}
}

func (c Change) Equal(other Change) bool {
	return c.Field == other.Field &&
		ValuesEqual(c.Old, other.Old) &&
		ValuesEqual(c.New, other.New) &&
		c.Kind == other.Kind &&
		c.Complete == other.Complete
}

// ChangeSet holds at most one Change per field for one object.
type ChangeSet struct {
	Object Identity

	fields  []string
	changes map[string]Change
}

func NewChangeSet(object Identity) *ChangeSet {
	return &ChangeSet{Object: object, changes: map[string]Change{}}
}

// Add records c, replacing any previous change of the same field.
func (cs *ChangeSet) Add(c Change) {
	if cs.changes == nil {
		cs.changes = map[string]Change{}
	}
	if _, ok := cs.changes[c.Field]; !ok {
		cs.fields = append(cs.fields, c.Field)
	}
	cs.changes[c.Field] = c
}

func (cs *ChangeSet) Get(field string) (Change, bool) {
	if cs == nil {
		return Change{}, false
	}
	c, ok := cs.changes[field]
	return c, ok
}

func (cs *ChangeSet) Len() int {
	if cs == nil {
		return 0
	}
	return len(cs.fields)
}

func (cs *ChangeSet) Fields() []string {
	if cs == nil {
		return nil
	}
	return slices.Clone(cs.fields)
}

// Changes returns the changes in the order their fields were first added.
func (cs *ChangeSet) Changes() []Change {
	if cs == nil {
		return nil
	}
	out := make([]Change, 0, len(cs.fields))
	for _, f := range cs.fields {
		out = append(out, cs.changes[f])
	}
	return out
}

// Covers is subset equality: both sets describe the same object and every
// change in cs has an equal counterpart in other. Extra changes in other are
// ignored.
func (cs *ChangeSet) Covers(other *ChangeSet) bool {
	if cs == nil || other == nil {
		return cs.Len() == 0 && other.Len() == 0
	}
	if cs.Object != other.Object {
		return false
	}
	for _, c := range cs.changes {
		oc, ok := other.changes[c.Field]
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	return true
}

// Equal is full structural equality.
func (cs *ChangeSet) Equal(other *ChangeSet) bool {
	return cs.Covers(other) && other.Covers(cs)
}

// Difference returns the changes turning current into next. Every key of next
// whose value differs from current (a missing key counts as nil) yields a
// Change. Keys present only in current are not reported.
func Difference(object Identity, current, next *Attributes) *ChangeSet {
	cs := NewChangeSet(object)
	for k, v := range next.All() {
		old := current.Lookup(k)
		if !ValuesEqual(old, v) {
			cs.Add(NewChange(k, old, v))
		}
	}
	return cs
}
