package machine

// maxLoad is the load factor above which Table grows its backing array.
const maxLoad = 0.75

type entry struct {
	key   *ObjString // nil means empty; a tombstone is key==nil, value==Bool(true)
	value Value
	used  bool // false for a genuinely empty slot
}

// Table is an open-addressed, linear-probed hash map from interned
// strings to Values, mirroring the data model's §2/§4 "Hash Table"
// component rather than delegating to a bare Go map, so its probing and
// tombstone behavior is the same shape as the reference implementation's
// table.c.
type Table struct {
	count   int // live entries plus tombstones; reset to live entries by grow
	entries []entry
}

// NewTable returns an empty Table.
func NewTable() *Table { return &Table{} }

// Count returns the occupied-slot count used for the load factor: live
// key/value pairs plus any tombstones left by Delete since the last grow.
func (t *Table) Count() int { return t.count }

// Get looks up key, reporting whether it was found.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if len(t.entries) == 0 {
		return Value{}, false
	}
	e := t.find(key)
	if e == nil || e.key == nil {
		return Value{}, false
	}
	return e.value, true
}

// Set inserts or overwrites key's value, returning true if this created a
// brand new key (as opposed to overwriting an existing one).
func (t *Table) Set(key *ObjString, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow()
	}
	e := t.find(key)
	isNew := e.key == nil
	if isNew && !e.used {
		// a genuinely empty slot, not a tombstone: only then does count grow
		t.count++
	}
	e.key = key
	e.value = value
	e.used = true
	return isNew
}

// Delete removes key, leaving a tombstone so probe chains remain intact.
func (t *Table) Delete(key *ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.find(key)
	if e == nil || e.key == nil {
		return false
	}
	e.key = nil
	e.value = Bool(true) // tombstone marker
	return true
}

func (t *Table) grow() {
	newCap := 8
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	old := t.entries
	t.entries = make([]entry, newCap)
	t.count = 0
	for _, e := range old {
		if e.key == nil {
			continue
		}
		dst := t.find(e.key)
		dst.key = e.key
		dst.value = e.value
		dst.used = true
		t.count++
	}
}

// find returns the entry for key: either the entry already holding it, or
// the first tombstone/empty slot seen on its probe sequence where it would
// be inserted.
func (t *Table) find(key *ObjString) *entry {
	cap := len(t.entries)
	idx := int(key.Hash) % cap
	var tombstone *entry
	for {
		e := &t.entries[idx]
		switch {
		case e.key == nil && !e.used:
			if tombstone != nil {
				return tombstone
			}
			return e
		case e.key == nil && e.used:
			if tombstone == nil {
				tombstone = e
			}
		case e.key == key:
			return e
		}
		idx = (idx + 1) % cap
	}
}

// Keys returns the table's live keys in unspecified order.
func (t *Table) Keys() []*ObjString {
	keys := make([]*ObjString, 0, t.count)
	for _, e := range t.entries {
		if e.key != nil {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// CopyInto copies every live entry of t into dst, used by OP_INHERIT to
// copy a parent class's method table into the child's.
func (t *Table) CopyInto(dst *Table) {
	for _, e := range t.entries {
		if e.key != nil {
			dst.Set(e.key, e.value)
		}
	}
}
