package vm

import "math"

// ---------------------------------------------------------------------------
// Table: array part plus insertion-ordered hash part
// ---------------------------------------------------------------------------

// MaxTableSize bounds the size hints accepted by NewTable.
const MaxTableSize = 1 << 26

// Table is the VM's associative array. Keys 1..n with no gaps live in the
// array part; everything else lives in the hash part, which iterates in
// insertion order.
type Table struct {
	array   []Value
	index   map[Value]int // key -> position in entries
	entries []entry
	dead    int

	readonly bool
	safeenv  bool
	fallback *Table // consulted when a key is absent, like an __index table
}

type entry struct {
	key   Value
	value Value
	live  bool
}

func newTable(narray, nhash int) *Table {
	t := &Table{}
	if narray > 0 {
		t.array = make([]Value, 0, narray)
	}
	if nhash > 0 {
		t.index = make(map[Value]int, nhash)
		t.entries = make([]entry, 0, nhash)
	}
	return t
}

// ReadOnly reports whether writes to t raise an error.
func (t *Table) ReadOnly() bool { return t.readonly }

// SetReadOnly freezes or unfreezes t.
func (t *Table) SetReadOnly(v bool) { t.readonly = v }

// SafeEnv reports whether t, used as an environment, allows cached global
// imports.
func (t *Table) SafeEnv() bool { return t.safeenv }

// Fallback returns the table consulted for absent keys, or nil.
func (t *Table) Fallback() *Table { return t.fallback }

// normKey maps -0 to 0 so both address the same slot.
func normKey(k Value) Value {
	if n, ok := k.(float64); ok && n == 0 {
		return float64(0)
	}
	return k
}

// arrayIndex returns the 0-based array position for k, or -1.
func arrayIndex(k Value) int {
	n, ok := k.(float64)
	if !ok || n < 1 || n > MaxTableSize || n != math.Trunc(n) {
		return -1
	}
	return int(n) - 1
}

// RawGet returns t[k] without consulting the fallback.
func (t *Table) RawGet(k Value) Value {
	if i := arrayIndex(k); i >= 0 && i < len(t.array) {
		return t.array[i]
	}
	if t.index == nil {
		return nil
	}
	if pos, ok := t.index[normKey(k)]; ok {
		return t.entries[pos].value
	}
	return nil
}

// Get returns t[k], following the fallback chain for absent keys.
func (t *Table) Get(k Value) Value {
	for tt := t; tt != nil; tt = tt.fallback {
		if v := tt.RawGet(k); v != nil {
			return v
		}
	}
	return nil
}

// rawSet stores v at k. The caller has checked readonly and the key.
func (t *Table) rawSet(k Value, v Value) {
	k = normKey(k)
	if i := arrayIndex(k); i >= 0 {
		switch {
		case i < len(t.array):
			t.array[i] = v
			if v == nil && i == len(t.array)-1 {
				t.trimArray()
			}
			return
		case i == len(t.array) && v != nil:
			t.removeHash(k)
			t.array = append(t.array, v)
			t.migrate()
			return
		}
	}

	if v == nil {
		t.removeHash(k)
		return
	}
	if t.index == nil {
		t.index = make(map[Value]int)
	}
	if pos, ok := t.index[k]; ok {
		t.entries[pos].value = v
		return
	}
	if t.dead > 8 && t.dead > len(t.entries)/2 {
		t.compact()
	}
	t.index[k] = len(t.entries)
	t.entries = append(t.entries, entry{key: k, value: v, live: true})
}

func (t *Table) removeHash(k Value) {
	if t.index == nil {
		return
	}
	if pos, ok := t.index[k]; ok {
		delete(t.index, k)
		t.entries[pos] = entry{}
		t.dead++
	}
}

// migrate moves keys that now continue the array out of the hash part.
func (t *Table) migrate() {
	for t.index != nil {
		k := float64(len(t.array) + 1)
		pos, ok := t.index[k]
		if !ok {
			return
		}
		t.array = append(t.array, t.entries[pos].value)
		t.removeHash(k)
	}
}

func (t *Table) trimArray() {
	n := len(t.array)
	for n > 0 && t.array[n-1] == nil {
		n--
	}
	t.array = t.array[:n]
}

func (t *Table) compact() {
	live := t.entries[:0]
	for _, e := range t.entries {
		if e.live {
			t.index[e.key] = len(live)
			live = append(live, e)
		}
	}
	for i := len(live); i < len(t.entries); i++ {
		t.entries[i] = entry{}
	}
	t.entries = live
	t.dead = 0
}

// Len returns the border of the array part.
func (t *Table) Len() int {
	return len(t.array)
}

// Next returns the entry following position pos (start with 0) and the
// position to pass on the next call. ok is false when iteration is done.
func (t *Table) Next(pos int) (k, v Value, next int, ok bool) {
	for pos < len(t.array) {
		if t.array[pos] != nil {
			return float64(pos + 1), t.array[pos], pos + 1, true
		}
		pos++
	}
	for i := pos - len(t.array); i < len(t.entries); i++ {
		if e := t.entries[i]; e.live {
			return e.key, e.value, len(t.array) + i + 1, true
		}
	}
	return nil, nil, 0, false
}

// ---------------------------------------------------------------------------
// Iterators for generic for loops
// ---------------------------------------------------------------------------

// iterator walks a table for ITERNEXT. ipairs iterators stop at the first
// nil array slot.
type iterator struct {
	t      *Table
	pos    int
	ipairs bool
}

func (it *iterator) next() (k, v Value, ok bool) {
	if it.ipairs {
		v := it.t.RawGet(float64(it.pos + 1))
		if v == nil {
			return nil, nil, false
		}
		it.pos++
		return float64(it.pos), v, true
	}
	k, v, it.pos, ok = it.t.Next(it.pos)
	return k, v, ok
}

// ipairsMarker is what ipairs returns; ITERPREP turns it into an iterator.
type ipairsMarker struct {
	t *Table
}
