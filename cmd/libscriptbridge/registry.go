package main

import (
	"sync"

	"github.com/chazu/scriptbridge/glue"
)

type nullable interface {
	comparable
	IsNull() bool
}

// handleTable gives registry entries stable integer identities. The flag
// set is fixed once package initialization finishes, so the snapshot is
// taken on first use and never changes.
type handleTable[H nullable] struct {
	handles []H
}

func newHandleTable[H nullable](list []H) *handleTable[H] {
	t := &handleTable[H]{}
	for _, h := range list {
		if !h.IsNull() {
			t.handles = append(t.handles, h)
		}
	}
	return t
}

// id returns the identity of h: its position plus one. The null handle is
// 0.
func (t *handleTable[H]) id(h H) uintptr {
	if h.IsNull() {
		return 0
	}
	for i, x := range t.handles {
		if x == h {
			return uintptr(i + 1)
		}
	}
	return 0
}

// lookup resolves an identity. Unknown identities are reported as absent.
func (t *handleTable[H]) lookup(id uintptr) (H, bool) {
	if id == 0 || id > uintptr(len(t.handles)) {
		var zero H
		return zero, false
	}
	return t.handles[id-1], true
}

// ids returns every identity followed by 0.
func (t *handleTable[H]) ids() []uintptr {
	out := make([]uintptr, 0, len(t.handles)+1)
	for i := range t.handles {
		out = append(out, uintptr(i+1))
	}
	return append(out, 0)
}

var (
	flagsOnce sync.Once
	boolFlags *handleTable[glue.FlagHandle]
	intFlags  *handleTable[glue.IntFlagHandle]
)

func flagTables() (*handleTable[glue.FlagHandle], *handleTable[glue.IntFlagHandle]) {
	flagsOnce.Do(func() {
		boolFlags = newHandleTable(glue.ListFlags())
		intFlags = newHandleTable(glue.ListIntFlags())
	})
	return boolFlags, intFlags
}
