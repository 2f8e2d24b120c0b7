package main

import (
	"testing"

	"github.com/chazu/scriptbridge/glue"
)

func TestHandleTableIdentities(t *testing.T) {
	bools, ints := flagTables()

	h := glue.FindFlag([]byte("DebugTraceExecution")).MustGet()
	id := bools.id(h)
	if id == 0 {
		t.Fatal("registered flag has the null identity")
	}
	if again := bools.id(glue.FindFlag([]byte("DebugTraceExecution")).MustGet()); again != id {
		t.Errorf("identity changed between lookups: %d, %d", id, again)
	}
	got, ok := bools.lookup(id)
	if !ok || got != h {
		t.Errorf("lookup(%d) = %v, %v", id, got, ok)
	}

	if bools.id(glue.FlagHandle{}) != 0 {
		t.Error("null handle has a non-zero identity")
	}
	if _, ok := bools.lookup(0); ok {
		t.Error("lookup(0) found a flag")
	}
	if _, ok := ints.lookup(1 << 20); ok {
		t.Error("lookup of an unknown identity found a flag")
	}
}

func TestHandleTableIDs(t *testing.T) {
	_, ints := flagTables()
	ids := ints.ids()
	if len(ids) != len(glue.ListIntFlags()) {
		t.Fatalf("len(ids) = %d, want %d", len(ids), len(glue.ListIntFlags()))
	}
	if ids[len(ids)-1] != 0 {
		t.Error("ids are not terminated by 0")
	}
	for i, id := range ids[:len(ids)-1] {
		if id != uintptr(i+1) {
			t.Errorf("ids[%d] = %d, want %d", i, id, i+1)
		}
	}
}
