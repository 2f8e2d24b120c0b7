package glue

import "github.com/chazu/scriptbridge/flags"

// ---------------------------------------------------------------------------
// Flag registry
// ---------------------------------------------------------------------------

// FlagHandle identifies a registered boolean flag. Handles compare equal
// when they refer to the same flag. The zero handle is the null handle.
type FlagHandle struct{ f *flags.Bool }

// IntFlagHandle identifies a registered integer flag.
type IntFlagHandle struct{ f *flags.Int }

// IsNull reports whether h refers to no flag.
func (h FlagHandle) IsNull() bool { return h.f == nil }

// IsNull reports whether h refers to no flag.
func (h IntFlagHandle) IsNull() bool { return h.f == nil }

// FindFlag returns the boolean flag whose name is exactly name.
func FindFlag(name []byte) Optional[FlagHandle] {
	for f := flags.FirstBool(); f != nil; f = f.Next() {
		if f.Name() == string(name) {
			return Some(FlagHandle{f})
		}
	}
	return None[FlagHandle]()
}

// FindIntFlag returns the integer flag whose name is exactly name.
func FindIntFlag(name []byte) Optional[IntFlagHandle] {
	for f := flags.FirstInt(); f != nil; f = f.Next() {
		if f.Name() == string(name) {
			return Some(IntFlagHandle{f})
		}
	}
	return None[IntFlagHandle]()
}

// ListFlags returns a snapshot of every boolean flag, in registration
// order, followed by a null handle.
func ListFlags() []FlagHandle {
	var out []FlagHandle
	for f := flags.FirstBool(); f != nil; f = f.Next() {
		out = append(out, FlagHandle{f})
	}
	return append(out, FlagHandle{})
}

// ListIntFlags returns a snapshot of every integer flag followed by a null
// handle.
func ListIntFlags() []IntFlagHandle {
	var out []IntFlagHandle
	for f := flags.FirstInt(); f != nil; f = f.Next() {
		out = append(out, IntFlagHandle{f})
	}
	return append(out, IntFlagHandle{})
}

// GetFlagName returns the flag's name in a caller-owned buffer.
func GetFlagName(h FlagHandle) Buffer { return StringBuffer(h.f.Name()) }

// GetIntFlagName returns the flag's name in a caller-owned buffer.
func GetIntFlagName(h IntFlagHandle) Buffer { return StringBuffer(h.f.Name()) }

// GetFlag returns the current value of a boolean flag.
func GetFlag(h FlagHandle) bool { return h.f.Get() }

// GetIntFlag returns the current value of an integer flag.
func GetIntFlag(h IntFlagHandle) int { return h.f.Get() }

// SetFlag sets a boolean flag.
func SetFlag(h FlagHandle, v bool) {
	log.Debugf("flag %s = %t", h.f.Name(), v)
	h.f.Set(v)
}

// SetIntFlag sets an integer flag.
func SetIntFlag(h IntFlagHandle, v int) {
	log.Debugf("flag %s = %d", h.f.Name(), v)
	h.f.Set(v)
}

// Name returns the flag's name without allocating a buffer.
func (h FlagHandle) Name() string { return h.f.Name() }

// Name returns the flag's name without allocating a buffer.
func (h IntFlagHandle) Name() string { return h.f.Name() }
