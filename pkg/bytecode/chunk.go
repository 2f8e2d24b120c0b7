package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Bytecode format versions. The first byte of every serialized module is
// its version; a first byte of VersionError marks an error payload instead.
const (
	VersionError  byte = 0
	VersionMin    byte = 1
	VersionMax    byte = 2
	VersionTarget byte = 2
)

// VersionVectors is the first version that can carry vector constants.
const VersionVectors byte = 2

// ErrJumpTooFar is returned when a jump offset does not fit in 16 bits.
var ErrJumpTooFar = errors.New("jump offset out of range")

// ChunkFlags records which optional sections a chunk carries.
type ChunkFlags uint16

const (
	// ChunkFlagLineInfo indicates the chunk maps code offsets to source lines.
	ChunkFlagLineInfo ChunkFlags = 1 << 0

	// ChunkFlagLocalNames indicates local slot names are present.
	ChunkFlagLocalNames ChunkFlags = 1 << 1

	// ChunkFlagCoverage indicates the code contains coverage instructions.
	ChunkFlagCoverage ChunkFlags = 1 << 2
)

// UpvalueDescriptor describes where a closure finds one of its upvalues
// when it is instantiated.
type UpvalueDescriptor struct {
	Name      string // Variable name
	FromLocal bool   // True: enclosing function's local slot; false: its upvalue
	Index     uint8  // Slot or upvalue index in the enclosing function
}

// LineEntry maps a code offset to the 0-based source line it came from.
type LineEntry struct {
	Offset uint32
	Line   uint32
}

// Chunk is the compiled form of a single function. The main chunk of a
// module carries the format version; nested functions live in Children.
type Chunk struct {
	Version byte
	Flags   ChunkFlags
	Name    string

	ParamCount uint8
	LocalCount uint8

	Code      []byte
	Constants []Constant
	Upvalues  []UpvalueDescriptor
	Children  []*Chunk

	LineInfo   []LineEntry
	LocalNames []string

	constIndex map[constKey]uint16 // pool lookup over the first indexed constants
	indexed    int
}

// NewChunk creates a new empty chunk with the target version.
func NewChunk() *Chunk {
	return &Chunk{
		Version: VersionTarget,
		Code:    make([]byte, 0, 64),
	}
}

// AddConstant adds a constant to the pool and returns its index.
// If an identical constant already exists, returns the existing index.
func (c *Chunk) AddConstant(k Constant) (uint16, error) {
	if c.constIndex == nil || c.indexed != len(c.Constants) {
		c.indexConstants()
	}
	key := k.key()
	if idx, ok := c.constIndex[key]; ok {
		return idx, nil
	}
	if len(c.Constants) > math.MaxUint16 {
		return 0, fmt.Errorf("constant pool overflow")
	}
	idx := uint16(len(c.Constants))
	c.Constants = append(c.Constants, k)
	c.constIndex[key] = idx
	c.indexed = len(c.Constants)
	return idx, nil
}

// indexConstants rebuilds the pool lookup from Constants. Duplicate
// entries, possible in decoded chunks, map to their first index.
func (c *Chunk) indexConstants() {
	c.constIndex = make(map[constKey]uint16, len(c.Constants))
	for i, k := range c.Constants {
		key := k.key()
		if _, ok := c.constIndex[key]; !ok {
			c.constIndex[key] = uint16(i)
		}
	}
	c.indexed = len(c.Constants)
}

// Emit appends a single-byte opcode to the code section.
func (c *Chunk) Emit(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	return offset
}

// EmitWithOperand appends an opcode with operand bytes.
func (c *Chunk) EmitWithOperand(op Opcode, operands ...byte) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Code = append(c.Code, operands...)
	return offset
}

// EmitUint16 appends an opcode with a single big-endian u16 operand.
func (c *Chunk) EmitUint16(op Opcode, v uint16) int {
	return c.EmitWithOperand(op, byte(v>>8), byte(v))
}

// EmitJump emits a jump instruction with a placeholder offset. Any prefix
// operands are written before the offset. Returns the offset of the
// placeholder for later patching.
func (c *Chunk) EmitJump(op Opcode, prefix ...byte) int {
	c.Code = append(c.Code, byte(op))
	c.Code = append(c.Code, prefix...)
	offset := len(c.Code)
	c.Code = append(c.Code, 0xFF, 0xFF) // Placeholder
	return offset
}

// PatchJump patches a jump so that it lands on the current position.
func (c *Chunk) PatchJump(placeholderOffset int) error {
	return c.PatchJumpTo(placeholderOffset, len(c.Code))
}

// PatchJumpTo patches a jump to go to a specific offset.
func (c *Chunk) PatchJumpTo(placeholderOffset int, target int) error {
	jumpFrom := placeholderOffset + 2
	delta := target - jumpFrom
	if delta < math.MinInt16 || delta > math.MaxInt16 {
		return ErrJumpTooFar
	}
	c.Code[placeholderOffset] = byte(delta >> 8)
	c.Code[placeholderOffset+1] = byte(delta)
	return nil
}

// EmitLoop emits a backward jump to the given loop start.
func (c *Chunk) EmitLoop(loopStart int) error {
	placeholder := c.EmitJump(OpJump)
	return c.PatchJumpTo(placeholder, loopStart)
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// AddChild appends a nested function prototype and returns its index.
func (c *Chunk) AddChild(child *Chunk) (uint16, error) {
	if len(c.Children) > math.MaxUint16 {
		return 0, fmt.Errorf("too many nested functions")
	}
	c.Children = append(c.Children, child)
	return uint16(len(c.Children) - 1), nil
}

// AddLineInfo records that code at offset came from line.
// Consecutive entries for the same line are collapsed.
func (c *Chunk) AddLineInfo(offset uint32, line uint32) {
	c.Flags |= ChunkFlagLineInfo
	if n := len(c.LineInfo); n > 0 && c.LineInfo[n-1].Line == line {
		return
	}
	c.LineInfo = append(c.LineInfo, LineEntry{Offset: offset, Line: line})
}

// LineAt returns the source line for a code offset, or -1 when the chunk
// has no line information covering it.
func (c *Chunk) LineAt(offset int) int {
	for i := len(c.LineInfo) - 1; i >= 0; i-- {
		if int(c.LineInfo[i].Offset) <= offset {
			return int(c.LineInfo[i].Line)
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// Error payloads
// ---------------------------------------------------------------------------

// EncodeError builds the payload the compiler returns in place of bytecode
// when compilation fails: a VersionError marker followed by the message.
func EncodeError(message string) []byte {
	buf := make([]byte, 0, len(message)+1)
	buf = append(buf, VersionError)
	return append(buf, message...)
}

// IsError reports whether data is an error payload rather than bytecode.
func IsError(data []byte) bool {
	return len(data) > 0 && data[0] == VersionError
}

// ErrorMessage extracts the message from an error payload.
func ErrorMessage(data []byte) (string, bool) {
	if !IsError(data) {
		return "", false
	}
	return string(data[1:]), true
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// maxNesting bounds how deeply function prototypes may nest when decoding.
const maxNesting = 256

// Serialize encodes the chunk and its children as a module.
// Format:
//
//	[version:1]
//	chunk := [flags:2] [name_len:2] [name] [param_count:1] [local_count:1]
//	         [code_len:4] [code:...]
//	         [const_count:2] [constants:...]
//	         [upval_count:1] [upvalues:...]
//	         [child_count:2] [children:chunk...]
//	         [line_count:4] [lines:...]      (if ChunkFlagLineInfo)
//	         [local_name_count:2] [names...] (if ChunkFlagLocalNames)
func (c *Chunk) Serialize() ([]byte, error) {
	if c.Version < VersionMin || c.Version > VersionMax {
		return nil, fmt.Errorf("unsupported bytecode version %d", c.Version)
	}
	buf := make([]byte, 0, 16+len(c.Code)+len(c.Constants)*12)
	buf = append(buf, c.Version)
	return c.appendChunk(buf, c.Version)
}

func (c *Chunk) appendChunk(buf []byte, version byte) ([]byte, error) {
	buf = binary.BigEndian.AppendUint16(buf, uint16(c.Flags))
	buf = appendString16(buf, c.Name)
	buf = append(buf, c.ParamCount, c.LocalCount)

	// Code section
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Code)))
	buf = append(buf, c.Code...)

	// Constants
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(c.Constants)))
	for i, k := range c.Constants {
		if k.Kind == ConstVector && version < VersionVectors {
			return nil, fmt.Errorf("constant %d: vector constants require bytecode version %d", i, VersionVectors)
		}
		buf = k.appendTo(buf)
	}

	// Upvalues
	if len(c.Upvalues) > math.MaxUint8 {
		return nil, fmt.Errorf("too many upvalues: %d", len(c.Upvalues))
	}
	buf = append(buf, byte(len(c.Upvalues)))
	for _, uv := range c.Upvalues {
		from := byte(0)
		if uv.FromLocal {
			from = 1
		}
		buf = append(buf, from, uv.Index, byte(len(uv.Name)))
		buf = append(buf, uv.Name...)
	}

	// Children
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(c.Children)))
	for _, child := range c.Children {
		var err error
		buf, err = child.appendChunk(buf, version)
		if err != nil {
			return nil, err
		}
	}

	// Debug sections
	if c.Flags&ChunkFlagLineInfo != 0 {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.LineInfo)))
		for _, e := range c.LineInfo {
			buf = binary.BigEndian.AppendUint32(buf, e.Offset)
			buf = binary.BigEndian.AppendUint32(buf, e.Line)
		}
	}
	if c.Flags&ChunkFlagLocalNames != 0 {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(c.LocalNames)))
		for _, name := range c.LocalNames {
			buf = append(buf, byte(len(name)))
			buf = append(buf, name...)
		}
	}

	return buf, nil
}

func appendString16(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

// Deserialize decodes a module produced by Serialize. Error payloads are
// rejected with their embedded message.
func Deserialize(data []byte) (*Chunk, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("bytecode too short: need at least 1 byte, got 0")
	}
	if msg, ok := ErrorMessage(data); ok {
		return nil, fmt.Errorf("bytecode contains compile error: %s", msg)
	}

	version := data[0]
	if version < VersionMin || version > VersionMax {
		return nil, fmt.Errorf("bytecode version mismatch (expected [%d..%d], got %d)", VersionMin, VersionMax, version)
	}

	r := &reader{data: data, pos: 1, version: version}
	c, err := r.chunk(0)
	if err != nil {
		return nil, err
	}
	if r.pos != len(data) {
		return nil, fmt.Errorf("trailing data after bytecode at pos %d", r.pos)
	}
	c.Version = version
	return c, nil
}

// reader walks a serialized module.
type reader struct {
	data    []byte
	pos     int
	version byte
}

func (r *reader) need(n int, what string) error {
	if r.pos+n > len(r.data) {
		return fmt.Errorf("unexpected end of bytecode reading %s at pos %d", what, r.pos)
	}
	return nil
}

func (r *reader) u8(what string) (byte, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u16(what string) (uint16, error) {
	if err := r.need(2, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if err := r.need(n, what); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *reader) chunk(depth int) (*Chunk, error) {
	if depth > maxNesting {
		return nil, fmt.Errorf("function nesting too deep at pos %d", r.pos)
	}
	c := &Chunk{}

	flags, err := r.u16("chunk flags")
	if err != nil {
		return nil, err
	}
	c.Flags = ChunkFlags(flags)

	nameLen, err := r.u16("function name length")
	if err != nil {
		return nil, err
	}
	name, err := r.bytes(int(nameLen), "function name")
	if err != nil {
		return nil, err
	}
	c.Name = string(name)

	if c.ParamCount, err = r.u8("param count"); err != nil {
		return nil, err
	}
	if c.LocalCount, err = r.u8("local count"); err != nil {
		return nil, err
	}

	// Code section
	codeLen, err := r.u32("code length")
	if err != nil {
		return nil, err
	}
	if c.Code, err = r.bytes(int(codeLen), "code section"); err != nil {
		return nil, err
	}

	// Constants
	constCount, err := r.u16("constant count")
	if err != nil {
		return nil, err
	}
	c.Constants = make([]Constant, constCount)
	for i := range c.Constants {
		if c.Constants[i], err = r.constant(i); err != nil {
			return nil, err
		}
	}

	// Upvalues
	upvalCount, err := r.u8("upvalue count")
	if err != nil {
		return nil, err
	}
	c.Upvalues = make([]UpvalueDescriptor, upvalCount)
	for i := range c.Upvalues {
		if err := r.need(3, fmt.Sprintf("upvalue %d", i)); err != nil {
			return nil, err
		}
		c.Upvalues[i].FromLocal = r.data[r.pos] != 0
		c.Upvalues[i].Index = r.data[r.pos+1]
		n := int(r.data[r.pos+2])
		r.pos += 3
		name, err := r.bytes(n, fmt.Sprintf("upvalue %d name", i))
		if err != nil {
			return nil, err
		}
		c.Upvalues[i].Name = string(name)
	}

	// Children
	childCount, err := r.u16("child count")
	if err != nil {
		return nil, err
	}
	c.Children = make([]*Chunk, childCount)
	for i := range c.Children {
		if c.Children[i], err = r.chunk(depth + 1); err != nil {
			return nil, err
		}
		c.Children[i].Version = r.version
	}

	// Debug sections
	if c.Flags&ChunkFlagLineInfo != 0 {
		lineCount, err := r.u32("line info count")
		if err != nil {
			return nil, err
		}
		if err := r.need(int(lineCount)*8, "line info"); err != nil {
			return nil, err
		}
		c.LineInfo = make([]LineEntry, lineCount)
		for i := range c.LineInfo {
			c.LineInfo[i].Offset = binary.BigEndian.Uint32(r.data[r.pos:])
			c.LineInfo[i].Line = binary.BigEndian.Uint32(r.data[r.pos+4:])
			r.pos += 8
		}
	}
	if c.Flags&ChunkFlagLocalNames != 0 {
		nameCount, err := r.u16("local name count")
		if err != nil {
			return nil, err
		}
		c.LocalNames = make([]string, nameCount)
		for i := range c.LocalNames {
			n, err := r.u8(fmt.Sprintf("local name %d length", i))
			if err != nil {
				return nil, err
			}
			name, err := r.bytes(int(n), fmt.Sprintf("local name %d", i))
			if err != nil {
				return nil, err
			}
			c.LocalNames[i] = string(name)
		}
	}

	return c, nil
}
