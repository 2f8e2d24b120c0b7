package bytecode

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestNewChunk(t *testing.T) {
	c := NewChunk()

	if c.Version != VersionTarget {
		t.Errorf("Version = %d, want %d", c.Version, VersionTarget)
	}
	if c.Code == nil {
		t.Error("Code is nil")
	}
}

func TestChunkAddConstant(t *testing.T) {
	c := NewChunk()

	idx0, _ := c.AddConstant(StringConstant("hello"))
	idx1, _ := c.AddConstant(NumberConstant(1))
	idx2, _ := c.AddConstant(StringConstant("hello"))

	if idx0 != 0 || idx1 != 1 {
		t.Errorf("indices = %d, %d, want 0, 1", idx0, idx1)
	}
	if idx2 != 0 {
		t.Errorf("Duplicate constant index = %d, want 0", idx2)
	}
	if len(c.Constants) != 2 {
		t.Errorf("len(Constants) = %d, want 2", len(c.Constants))
	}
}

func TestChunkAddConstantAfterDecode(t *testing.T) {
	c := NewChunk()
	c.AddConstant(StringConstant("a"))
	c.AddConstant(NumberConstant(math.Copysign(0, -1)))
	c.Emit(OpReturnNil)
	data, err := c.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	d, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if idx, _ := d.AddConstant(StringConstant("a")); idx != 0 {
		t.Errorf("decoded duplicate index = %d, want 0", idx)
	}
	if idx, _ := d.AddConstant(NumberConstant(0)); idx != 2 {
		t.Errorf("0 after -0 index = %d, want 2", idx)
	}
	if idx, _ := d.AddConstant(NumberConstant(math.Copysign(0, -1))); idx != 1 {
		t.Errorf("-0 index = %d, want 1", idx)
	}
}

func TestChunkAddConstantManyDistinct(t *testing.T) {
	c := NewChunk()
	for i := 0; i < 60000; i++ {
		idx, err := c.AddConstant(NumberConstant(float64(i)))
		if err != nil || int(idx) != i {
			t.Fatalf("AddConstant(%d) = %d, %v", i, idx, err)
		}
	}
	if idx, _ := c.AddConstant(NumberConstant(12345)); idx != 12345 {
		t.Errorf("duplicate index = %d, want 12345", idx)
	}
}

func TestConstantSameDistinguishesNegativeZero(t *testing.T) {
	if NumberConstant(0).Same(NumberConstant(math.Copysign(0, -1))) {
		t.Error("0 and -0 constants compared as the same")
	}
	if StringConstant("x").Same(ImportConstant("x")) {
		t.Error("string and import constants compared as the same")
	}
}

func TestChunkJumps(t *testing.T) {
	c := NewChunk()
	c.Emit(OpLoadTrue)
	placeholder := c.EmitJump(OpJumpIfFalse)
	c.Emit(OpNop)
	c.Emit(OpNop)
	if err := c.PatchJump(placeholder); err != nil {
		t.Fatalf("PatchJump: %v", err)
	}

	delta := int16(c.readUint16(placeholder))
	if delta != 2 {
		t.Errorf("jump delta = %d, want 2", delta)
	}

	loopStart := 0
	if err := c.EmitLoop(loopStart); err != nil {
		t.Fatalf("EmitLoop: %v", err)
	}
	back := int16(c.readUint16(len(c.Code) - 2))
	if int(back) != loopStart-len(c.Code) {
		t.Errorf("loop delta = %d, want %d", back, loopStart-len(c.Code))
	}
}

func TestChunkJumpTooFar(t *testing.T) {
	c := NewChunk()
	placeholder := c.EmitJump(OpJump)
	c.Code = append(c.Code, make([]byte, 40000)...)
	if err := c.PatchJump(placeholder); err != ErrJumpTooFar {
		t.Errorf("PatchJump over 40000 bytes = %v, want ErrJumpTooFar", err)
	}
}

func TestChunkLineInfo(t *testing.T) {
	c := NewChunk()
	c.AddLineInfo(0, 0)
	c.AddLineInfo(2, 0)
	c.AddLineInfo(4, 3)

	if len(c.LineInfo) != 2 {
		t.Errorf("len(LineInfo) = %d, want 2 (same-line entries collapse)", len(c.LineInfo))
	}
	tests := []struct {
		offset int
		want   int
	}{
		{0, 0},
		{3, 0},
		{4, 3},
		{10, 3},
	}
	for _, tt := range tests {
		if got := c.LineAt(tt.offset); got != tt.want {
			t.Errorf("LineAt(%d) = %d, want %d", tt.offset, got, tt.want)
		}
	}
	if got := NewChunk().LineAt(0); got != -1 {
		t.Errorf("LineAt without info = %d, want -1", got)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	child := &Chunk{
		Name:       "add",
		ParamCount: 2,
		LocalCount: 2,
		Code:       []byte{byte(OpGetLocal), 0, byte(OpGetLocal), 1, byte(OpAdd), byte(OpReturn)},
		Upvalues:   []UpvalueDescriptor{{Name: "x", FromLocal: true, Index: 0}},
	}
	c := NewChunk()
	c.Name = "main"
	c.LocalCount = 1
	c.AddConstant(StringConstant("print"))
	c.AddConstant(NumberConstant(3.5))
	c.AddConstant(BoolConstant(true))
	c.AddConstant(NilConstant())
	c.AddConstant(ImportConstant("math"))
	c.AddConstant(VectorConstant(1, 2, 3, 0))
	c.AddChild(child)
	c.EmitUint16(OpClosure, 0)
	c.Emit(OpReturn)
	c.AddLineInfo(0, 0)
	c.AddLineInfo(3, 1)
	c.Flags |= ChunkFlagLocalNames
	c.LocalNames = []string{"f"}

	data, err := c.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if data[0] != VersionTarget {
		t.Errorf("data[0] = %d, want version %d", data[0], VersionTarget)
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Name != "main" || got.LocalCount != 1 {
		t.Errorf("header = (%q, %d), want (main, 1)", got.Name, got.LocalCount)
	}
	if !bytes.Equal(got.Code, c.Code) {
		t.Errorf("Code = %v, want %v", got.Code, c.Code)
	}
	if len(got.Constants) != len(c.Constants) {
		t.Fatalf("len(Constants) = %d, want %d", len(got.Constants), len(c.Constants))
	}
	for i := range c.Constants {
		if !got.Constants[i].Same(c.Constants[i]) {
			t.Errorf("constant %d = %s, want %s", i, got.Constants[i].Display(), c.Constants[i].Display())
		}
	}
	if len(got.Children) != 1 || got.Children[0].Name != "add" || got.Children[0].ParamCount != 2 {
		t.Fatalf("children not preserved: %+v", got.Children)
	}
	if uv := got.Children[0].Upvalues; len(uv) != 1 || uv[0] != child.Upvalues[0] {
		t.Errorf("upvalues = %+v, want %+v", uv, child.Upvalues)
	}
	if len(got.LineInfo) != 2 || got.LineInfo[1].Line != 1 {
		t.Errorf("LineInfo = %+v", got.LineInfo)
	}
	if len(got.LocalNames) != 1 || got.LocalNames[0] != "f" {
		t.Errorf("LocalNames = %v, want [f]", got.LocalNames)
	}
}

func TestSerializeVectorNeedsVersion2(t *testing.T) {
	c := NewChunk()
	c.Version = 1
	c.AddConstant(VectorConstant(1, 2, 3, 0))
	c.Emit(OpReturnNil)
	if _, err := c.Serialize(); err == nil {
		t.Error("Serialize of vector constant at version 1 succeeded")
	}
}

func TestDeserializeErrors(t *testing.T) {
	valid := NewChunk()
	valid.Emit(OpReturnNil)
	data, _ := valid.Serialize()

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "too short"},
		{"error payload", EncodeError(":1: boom"), "boom"},
		{"future version", []byte{9}, "version mismatch"},
		{"truncated", data[:len(data)-3], "unexpected end of bytecode"},
		{"trailing", append(append([]byte{}, data...), 0), "trailing data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize(tt.data)
			if err == nil {
				t.Fatal("Deserialize succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestErrorPayload(t *testing.T) {
	data := EncodeError(":3: Expected 'end'")
	if !IsError(data) {
		t.Fatal("IsError(EncodeError(...)) = false")
	}
	msg, ok := ErrorMessage(data)
	if !ok || msg != ":3: Expected 'end'" {
		t.Errorf("ErrorMessage = (%q, %v)", msg, ok)
	}

	valid := NewChunk()
	valid.Emit(OpReturnNil)
	code, _ := valid.Serialize()
	if IsError(code) {
		t.Error("IsError(real bytecode) = true")
	}
	if IsError(nil) {
		t.Error("IsError(nil) = true")
	}
}
