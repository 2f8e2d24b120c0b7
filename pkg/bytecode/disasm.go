package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the chunk and
// every nested function.
func (c *Chunk) Disassemble() string {
	var sb strings.Builder
	c.disassembleInto(&sb, "main")
	return sb.String()
}

func (c *Chunk) disassembleInto(sb *strings.Builder, path string) {
	name := c.Name
	if name == "" {
		name = "<anonymous>"
	}

	// Header
	sb.WriteString(fmt.Sprintf("; === %s (%s) ===\n", path, name))
	if c.Version != 0 {
		sb.WriteString(fmt.Sprintf("; Bytecode v%d\n", c.Version))
	}
	sb.WriteString(fmt.Sprintf("; Flags: 0x%04X", c.Flags))
	if c.Flags&ChunkFlagLineInfo != 0 {
		sb.WriteString(" [LINES]")
	}
	if c.Flags&ChunkFlagLocalNames != 0 {
		sb.WriteString(" [LOCALS]")
	}
	if c.Flags&ChunkFlagCoverage != 0 {
		sb.WriteString(" [COVERAGE]")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("; Params: %d  Locals: %d slots\n", c.ParamCount, c.LocalCount))

	if len(c.LocalNames) > 0 {
		sb.WriteString("; Local names: " + strings.Join(c.LocalNames, ", ") + "\n")
	}

	// Constants
	if len(c.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, k := range c.Constants {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, k.Display()))
		}
	}

	// Upvalues
	if len(c.Upvalues) > 0 {
		sb.WriteString("; Upvalues:\n")
		for i, uv := range c.Upvalues {
			from := "upval"
			if uv.FromLocal {
				from = "local"
			}
			sb.WriteString(fmt.Sprintf(";   [%3d] %s (%s %d)\n", i, uv.Name, from, uv.Index))
		}
	}

	// Code section
	sb.WriteString("; Code:\n")
	offset := 0
	for offset < len(c.Code) {
		line, instrLen := c.disassembleInstruction(offset)
		if srcLine := c.LineAt(offset); c.Flags&ChunkFlagLineInfo != 0 && srcLine >= 0 {
			sb.WriteString(fmt.Sprintf("%04X  %-30s ; line %d\n", offset, line, srcLine+1))
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, line))
		}
		offset += instrLen
	}

	for i, child := range c.Children {
		sb.WriteString("\n")
		child.disassembleInto(sb, fmt.Sprintf("%s/%d", path, i))
	}
}

// disassembleInstruction disassembles a single instruction at the given offset.
// Returns the formatted string and the instruction length.
func (c *Chunk) disassembleInstruction(offset int) (string, int) {
	op := Opcode(c.Code[offset])
	info := GetOpcodeInfo(op)
	length := op.InstructionLen()
	if offset+length > len(c.Code) {
		return fmt.Sprintf("%s <truncated>", info.Name), len(c.Code) - offset
	}

	switch op {
	case OpLoadConst, OpGetGlobal, OpSetGlobal, OpGetImport, OpGetField, OpSetField:
		idx := c.readUint16(offset + 1)
		return fmt.Sprintf("%-14s %d ; %s", info.Name, idx, c.constantDisplay(idx)), length

	case OpClosure:
		idx := c.readUint16(offset + 1)
		return fmt.Sprintf("%-14s %d", info.Name, idx), length

	case OpGetLocal, OpSetLocal, OpNewLocal:
		slot := c.Code[offset+1]
		if int(slot) < len(c.LocalNames) && c.LocalNames[slot] != "" {
			return fmt.Sprintf("%-14s %d ; %s", info.Name, slot, c.LocalNames[slot]), length
		}
		return fmt.Sprintf("%-14s %d", info.Name, slot), length

	case OpGetUpval, OpSetUpval:
		idx := c.Code[offset+1]
		if int(idx) < len(c.Upvalues) {
			return fmt.Sprintf("%-14s %d ; %s", info.Name, idx, c.Upvalues[idx].Name), length
		}
		return fmt.Sprintf("%-14s %d", info.Name, idx), length

	case OpNewTable:
		return fmt.Sprintf("%-14s %d %d", info.Name, c.Code[offset+1], c.Code[offset+2]), length

	case OpCall, OpForTest:
		return fmt.Sprintf("%-14s %d", info.Name, c.Code[offset+1]), length

	case OpJump, OpJumpIfFalse, OpJumpIfFalseKeep, OpJumpIfTrueKeep:
		delta := int16(c.readUint16(offset + 1))
		return fmt.Sprintf("%-14s %+d -> %04X", info.Name, delta, offset+length+int(delta)), length

	case OpIterNext:
		slot := c.Code[offset+1]
		delta := int16(c.readUint16(offset + 2))
		return fmt.Sprintf("%-14s %d %+d -> %04X", info.Name, slot, delta, offset+length+int(delta)), length
	}

	if !op.IsValid() {
		return info.Name, 1
	}
	return info.Name, length
}

func (c *Chunk) readUint16(offset int) uint16 {
	return binary.BigEndian.Uint16(c.Code[offset:])
}

func (c *Chunk) constantDisplay(idx uint16) string {
	if int(idx) < len(c.Constants) {
		return c.Constants[idx].Display()
	}
	return "<invalid>"
}
