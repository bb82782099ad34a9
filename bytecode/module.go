package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Magic is the fixed module-file signature.
const Magic uint32 = 0xBEBECAFE

// Version is the wire-format version this package reads and writes.
const Version uint16 = 0x0001

// FlagLittleEndian is bit0 of the header's flags field.
const FlagLittleEndian uint16 = 1 << 0

// ModuleType distinguishes a procedural module from a reserved future
// class-based one.
type ModuleType uint8

const (
	ModuleProcedural ModuleType = 0
	ModuleClass       ModuleType = 1 // reserved, unused by this implementation
)

// ConstTag identifies a constant-pool entry's payload shape.
type ConstTag uint8

const (
	ConstEmpty      ConstTag = 0
	ConstInt        ConstTag = 1
	ConstFloat      ConstTag = 2
	ConstStringRef  ConstTag = 3
	ConstFunctionRef ConstTag = 4
	// ConstURLRef distinguishes a URL literal from a plain string literal:
	// mir.Type tracks the difference (TURL vs TString) and the VM needs it
	// to pick the right runtime representation at LoadConst. Encoded
	// identically to ConstStringRef (a string-table index) and numbered
	// after the five base tags (0-4). Deserialize rejects any tag it does
	// not know, so a reader that knows only the base tags cannot load a
	// module that uses it.
	ConstURLRef ConstTag = 5
	// ConstBool gives Bool its own constant-pool representation (payload
	// in Int, 0 or 1) instead of collapsing it into ConstInt: slots and
	// stack values carry no static type at runtime, so a Bool that loses
	// its tag at LoadConst time can never become a Bool again downstream.
	ConstBool ConstTag = 6
)

// Constant is one constant-pool entry.
type Constant struct {
	Tag      ConstTag
	Int      int64
	Float    float64
	StrIdx   uint32 // valid for ConstStringRef / ConstURLRef
	FuncIdx  uint16 // valid for ConstFunctionRef
}

// GlobalEntry binds a name (by string-table index) to a constant-pool slot.
type GlobalEntry struct {
	NameIdx  uint32
	ConstIdx uint16
}

// Module is the full deserialised compiled-module artifact: the only
// persistable entity in this system's compile/cache/run lifecycle.
type Module struct {
	Name         string
	ModuleType   ModuleType
	StringTable  []string
	Constants    []Constant
	Globals      []GlobalEntry
	Main         *Chunk
	Functions    []*Chunk
	BuildID      uuid.UUID // content-addressed, see computeBuildID
}

// NewModule creates an empty module ready for codegen to populate.
func NewModule(name string) *Module {
	return &Module{Name: name, ModuleType: ModuleProcedural}
}

// InternString returns s's index in the string table, adding it if new.
func (m *Module) InternString(s string) uint32 {
	for i, existing := range m.StringTable {
		if existing == s {
			return uint32(i)
		}
	}
	m.StringTable = append(m.StringTable, s)
	return uint32(len(m.StringTable) - 1)
}

// AddConstant appends c and returns its pool index.
func (m *Module) AddConstant(c Constant) uint16 {
	m.Constants = append(m.Constants, c)
	return uint16(len(m.Constants) - 1)
}

// Serialize encodes the module to its wire format: fixed header, string
// table, constant pool, globals table, main chunk, function chunks. All
// multi-byte integers are little-endian (flags bit0).
func (m *Module) Serialize() ([]byte, error) {
	var buf bytes.Buffer

	writeU16 := func(v uint16) { binary.Write(&buf, binary.LittleEndian, v) }
	writeU32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	writeU8 := func(v uint8) { buf.WriteByte(v) }

	writeU32(Magic)
	writeU16(Version)
	writeU16(FlagLittleEndian)
	writeU8(uint8(m.ModuleType))

	nameBytes := []byte(m.Name)
	writeU16(uint16(len(nameBytes)))
	buf.Write(nameBytes)

	writeU32(uint32(len(m.StringTable)))
	for _, s := range m.StringTable {
		sb := []byte(s)
		writeU32(uint32(len(sb)))
		buf.Write(sb)
	}

	writeU16(uint16(len(m.Constants)))
	for _, c := range m.Constants {
		writeU8(uint8(c.Tag))
		switch c.Tag {
		case ConstEmpty:
		case ConstInt, ConstBool:
			binary.Write(&buf, binary.LittleEndian, c.Int)
		case ConstFloat:
			binary.Write(&buf, binary.LittleEndian, c.Float)
		case ConstStringRef, ConstURLRef:
			writeU32(c.StrIdx)
		case ConstFunctionRef:
			writeU16(c.FuncIdx)
		default:
			return nil, fmt.Errorf("bytecode: serialize: unknown constant tag %d", c.Tag)
		}
	}

	writeU16(uint16(len(m.Globals)))
	for _, g := range m.Globals {
		writeU32(g.NameIdx)
		writeU16(g.ConstIdx)
	}

	if m.Main == nil {
		return nil, fmt.Errorf("bytecode: serialize: module %q has no main chunk", m.Name)
	}
	if err := writeChunk(&buf, m.Main); err != nil {
		return nil, fmt.Errorf("bytecode: serialize main chunk: %w", err)
	}

	writeU16(uint16(len(m.Functions)))
	for _, fn := range m.Functions {
		if err := writeChunk(&buf, fn); err != nil {
			return nil, fmt.Errorf("bytecode: serialize function chunk %q: %w", fn.Name, err)
		}
	}

	out := buf.Bytes()
	m.BuildID = computeBuildID(out)
	return out, nil
}

func writeChunk(buf *bytes.Buffer, c *Chunk) error {
	buf.WriteByte(c.Arity)
	binary.Write(buf, binary.LittleEndian, c.Locals)
	binary.Write(buf, binary.LittleEndian, uint32(len(c.Code)))
	buf.Write(c.Code)

	lineinfo, err := encodeLineInfo(c.Lines)
	if err != nil {
		return fmt.Errorf("encode lineinfo: %w", err)
	}
	binary.Write(buf, binary.LittleEndian, uint32(len(lineinfo)))
	buf.Write(lineinfo)
	return nil
}

// Deserialize decodes a module from its wire format.
func Deserialize(data []byte) (*Module, error) {
	r := bytes.NewReader(data)

	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("bytecode: deserialize: read magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("bytecode: deserialize: bad magic 0x%X", magic)
	}

	var version, flags uint16
	binary.Read(r, binary.LittleEndian, &version)
	binary.Read(r, binary.LittleEndian, &flags)
	if version != Version {
		return nil, fmt.Errorf("bytecode: deserialize: unsupported version 0x%X", version)
	}

	var modType uint8
	binary.Read(r, binary.LittleEndian, &modType)

	var nameLen uint16
	binary.Read(r, binary.LittleEndian, &nameLen)
	nameBytes := make([]byte, nameLen)
	if _, err := r.Read(nameBytes); err != nil {
		return nil, fmt.Errorf("bytecode: deserialize: read name: %w", err)
	}

	m := &Module{Name: string(nameBytes), ModuleType: ModuleType(modType)}

	var stringCount uint32
	binary.Read(r, binary.LittleEndian, &stringCount)
	for i := uint32(0); i < stringCount; i++ {
		var l uint32
		binary.Read(r, binary.LittleEndian, &l)
		sb := make([]byte, l)
		if _, err := r.Read(sb); err != nil {
			return nil, fmt.Errorf("bytecode: deserialize: read string %d: %w", i, err)
		}
		m.StringTable = append(m.StringTable, string(sb))
	}

	var constCount uint16
	binary.Read(r, binary.LittleEndian, &constCount)
	for i := uint16(0); i < constCount; i++ {
		var tag uint8
		binary.Read(r, binary.LittleEndian, &tag)
		c := Constant{Tag: ConstTag(tag)}
		switch c.Tag {
		case ConstEmpty:
		case ConstInt, ConstBool:
			binary.Read(r, binary.LittleEndian, &c.Int)
		case ConstFloat:
			binary.Read(r, binary.LittleEndian, &c.Float)
		case ConstStringRef, ConstURLRef:
			binary.Read(r, binary.LittleEndian, &c.StrIdx)
		case ConstFunctionRef:
			binary.Read(r, binary.LittleEndian, &c.FuncIdx)
		default:
			return nil, fmt.Errorf("bytecode: deserialize: unknown constant tag %d", tag)
		}
		m.Constants = append(m.Constants, c)
	}

	var globalCount uint16
	binary.Read(r, binary.LittleEndian, &globalCount)
	for i := uint16(0); i < globalCount; i++ {
		var g GlobalEntry
		binary.Read(r, binary.LittleEndian, &g.NameIdx)
		binary.Read(r, binary.LittleEndian, &g.ConstIdx)
		m.Globals = append(m.Globals, g)
	}

	main, err := readChunk(r, "main")
	if err != nil {
		return nil, fmt.Errorf("bytecode: deserialize main chunk: %w", err)
	}
	m.Main = main

	var fnCount uint16
	binary.Read(r, binary.LittleEndian, &fnCount)
	for i := uint16(0); i < fnCount; i++ {
		fn, err := readChunk(r, fmt.Sprintf("fn%d", i))
		if err != nil {
			return nil, fmt.Errorf("bytecode: deserialize function chunk %d: %w", i, err)
		}
		m.Functions = append(m.Functions, fn)
	}

	m.BuildID = computeBuildID(data)
	return m, nil
}

func readChunk(r *bytes.Reader, name string) (*Chunk, error) {
	c := &Chunk{Name: name}
	if err := binary.Read(r, binary.LittleEndian, &c.Arity); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &c.Locals); err != nil {
		return nil, err
	}
	var codeLen uint32
	if err := binary.Read(r, binary.LittleEndian, &codeLen); err != nil {
		return nil, err
	}
	c.Code = make([]byte, codeLen)
	if codeLen > 0 {
		if _, err := r.Read(c.Code); err != nil {
			return nil, err
		}
	}
	var lineLen uint32
	if err := binary.Read(r, binary.LittleEndian, &lineLen); err != nil {
		return nil, err
	}
	lineBytes := make([]byte, lineLen)
	if lineLen > 0 {
		if _, err := r.Read(lineBytes); err != nil {
			return nil, err
		}
	}
	lines, err := decodeLineInfo(lineBytes)
	if err != nil {
		return nil, fmt.Errorf("decode lineinfo: %w", err)
	}
	c.Lines = lines
	return c, nil
}

// computeBuildID derives a content-addressed identifier for a serialized
// module: a SHA1-namespaced uuid.NewSHA1 over the encoded bytes, not a
// random uuid.New — so re-serializing identical source always yields the
// same BuildID, letting config's module cache key off it directly.
func computeBuildID(encoded []byte) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, encoded)
}
