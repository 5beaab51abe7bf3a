package wasm

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tetratelabs/wazero/api"
)

// Builder assembles a core WebAssembly module binary section by section.
// Sections are written in the order they were added; callers are responsible
// for respecting the binary format's section ordering rules.
type Builder struct {
	sections []Section
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) AddSection(section Section) {
	b.sections = append(b.sections, section)
}

func (b *Builder) Build() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x61, 0x73, 0x6D}) // WASM Magic Number
	buf.Write([]byte{0x01, 0x00, 0x00, 0x00}) // WASM Version 1
	for _, section := range b.sections {
		if err := section.writeSection(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

type Section interface {
	writeSection(w writer) error
}

type writer interface {
	io.Writer
	io.ByteWriter
}

type TypeSection struct {
	Types []*FuncTypeDef
}

// AddFuncType registers a function type and returns its index. Duplicate
// signatures get duplicate entries, which the format permits.
func (ts *TypeSection) AddFuncType(def *FuncTypeDef) uint32 {
	ts.Types = append(ts.Types, def)
	return uint32(len(ts.Types) - 1)
}

func (ts *TypeSection) writeSection(w writer) error {
	var contents bytes.Buffer
	if err := writeLEB128(&contents, uint32(len(ts.Types))); err != nil {
		return err
	}
	for _, t := range ts.Types {
		if err := t.writeType(&contents); err != nil {
			return err
		}
	}

	return writeSectionBody(w, 1, contents.Bytes())
}

type FuncTypeDef struct {
	ParamTypes  []ValueType
	ResultTypes []ValueType
}

func (f *FuncTypeDef) writeType(w writer) error {
	if err := w.WriteByte(0x60); err != nil {
		return err
	}

	if err := writeLEB128(w, uint32(len(f.ParamTypes))); err != nil {
		return err
	}
	for _, paramType := range f.ParamTypes {
		if err := paramType.writeType(w); err != nil {
			return err
		}
	}

	if err := writeLEB128(w, uint32(len(f.ResultTypes))); err != nil {
		return err
	}
	for _, resultType := range f.ResultTypes {
		if err := resultType.writeType(w); err != nil {
			return err
		}
	}

	return nil
}

type ImportSection struct {
	Imports []*Import
}

func (is *ImportSection) writeSection(w writer) error {
	var contents bytes.Buffer
	writeLEB128(&contents, uint32(len(is.Imports)))
	for _, imp := range is.Imports {
		if err := writeLEB128(&contents, uint32(len(imp.Module))); err != nil {
			return err
		}
		if _, err := contents.Write([]byte(imp.Module)); err != nil {
			return err
		}

		if err := writeLEB128(&contents, uint32(len(imp.Name))); err != nil {
			return err
		}
		if _, err := contents.Write([]byte(imp.Name)); err != nil {
			return err
		}

		if err := imp.ImportDesc.writeImportDesc(&contents); err != nil {
			return err
		}
	}

	return writeSectionBody(w, 2, contents.Bytes())
}

type Import struct {
	Module     string
	Name       string
	ImportDesc ImportDesc
}

type ImportDesc interface {
	writeImportDesc(writer) error
}

type FuncType struct {
	TypeIdx uint32
}

func (f *FuncType) writeImportDesc(w writer) error {
	if err := w.WriteByte(0); err != nil {
		return err
	}
	if err := writeLEB128(w, f.TypeIdx); err != nil {
		return err
	}
	return nil
}

type GlobalType struct {
	ValType ValueType
	Mutable bool
}

func (g *GlobalType) writeImportDesc(w writer) error {
	if err := w.WriteByte(3); err != nil {
		return err
	}
	return g.writeGlobalType(w)
}

func (g *GlobalType) writeGlobalType(w writer) error {
	if err := g.ValType.writeType(w); err != nil {
		return err
	}

	var mutableByte byte
	if g.Mutable {
		mutableByte = 1
	}

	return w.WriteByte(mutableByte)
}

type FuncSection struct {
	FuncTypeIndices []uint32
}

func (fs *FuncSection) writeSection(w writer) error {
	var contents bytes.Buffer
	if err := writeLEB128(&contents, uint32(len(fs.FuncTypeIndices))); err != nil {
		return err
	}
	for _, typeIdx := range fs.FuncTypeIndices {
		if err := writeLEB128(&contents, typeIdx); err != nil {
			return err
		}
	}

	return writeSectionBody(w, 3, contents.Bytes())
}

type GlobalSection struct {
	Globals []*Global
}

type Global struct {
	Type *GlobalType
	Init Instr
}

func (gs *GlobalSection) writeSection(w writer) error {
	var contents bytes.Buffer
	if err := writeLEB128(&contents, uint32(len(gs.Globals))); err != nil {
		return err
	}
	for _, g := range gs.Globals {
		if err := g.Type.writeGlobalType(&contents); err != nil {
			return err
		}
		if err := g.Init.writeInstr(&contents); err != nil {
			return err
		}
		if err := contents.WriteByte(0x0B); err != nil {
			return err
		}
	}

	return writeSectionBody(w, 6, contents.Bytes())
}

type ExportSection struct {
	Exports []*Export
}

func (es *ExportSection) writeSection(w writer) error {
	var contents bytes.Buffer
	writeLEB128(&contents, uint32(len(es.Exports)))
	for _, exp := range es.Exports {
		if err := writeLEB128(&contents, uint32(len(exp.Name))); err != nil {
			return err
		}
		if _, err := contents.Write([]byte(exp.Name)); err != nil {
			return err
		}
		if err := exp.ExportDesc.writeExportDesc(&contents); err != nil {
			return err
		}
	}

	return writeSectionBody(w, 7, contents.Bytes())
}

type Export struct {
	Name       string
	ExportDesc ExportDesc
}

type ExportDesc interface {
	writeExportDesc(w writer) error
}

type FuncExport struct {
	Idx uint32
}

func (f *FuncExport) writeExportDesc(w writer) error {
	if err := w.WriteByte(0); err != nil {
		return err
	}
	if err := writeLEB128(w, f.Idx); err != nil {
		return err
	}
	return nil
}

type GlobalExport struct {
	Idx uint32
}

func (g *GlobalExport) writeExportDesc(w writer) error {
	if err := w.WriteByte(3); err != nil {
		return err
	}
	if err := writeLEB128(w, g.Idx); err != nil {
		return err
	}
	return nil
}

type CodeSection struct {
	Bodies []*FuncBody
}

// FuncBody is a function body without local declarations. The terminating
// end opcode is written automatically.
type FuncBody struct {
	Instrs []Instr
}

func (cs *CodeSection) writeSection(w writer) error {
	var contents bytes.Buffer
	if err := writeLEB128(&contents, uint32(len(cs.Bodies))); err != nil {
		return err
	}
	for _, body := range cs.Bodies {
		var code bytes.Buffer
		if err := writeLEB128(&code, 0); err != nil {
			return err
		}
		for _, instr := range body.Instrs {
			if err := instr.writeInstr(&code); err != nil {
				return err
			}
		}
		if err := code.WriteByte(0x0B); err != nil {
			return err
		}

		if err := writeLEB128(&contents, uint32(code.Len())); err != nil {
			return err
		}
		if _, err := contents.Write(code.Bytes()); err != nil {
			return err
		}
	}

	return writeSectionBody(w, 10, contents.Bytes())
}

type CustomSection struct {
	Name string
	Data []byte
}

func (cs *CustomSection) writeSection(w writer) error {
	var contents bytes.Buffer
	if err := writeLEB128(&contents, uint32(len(cs.Name))); err != nil {
		return err
	}
	if _, err := contents.Write([]byte(cs.Name)); err != nil {
		return err
	}
	if _, err := contents.Write(cs.Data); err != nil {
		return err
	}

	return writeSectionBody(w, 0, contents.Bytes())
}

func writeSectionBody(w writer, id byte, contents []byte) error {
	if err := w.WriteByte(id); err != nil {
		return err
	}
	if err := writeLEB128(w, uint32(len(contents))); err != nil {
		return err
	}
	if _, err := w.Write(contents); err != nil {
		return err
	}
	return nil
}

type Instr interface {
	writeInstr(w writer) error
}

type LocalGet struct {
	Idx uint32
}

func (i LocalGet) writeInstr(w writer) error {
	if err := w.WriteByte(0x20); err != nil {
		return err
	}
	return writeLEB128(w, i.Idx)
}

type GlobalGet struct {
	Idx uint32
}

func (i GlobalGet) writeInstr(w writer) error {
	if err := w.WriteByte(0x23); err != nil {
		return err
	}
	return writeLEB128(w, i.Idx)
}

type GlobalSet struct {
	Idx uint32
}

func (i GlobalSet) writeInstr(w writer) error {
	if err := w.WriteByte(0x24); err != nil {
		return err
	}
	return writeLEB128(w, i.Idx)
}

type Call struct {
	FuncIdx uint32
}

func (i Call) writeInstr(w writer) error {
	if err := w.WriteByte(0x10); err != nil {
		return err
	}
	return writeLEB128(w, i.FuncIdx)
}

type I32Const struct {
	Value int32
}

func (i I32Const) writeInstr(w writer) error {
	if err := w.WriteByte(0x41); err != nil {
		return err
	}
	return writeSLEB128(w, int64(i.Value))
}

type I64Const struct {
	Value int64
}

func (i I64Const) writeInstr(w writer) error {
	if err := w.WriteByte(0x42); err != nil {
		return err
	}
	return writeSLEB128(w, i.Value)
}

type I32Add struct{}

func (i I32Add) writeInstr(w writer) error {
	return w.WriteByte(0x6A)
}

type Drop struct{}

func (i Drop) writeInstr(w writer) error {
	return w.WriteByte(0x1A)
}

type Type interface {
	writeType(w writer) error
}

type ValueType interface {
	Type
	isValueType()
}

type I32 struct{}

func (i I32) isValueType() {}

func (i I32) writeType(w writer) error {
	return w.WriteByte(0x7F)
}

type I64 struct{}

func (i I64) isValueType() {}

func (i I64) writeType(w writer) error {
	return w.WriteByte(0x7E)
}

type F32 struct{}

func (f F32) isValueType() {}

func (f F32) writeType(w writer) error {
	return w.WriteByte(0x7D)
}

type F64 struct{}

func (f F64) isValueType() {}

func (f F64) writeType(w writer) error {
	return w.WriteByte(0x7C)
}

func WazeroValueTypeToValueType(vt api.ValueType) (ValueType, error) {
	switch vt {
	case api.ValueTypeI32:
		return I32{}, nil
	case api.ValueTypeI64:
		return I64{}, nil
	case api.ValueTypeF32:
		return F32{}, nil
	case api.ValueTypeF64:
		return F64{}, nil
	default:
		return nil, fmt.Errorf("unsupported wazero value type: %v", vt)
	}
}

func writeLEB128(w writer, value uint32) error {
	for {
		b := byte(value & 0x7F)
		value >>= 7
		if value != 0 {
			b |= 0x80
		}
		if _, err := w.Write([]byte{b}); err != nil {
			return err
		}
		if value == 0 {
			break
		}
	}
	return nil
}

func writeSLEB128(w writer, value int64) error {
	for {
		b := byte(value & 0x7F)
		value >>= 7
		done := (value == 0 && b&0x40 == 0) || (value == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		if _, err := w.Write([]byte{b}); err != nil {
			return err
		}
		if done {
			break
		}
	}
	return nil
}
