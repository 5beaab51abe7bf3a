package wasm

import (
	"bytes"
	"fmt"
	"io"
)

// NamedSection is a custom section read back out of a module binary.
type NamedSection struct {
	Name string
	Data []byte
}

// ReadCustomSections returns every custom section in the module, in order.
func ReadCustomSections(mod []byte) ([]*NamedSection, error) {
	var sections []*NamedSection
	err := walkSections(mod, func(sectionID byte, sectionData []byte) error {
		if sectionID != 0 {
			return nil
		}
		reader := bytes.NewReader(sectionData)
		name, err := readName(reader)
		if err != nil {
			return fmt.Errorf("failed to read custom section name: %w", err)
		}
		data := make([]byte, reader.Len())
		if _, err := reader.Read(data); err != nil && reader.Len() > 0 {
			return fmt.Errorf("failed to read custom section data: %w", err)
		}
		sections = append(sections, &NamedSection{Name: name, Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sections, nil
}

// AppendCustomSection returns a copy of the module with a custom section of
// the given name appended after all existing sections.
func AppendCustomSection(mod []byte, name string, data []byte) ([]byte, error) {
	if _, err := readModuleHeader(mod); err != nil {
		return nil, err
	}

	output := bytes.NewBuffer(make([]byte, 0, len(mod)+len(name)+len(data)+16))
	output.Write(mod)

	section := &CustomSection{Name: name, Data: data}
	if err := section.writeSection(output); err != nil {
		return nil, err
	}
	return output.Bytes(), nil
}

// StripCustomSections returns a copy of the module with every custom section
// of the given name removed. All other sections are copied verbatim.
func StripCustomSections(mod []byte, name string) ([]byte, error) {
	if _, err := readModuleHeader(mod); err != nil {
		return nil, err
	}

	output := bytes.NewBuffer(make([]byte, 0, len(mod)))
	output.Write(mod[0:8]) // Copy magic and version

	err := walkSections(mod, func(sectionID byte, sectionData []byte) error {
		if sectionID == 0 {
			reader := bytes.NewReader(sectionData)
			sectionName, err := readName(reader)
			if err != nil {
				return fmt.Errorf("failed to read custom section name: %w", err)
			}
			if sectionName == name {
				return nil
			}
		}

		if err := output.WriteByte(sectionID); err != nil {
			return err
		}
		if err := writeLEB128(output, uint32(len(sectionData))); err != nil {
			return err
		}
		if _, err := output.Write(sectionData); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return output.Bytes(), nil
}

func walkSections(mod []byte, visit func(sectionID byte, sectionData []byte) error) error {
	var err error
	mod, err = readModuleHeader(mod)
	if err != nil {
		return err
	}

	for len(mod) > 0 {
		// Read section ID
		sectionID := mod[0]
		mod = mod[1:]

		// Read section size (LEB128)
		sectionSize, bytesRead, err := readLEB128(mod)
		if err != nil {
			return fmt.Errorf("failed to read section size: %w", err)
		}
		mod = mod[bytesRead:]

		// Check bounds
		if len(mod) < int(sectionSize) {
			return fmt.Errorf("section size exceeds module bounds")
		}

		sectionData := mod[:int(sectionSize)]
		mod = mod[int(sectionSize):]

		if err := visit(sectionID, sectionData); err != nil {
			return err
		}
	}
	return nil
}

func readModuleHeader(moduleBytes []byte) ([]byte, error) {
	if len(moduleBytes) < 8 {
		return nil, fmt.Errorf("module too short: %d bytes", len(moduleBytes))
	}

	// Verify magic number (0x00 0x61 0x73 0x6D)
	if !bytes.Equal(moduleBytes[0:4], []byte{0x00, 0x61, 0x73, 0x6D}) {
		return nil, fmt.Errorf("invalid magic number")
	}

	// Verify version (0x01 0x00 0x00 0x00 for core modules)
	if !bytes.Equal(moduleBytes[4:8], []byte{0x01, 0x00, 0x00, 0x00}) {
		return nil, fmt.Errorf("invalid version")
	}

	return moduleBytes[8:], nil
}

func readLEB128(buf []byte) (uint32, int, error) {
	var result uint32
	var shift uint
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
		if shift >= 35 {
			return 0, 0, fmt.Errorf("LEB128 value too long")
		}
	}
	return 0, 0, fmt.Errorf("unexpected end of LEB128 value")
}

func readLEB128FromReader(r *bytes.Reader) (uint32, error) {
	var result uint32
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 35 {
			return 0, fmt.Errorf("LEB128 value too long")
		}
	}
}

func readName(r *bytes.Reader) (string, error) {
	length, err := readLEB128FromReader(r)
	if err != nil {
		return "", err
	}
	name := make([]byte, length)
	if _, err := io.ReadFull(r, name); err != nil {
		return "", err
	}
	return string(name), nil
}
