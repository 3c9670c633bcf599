package dylib

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blacktop/go-macho"
	"github.com/blacktop/go-macho/types"
)

var (
	// ErrNotDylib is returned for Mach-O files that are not MH_DYLIB.
	ErrNotDylib = errors.New("not a dynamic library")
	// ErrWrongArch is returned when the library is not built for arm64.
	ErrWrongArch = errors.New("unexpected architecture")
	// ErrUnsigned is returned when a signature was expected but none is present.
	ErrUnsigned = errors.New("no code signature")
)

// Info summarizes a thin Mach-O file.
type Info struct {
	// CPU is the architecture, e.g. arm64.
	CPU types.CPU
	// Type is the Mach-O file type.
	Type types.HeaderFileType
	// Signed reports an LC_CODE_SIGNATURE load command.
	Signed bool
	// Size is the file size in bytes.
	Size int64
}

// Inspect parses the Mach-O header and load commands of path.
func Inspect(path string) (*Info, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	m, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse Mach-O %s: %w", path, err)
	}
	defer m.Close()

	info := &Info{
		CPU:  m.FileHeader.CPU,
		Type: m.FileHeader.Type,
		Size: int64(len(data)),
	}

	for _, load := range m.Loads {
		if _, ok := load.(*macho.CodeSignature); ok {
			info.Signed = true
			break
		}
	}

	return info, nil
}

// Check verifies the library is an arm64 dylib, signed if requireSigned is set.
func (i *Info) Check(requireSigned bool) error {
	if i.Type != types.MH_DYLIB {
		return fmt.Errorf("%w: file type %s", ErrNotDylib, i.Type)
	}

	if i.CPU != types.CPUArm64 {
		return fmt.Errorf("%w: %s", ErrWrongArch, i.CPU)
	}

	if requireSigned && !i.Signed {
		return ErrUnsigned
	}

	return nil
}

// Verify inspects path and runs Check.
func Verify(path string, requireSigned bool) error {
	info, err := Inspect(path)
	if err != nil {
		return err
	}

	if err = info.Check(requireSigned); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return nil
}
