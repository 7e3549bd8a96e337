package renderer

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Conversions from typed data into the raw bytes buffers and uniforms are written with. All of them share
// memory with their input except RawBytes.

// RawBytes encodes a fixed size value, or a slice of them, little endian. Use it for structs.
func RawBytes(v any) []byte {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		Logger().Error("binary encoding failed", "err", err)
		return nil
	}
	return buf.Bytes()
}

func Float32Bytes(in []float32) []byte {
	if len(in) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&in[0])), len(in)*4)
}

func Uint32Bytes(in []uint32) []byte {
	if len(in) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&in[0])), len(in)*4)
}

func Uint16Bytes(in []uint16) []byte {
	if len(in) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&in[0])), len(in)*2)
}

// Mat4Bytes returns the column major bytes of m, as GLSL expects a mat4.
func Mat4Bytes(m *mgl32.Mat4) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&m[0])), 64)
}

func Vec4Bytes(v *mgl32.Vec4) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), 16)
}
