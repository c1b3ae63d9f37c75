package db

import (
	"encoding/binary"
	"math"
)

// EncodeVector encodes v as the little-endian FLOAT32 blob VECTOR fields and KNN params expect.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// DecodeVector decodes a little-endian FLOAT32 blob as stored in a VECTOR field.
// A blob whose length is not a multiple of 4 yields nil.
func DecodeVector(blob string) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(blob[i*4 : i*4+4])))
	}
	return out
}
