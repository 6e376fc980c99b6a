package encoder

import (
	"encoding/binary"
	"math"
)

type Buffer struct {
	Bytes []byte
}

func (b *Buffer) Byte(v byte) {
	b.Bytes = append(b.Bytes, v)
}

func (b *Buffer) Raw(v []byte) {
	b.Bytes = append(b.Bytes, v...)
}

// U32 writes unsigned LEB128, which is exactly Go's uvarint encoding.
func (b *Buffer) U32(v uint32) {
	b.Bytes = binary.AppendUvarint(b.Bytes, uint64(v))
}

// S64 writes signed LEB128.
func (b *Buffer) S64(v int64) {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if done {
			b.Bytes = append(b.Bytes, c)
			return
		}
		b.Bytes = append(b.Bytes, c|0x80)
	}
}

func (b *Buffer) S32(v int32) {
	b.S64(int64(v))
}

func (b *Buffer) F32(v float32) {
	b.Bytes = binary.LittleEndian.AppendUint32(b.Bytes, math.Float32bits(v))
}

func (b *Buffer) F64(v float64) {
	b.Bytes = binary.LittleEndian.AppendUint64(b.Bytes, math.Float64bits(v))
}

func (b *Buffer) Name(s string) {
	b.U32(uint32(len(s)))
	b.Bytes = append(b.Bytes, s...)
}

func (b *Buffer) Limits(lo uint32, hi *uint32) {
	if hi == nil {
		b.Byte(0x00)
		b.U32(lo)
		return
	}
	b.Byte(0x01)
	b.U32(lo)
	b.U32(*hi)
}

// Section writes id followed by the size-prefixed content.
func (b *Buffer) Section(id byte, content *Buffer) {
	b.Byte(id)
	b.U32(uint32(len(content.Bytes)))
	b.Raw(content.Bytes)
}
