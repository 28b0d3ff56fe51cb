package mca

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
	"github.com/pierrec/xxHash/xxHash32"
)

// frameMagic begins every framed block in a method-4 chunk payload. See
// https://minecraft.gamepedia.com/Region_file_format#Chunk_data for the
// containing format; the frame layout itself is not part of that page.
var frameMagic = [8]byte{'L', 'Z', '4', 'B', 'l', 'o', 'c', 'k'}

const (
	frameHeaderLen  = 8 + 1 + 4 + 4 + 4 // magic + token + compLen + decompLen + checksum
	tokenMethodMask = 0xF0
	tokenRaw        = 0x10
	tokenCompressed = 0x20
	checksumSeed    = 0x9747B28C
	checksumMask    = 0x0FFFFFFF
)

// FrameError reports why a framed-block stream failed to decode.
type FrameError struct {
	Kind string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("framed block: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("framed block: %s", e.Kind)
}

func (e *FrameError) Unwrap() error { return e.Err }

func frameErr(kind string) error { return &FrameError{Kind: kind} }

// DecodeFramedBlocks decodes a concatenation of "LZ4Block"-framed blocks,
// verifying each block's checksum, and returns the concatenated decompressed
// payload. See spec §4.1 for the exact frame layout.
func DecodeFramedBlocks(input []byte) ([]byte, error) {
	var out []byte
	i := 0
	for i < len(input) {
		if i+frameHeaderLen > len(input) {
			return nil, frameErr("Truncated")
		}
		var magic [8]byte
		copy(magic[:], input[i:i+8])
		if magic != frameMagic {
			return nil, frameErr("BadMagic")
		}
		token := input[i+8]
		compLen := binary.LittleEndian.Uint32(input[i+9 : i+13])
		decompLen := binary.LittleEndian.Uint32(input[i+13 : i+17])
		checksum := binary.LittleEndian.Uint32(input[i+17 : i+21])

		start := i + frameHeaderLen
		end := start + int(compLen)
		if end > len(input) || end < start {
			return nil, frameErr("Truncated")
		}
		block := input[start:end]

		var decoded []byte
		switch token & tokenMethodMask {
		case tokenRaw:
			if uint32(len(block)) != decompLen {
				return nil, frameErr("Truncated")
			}
			decoded = block
		case tokenCompressed:
			decoded = make([]byte, decompLen)
			n, err := lz4.UncompressBlock(block, decoded)
			if err != nil {
				return nil, &FrameError{Kind: "Truncated", Err: err}
			}
			decoded = decoded[:n]
		default:
			return nil, frameErr("UnsupportedMethod")
		}

		sum := xxHash32.Checksum(decoded, checksumSeed) & checksumMask
		if sum != checksum {
			return nil, frameErr("ChecksumMismatch")
		}

		out = append(out, decoded...)
		i = end
	}
	if i != len(input) {
		return nil, frameErr("TrailingBytes")
	}
	return out, nil
}

// EncodeFramedBlock encodes payload as a single frame, used by tests to
// build round-trip fixtures. compressed runs the payload through the LZ4
// block compressor and selects the 0x20 token, unless the compressor fails or
// produces no output, in which case the 0x10 (raw) token is used; otherwise
// the 0x10 (raw) token stores payload verbatim.
func EncodeFramedBlock(payload []byte, compressed bool) []byte {
	checksum := xxHash32.Checksum(payload, checksumSeed) & checksumMask

	var block []byte
	var token byte
	if compressed {
		dst := make([]byte, lz4.CompressBlockBound(len(payload)))
		ht := make([]int, 1<<16)
		n, err := lz4.CompressBlock(payload, dst, ht)
		if err != nil || n == 0 {
			// Incompressible: fall back to the raw token like the encoder must.
			token = tokenRaw
			block = payload
		} else {
			token = tokenCompressed
			block = dst[:n]
		}
	} else {
		token = tokenRaw
		block = payload
	}

	out := make([]byte, 0, frameHeaderLen+len(block))
	out = append(out, frameMagic[:]...)
	out = append(out, token)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(block)))
	out = append(out, lenBuf[:]...)
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	out = append(out, lenBuf[:]...)
	binary.LittleEndian.PutUint32(lenBuf[:], checksum)
	out = append(out, lenBuf[:]...)
	out = append(out, block...)
	return out
}
