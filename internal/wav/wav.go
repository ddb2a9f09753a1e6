// Package wav builds and splices canonical PCM WAV files.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the length of a canonical RIFF/WAVE header with one fmt
	// chunk and the data chunk header.
	HeaderSize = 44

	riffHeaderSize  = 12
	chunkHeaderSize = 8
	pcmFormat       = 1
)

// ErrNoAudio is returned by Combine when there is nothing to combine.
var ErrNoAudio = errors.New("wav: no audio data")

// InvalidError reports a malformed WAV part. Index is the part's position
// in the input to Combine, or -1 for a single file.
type InvalidError struct {
	Index   int
	Details string
}

func (e *InvalidError) Error() string {
	if e.Index < 0 {
		return "wav: invalid file: " + e.Details
	}
	return fmt.Sprintf("wav: invalid part %d: %s", e.Index, e.Details)
}

// Format describes PCM sample layout.
type Format struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
}

// Mono16 is 16-bit mono PCM at rate Hz.
func Mono16(rate int) Format {
	return Format{SampleRate: uint32(rate), Channels: 1, BitsPerSample: 16}
}

func (f Format) blockAlign() uint16 { return f.Channels * f.BitsPerSample / 8 }

func (f Format) byteRate() uint32 { return f.SampleRate * uint32(f.blockAlign()) }

// Header returns a 44-byte header for dataSize bytes of PCM in format f.
func Header(f Format, dataSize uint32) []byte {
	h := make([]byte, HeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], pcmFormat)
	binary.LittleEndian.PutUint16(h[22:24], f.Channels)
	binary.LittleEndian.PutUint32(h[24:28], f.SampleRate)
	binary.LittleEndian.PutUint32(h[28:32], f.byteRate())
	binary.LittleEndian.PutUint16(h[32:34], f.blockAlign())
	binary.LittleEndian.PutUint16(h[34:36], f.BitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	return h
}

// IsRIFF reports whether b starts with a RIFF/WAVE signature.
func IsRIFF(b []byte) bool {
	return len(b) >= riffHeaderSize &&
		bytes.Equal(b[0:4], []byte("RIFF")) &&
		bytes.Equal(b[8:12], []byte("WAVE"))
}

// Parse walks the chunks of a WAV file and returns its format and the
// contents of its data chunk. Chunks other than fmt and data are skipped.
func Parse(b []byte) (Format, []byte, error) {
	return parse(b, -1)
}

func parse(b []byte, index int) (Format, []byte, error) {
	var f Format
	if !IsRIFF(b) {
		return f, nil, &InvalidError{Index: index, Details: "missing RIFF/WAVE signature"}
	}

	haveFmt := false
	for off := riffHeaderSize; off+chunkHeaderSize <= len(b); {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + chunkHeaderSize
		if size < 0 || body+size > len(b) {
			if id == "data" {
				return f, nil, &InvalidError{Index: index, Details: "data chunk runs past end of file"}
			}
			break
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return f, nil, &InvalidError{Index: index, Details: "fmt chunk too short"}
			}
			f.Channels = binary.LittleEndian.Uint16(b[body+2 : body+4])
			f.SampleRate = binary.LittleEndian.Uint32(b[body+4 : body+8])
			f.BitsPerSample = binary.LittleEndian.Uint16(b[body+14 : body+16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return f, nil, &InvalidError{Index: index, Details: "data chunk before fmt chunk"}
			}
			return f, b[body : body+size], nil
		}

		off = body + size
		if size%2 != 0 {
			off++
		}
	}
	return f, nil, &InvalidError{Index: index, Details: "no data chunk"}
}

// Combine concatenates the audio of several WAV files into one, using the
// first part's format. Parts must share a format.
func Combine(parts [][]byte) ([]byte, error) {
	if len(parts) == 0 {
		return nil, ErrNoAudio
	}

	format, first, err := parse(parts[0], 0)
	if err != nil {
		return nil, err
	}

	datas := [][]byte{first}
	total := len(first)
	for i := 1; i < len(parts); i++ {
		f, data, err := parse(parts[i], i)
		if err != nil {
			return nil, err
		}
		if f != format {
			return nil, &InvalidError{Index: i, Details: fmt.Sprintf("format %+v differs from %+v", f, format)}
		}
		datas = append(datas, data)
		total += len(data)
	}

	out := make([]byte, 0, HeaderSize+total)
	out = append(out, Header(format, uint32(total))...)
	for _, d := range datas {
		out = append(out, d...)
	}
	return out, nil
}
