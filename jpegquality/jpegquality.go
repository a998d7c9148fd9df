// Package jpegquality estimates the quality setting a JPEG image was encoded
// with by comparing its quantization tables against the standard IJG tables.
package jpegquality

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// Parsing errors.
var (
	ErrInvalidJPEG  = errors.New("invalid JPEG header")
	ErrWrongTable   = errors.New("wrong size for quantization table")
	ErrShortSegment = errors.New("short segment length")
	ErrShortDQT     = errors.New("section DQT is too short")
)

// Standard quantization tables in zig-zag order (Annex K of the JPEG
// specification). libjpeg-derived encoders write scaled versions of these for
// any given quality setting.
var (
	stdLuminance = [64]int{
		16, 11, 12, 14, 12, 10, 16, 14,
		13, 14, 18, 17, 16, 19, 24, 40,
		26, 24, 22, 22, 24, 49, 35, 37,
		29, 40, 58, 51, 61, 60, 57, 51,
		56, 55, 64, 72, 92, 78, 64, 68,
		87, 69, 55, 56, 80, 109, 81, 87,
		95, 98, 103, 104, 103, 62, 77, 113,
		121, 112, 100, 120, 92, 101, 103, 99,
	}
	stdChrominance = [64]int{
		17, 18, 18, 24, 21, 24, 47, 26,
		26, 47, 99, 66, 56, 66, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
	}
)

type jpegReader struct {
	rs io.ReadSeeker
	q  int
}

// New reads the JPEG stream and determines its encoding quality.
func New(rs io.ReadSeeker) (*jpegReader, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	jr := &jpegReader{rs: rs}
	if jr.readMarker() != 0xffd8 {
		return nil, ErrInvalidJPEG
	}
	q, err := jr.readQuality()
	if err != nil {
		return nil, err
	}
	jr.q = q
	return jr, nil
}

// NewWithBytes determines encoding quality of the JPEG image in the buffer.
func NewWithBytes(data []byte) (*jpegReader, error) {
	return New(bytes.NewReader(data))
}

// Quality returns detected JPEG quality level.
func (jr *jpegReader) Quality() int {
	return jr.q
}

// readMarker scans forward for the next segment marker. Returns 0 when the
// stream ends before one is found.
func (jr *jpegReader) readMarker() int {
	var mark [2]byte
	for {
		if _, err := io.ReadFull(jr.rs, mark[:]); err != nil {
			return 0
		}
		if mark[0] == 0xff && mark[1] != 0xff && mark[1] != 0x00 {
			return int(binary.BigEndian.Uint16(mark[:]))
		}
	}
}

// readQuality walks segments until the first DQT and derives quality from it.
func (jr *jpegReader) readQuality() (int, error) {
	for {
		mark := jr.readMarker()
		if mark == 0 {
			return 0, ErrInvalidJPEG
		}

		var length16 uint16
		if err := binary.Read(jr.rs, binary.BigEndian, &length16); err != nil {
			return 0, err
		}
		length := int(length16) - 2
		if length < 0 {
			return 0, ErrShortSegment
		}

		if mark&0xff != 0xdb {
			if _, err := jr.rs.Seek(int64(length), io.SeekCurrent); err != nil {
				return 0, err
			}
			continue
		}
		return jr.parseDQT(length)
	}
}

// parseDQT reads quantization tables from the segment and estimates quality
// from the luminance table, falling back to chrominance when luminance is
// absent. Estimation inverts the standard scaling formula: per-coefficient
// scale factors are averaged, scale up to 100 maps to quality (200-scale)/2,
// larger scale to 5000/scale. An all-ones table is quality 100.
func (jr *jpegReader) parseDQT(length int) (int, error) {
	if length < 65 {
		return 0, ErrShortDQT
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(jr.rs, data); err != nil {
		return 0, err
	}

	var (
		quality  = -1.0
		haveLuma bool
	)
	for pos := 0; pos < len(data); {
		precision := int(data[pos] >> 4)
		index := int(data[pos] & 0x0f)
		pos++

		size := 64
		if precision == 1 {
			size = 128
		}
		if pos+size > len(data) {
			return 0, ErrWrongTable
		}
		if index > 1 || haveLuma {
			pos += size
			continue
		}

		std := &stdLuminance
		if index == 1 {
			std = &stdChrominance
		}

		allOnes := true
		var cumulative float64
		for i := range 64 {
			var v int
			if precision == 1 {
				v = int(binary.BigEndian.Uint16(data[pos+2*i:]))
			} else {
				v = int(data[pos+i])
			}
			if v != 1 {
				allOnes = false
			}
			cumulative += float64(v*100) / float64(std[i])
		}
		pos += size

		if allOnes {
			quality = 100
		} else if scale := cumulative / 64; scale <= 100 {
			quality = (200 - scale) / 2
		} else {
			quality = 5000 / scale
		}
		haveLuma = index == 0
	}

	if quality < 0 {
		return 0, ErrShortDQT
	}
	return min(max(int(math.Round(quality)), 1), 100), nil
}
