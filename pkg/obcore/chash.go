package obcore

import (
	"crypto/sha256"
	"encoding/base32"
	"errors"

	"golang.org/x/crypto/ripemd160"
)

// The checksum bits of a chash are interleaved into the clean data at fixed
// offsets derived from the decimal expansion of pi.
const pi = "14159265358979323846264338327950288419716939937510" +
	"58209749445923078164062862089986280348253421170679" +
	"82148086513282306647093844609550582231725359408128" +
	"48111745028410270193852110555964462294895493038196"

var offsets160 = calcOffsets(160)

var base32Enc = base32.StdEncoding.WithPadding(base32.NoPadding)

var (
	// ErrInvalidChash is returned when a chash string fails checksum or
	// length validation.
	ErrInvalidChash = errors.New("invalid chash")
)

func calcOffsets(chashLength int) []int {
	offsets := make([]int, 0, 32)
	offset := 0
	for i := 0; offset < chashLength; i++ {
		relative := int(pi[i] - '0')
		if relative == 0 {
			continue
		}
		offset += relative
		if offset >= chashLength {
			break
		}
		offsets = append(offsets, offset)
	}
	if len(offsets) != 32 {
		panic("chash: wrong number of checksum offsets")
	}
	return offsets
}

func checksum(cleanData []byte) []byte {
	full := sha256.Sum256(cleanData)
	return []byte{full[5], full[13], full[21], full[26]}
}

func bufferToBin(buf []byte) []bool {
	bits := make([]bool, 0, len(buf)*8)
	for _, b := range buf {
		for i := 7; i >= 0; i-- {
			bits = append(bits, b&(1<<uint(i)) != 0)
		}
	}
	return bits
}

func binToBuffer(bits []bool) []byte {
	buf := make([]byte, len(bits)/8)
	for i, bit := range bits {
		if bit {
			buf[i/8] |= 1 << uint(7-i%8)
		}
	}
	return buf
}

func mixChecksumIntoCleanData(clean, check []bool) []bool {
	isOffset := make(map[int]bool, len(offsets160))
	for _, o := range offsets160 {
		isOffset[o] = true
	}
	mixed := make([]bool, 0, len(clean)+len(check))
	ci, di := 0, 0
	for len(mixed) < len(clean)+len(check) {
		if isOffset[len(mixed)] {
			mixed = append(mixed, check[ci])
			ci++
		} else {
			mixed = append(mixed, clean[di])
			di++
		}
	}
	return mixed
}

func separateIntoCleanDataAndChecksum(mixed []bool) (clean, check []bool) {
	isOffset := make(map[int]bool, len(offsets160))
	for _, o := range offsets160 {
		isOffset[o] = true
	}
	for i, bit := range mixed {
		if isOffset[i] {
			check = append(check, bit)
		} else {
			clean = append(clean, bit)
		}
	}
	return clean, check
}

// GetChash160 computes the 160-bit checksummed hash of data and returns it
// as a 32-character base32 string. This is the encoding used for addresses
// and asset ids.
func GetChash160(data string) string {
	hasher := ripemd160.New()
	hasher.Write([]byte(data))
	hash := hasher.Sum(nil)
	// 128 clean bits out of the 160-bit digest.
	truncated := hash[4:]
	mixed := mixChecksumIntoCleanData(bufferToBin(truncated), bufferToBin(checksum(truncated)))
	return base32Enc.EncodeToString(binToBuffer(mixed))
}

// IsValidAddress reports whether addr is a well-formed chash160 string with
// a matching checksum.
func IsValidAddress(addr string) bool {
	if len(addr) != 32 {
		return false
	}
	decoded, err := base32Enc.DecodeString(addr)
	if err != nil || len(decoded) != 20 {
		return false
	}
	clean, check := separateIntoCleanDataAndChecksum(bufferToBin(decoded))
	expected := bufferToBin(checksum(binToBuffer(clean)))
	if len(check) != len(expected) {
		return false
	}
	for i := range check {
		if check[i] != expected[i] {
			return false
		}
	}
	return true
}
