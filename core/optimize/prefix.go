package optimize

import (
	"bytes"
	"encoding/binary"
	"strings"

	"golang.org/x/sys/cpu"
)

// Wide compare capability detection
var wideCompare bool

func init() {
	// AVX2 on x86_64 and ASIMD on ARM64 both imply fast unaligned 8-byte loads
	wideCompare = cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD
}

// Features names the CPU features the prefix matcher detected
func Features() string {
	var f []string
	if cpu.X86.HasAVX2 {
		f = append(f, "avx2")
	}
	if cpu.ARM64.HasASIMD {
		f = append(f, "asimd")
	}
	if len(f) == 0 {
		return "generic"
	}
	return strings.Join(f, ",")
}

// HasPrefix reports whether b begins with the exact bytes of prefix.
// Prefixes of 16 bytes or more are compared a word at a time when the CPU
// supports it.
func HasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	if !wideCompare || len(prefix) < 16 {
		return bytes.HasPrefix(b, prefix)
	}
	return hasPrefixWords(b, prefix)
}

// hasPrefixWords requires len(b) >= len(prefix)
func hasPrefixWords(b, prefix []byte) bool {
	n := len(prefix)
	i := 0
	for ; i+8 <= n; i += 8 {
		if binary.LittleEndian.Uint64(b[i:]) != binary.LittleEndian.Uint64(prefix[i:]) {
			return false
		}
	}
	return string(b[i:n]) == string(prefix[i:])
}
