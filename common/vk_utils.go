package common

import (
	"unsafe"
)

// Provides general helper functions for comparisons and conversions

// IsSubset reports whether every element of a is contained in b. This is mainly used to check for extension
// and layer support during the initialization process.
func IsSubset(a []string, b []string) bool {
	return len(Missing(a, b)) == 0
}

// Missing lists the elements of a that are not in b.
func Missing(a []string, b []string) []string {
	have := make(map[string]struct{}, len(b))
	for _, s := range b {
		have[s] = struct{}{}
	}
	var missing []string
	for _, s := range a {
		if _, ok := have[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}

// TerminatedStr ensures the given string is \x00 terminated as vulkan expects this in certain structs
func TerminatedStr(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}

// TerminatedStrs returns terminated copies and leaves strs untouched.
func TerminatedStrs(strs []string) []string {
	out := make([]string, len(strs))
	for i := range strs {
		out[i] = TerminatedStr(strs[i])
	}
	return out
}

// AsUint32Arr reinterprets SPIR-V bytes as the uint32 words shader modules are created from. Trailing bytes
// that do not form a full word are dropped.
func AsUint32Arr(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
