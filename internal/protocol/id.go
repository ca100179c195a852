package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// NewID returns an opaque token unique for the lifetime of the process,
// formatted as four dash-joined 64-bit hex quantities per spec.md §4.3's
// reference format. It is used for both request ids and callback tokens.
func NewID() string {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("protocol: reading random id bytes: %v", err))
	}
	return fmt.Sprintf("%016x-%016x-%016x-%016x",
		binary.BigEndian.Uint64(b[0:8]),
		binary.BigEndian.Uint64(b[8:16]),
		binary.BigEndian.Uint64(b[16:24]),
		binary.BigEndian.Uint64(b[24:32]),
	)
}
