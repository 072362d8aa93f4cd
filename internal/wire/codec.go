package wire

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Serialize encodes content into its portable byte representation. Wire
// exchange is always local and need not survive a binary rebuild, so a
// gob encoding (the Go-idiomatic stand-in for the original fabric's text
// archive format) is sufficient.
func Serialize(content any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(content); err != nil {
		return nil, fmt.Errorf("wire: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize decodes bytes produced by Serialize into out, which must be
// a pointer.
func Deserialize(data []byte, out any) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("wire: deserialize: %w", err)
	}
	return nil
}
