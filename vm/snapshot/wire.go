// Package snapshot encodes heap snapshots as CBOR, or YAML for reading by
// eye, for offline inspection.
package snapshot

import (
	"fmt"
	"os"

	"github.com/chazu/lispgc/vm"
	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical encoding so identical heaps encode to
// identical bytes. Timestamps keep nanoseconds.
var cborEncMode cbor.EncMode

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes one snapshot.
func Marshal(s *vm.Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// Unmarshal deserializes one snapshot.
func Unmarshal(data []byte) (*vm.Snapshot, error) {
	var s vm.Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	return &s, nil
}

// MarshalAll serializes a sequence of snapshots as one CBOR array.
func MarshalAll(snaps []*vm.Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(snaps)
}

// UnmarshalAll deserializes a CBOR array of snapshots.
func UnmarshalAll(data []byte) ([]*vm.Snapshot, error) {
	var snaps []*vm.Snapshot
	if err := cbor.Unmarshal(data, &snaps); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal all: %w", err)
	}
	return snaps, nil
}

// WriteFile writes snaps to path, as YAML when the path ends in .yaml or
// .yml and as CBOR otherwise.
func WriteFile(path string, snaps []*vm.Snapshot) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = MarshalYAML(snaps)
	} else {
		data, err = MarshalAll(snaps)
	}
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return nil
}

// ReadFile reads snapshots written by WriteFile, choosing the format from
// the extension the same way.
func ReadFile(path string) ([]*vm.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	if isYAML(path) {
		return UnmarshalYAML(data)
	}
	return UnmarshalAll(data)
}
