package snapshot

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chazu/lispgc/vm"
)

// MarshalYAML renders snapshots as a YAML sequence for reading by eye.
func MarshalYAML(snaps []*vm.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(snaps); err != nil {
		return nil, fmt.Errorf("yaml encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("yaml encoder close: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalYAML parses output of MarshalYAML. Unknown fields are errors.
func UnmarshalYAML(data []byte) ([]*vm.Snapshot, error) {
	var snaps []*vm.Snapshot
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&snaps); err != nil {
		return nil, fmt.Errorf("snapshot: yaml unmarshal: %w", err)
	}
	return snaps, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
