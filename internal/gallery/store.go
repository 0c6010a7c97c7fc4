package gallery

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Captions maps an image's web path to its caption.
type Captions map[string]string

// ReadCaptions loads a caption file written by WriteCaptions.
// A missing file yields an empty map.
func ReadCaptions(path string) (Captions, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Captions{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read captions: %w", err)
	}

	captions := Captions{}
	if err := yaml.Unmarshal(data, &captions); err != nil {
		return nil, fmt.Errorf("failed to parse captions %q: %w", path, err)
	}
	return captions, nil
}

// MarshalCaptions renders captions as a commented YAML mapping with sorted
// keys.
func MarshalCaptions(folder, generator string, captions Captions) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Auto-generated silly captions for %s images\n", folder)
	fmt.Fprintf(&buf, "# Generated by %s\n\n", generator)

	if len(captions) == 0 {
		buf.WriteString("{}\n")
		return buf.Bytes(), nil
	}

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(captions); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCaptions replaces the file at path, creating parent directories.
func WriteCaptions(path, folder, generator string, captions Captions) error {
	data, err := MarshalCaptions(folder, generator, captions)
	if err != nil {
		return fmt.Errorf("failed to encode captions for %s: %w", folder, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %q: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("could not write file %q: %w", path, err)
	}
	return nil
}
