// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"autoswarm/pkg/types"
)

func loadDesign(path string) (*types.Design, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read design: %w", err)
	}

	var design types.Design
	if err := json.Unmarshal(data, &design); err != nil {
		return nil, fmt.Errorf("failed to parse design %s: %w", path, err)
	}
	return &design, nil
}

// saveDesign writes design as indented JSON to path, or to stdout when
// path is empty or "-".
func saveDesign(stdout io.Writer, path string, design *types.Design) error {
	data, err := json.MarshalIndent(design, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode design: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write design: %w", err)
	}
	return nil
}
