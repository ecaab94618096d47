// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cloud-bulldozer/orion-go/pkg/schema"
)

// LoadAcks reads and merges every ack file in paths by union of their
// "ack" lists (spec §6: "Multiple ack files may be merged by union of
// their ack lists"). Grounded on orion/config.py:load_ack.
func LoadAcks(paths []string) ([]schema.AckEntry, error) {
	var all []schema.AckEntry
	for _, path := range paths {
		entries, err := loadAckFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

func loadAckFile(path string) ([]schema.AckEntry, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Ack *[]schema.AckEntry `yaml:"ack"`
	}
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("config: parse ack file %s: %w", path, err)
	}
	if doc.Ack == nil {
		return nil, fmt.Errorf("config: ack file %s is not set up properly: missing top-level 'ack' key", path)
	}
	return *doc.Ack, nil
}
