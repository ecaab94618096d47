// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*
var schemaFiles embed.FS

func loadSchemaFile(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(u.Path)
}

func init() {
	jsonschema.Loaders["embedFS"] = loadSchemaFile
}

// ValidateConfig checks a YAML-decoded configuration document (a
// generic map[string]any, as produced by yaml.v3 before it is decoded
// into a typed Document) against the test-config JSON Schema, so that
// a test without a `name` or a misspelled `agg_type` fails fast with
// a precise error instead of silently producing a zero-value Test
// (spec §7: configuration errors fail fast, exit 1). Grounded on
// cc-backend/pkg/schema/validate.go's embedFS + jsonschema/v5 idiom.
func ValidateConfig(doc any) error {
	s, err := jsonschema.Compile("embedFS://schemas/config.schema.json")
	if err != nil {
		return fmt.Errorf("schema: compile config schema: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("schema: marshal config document: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("schema: unmarshal config document: %w", err)
	}

	if err := s.Validate(v); err != nil {
		return fmt.Errorf("config schema validation: %w", err)
	}
	return nil
}
