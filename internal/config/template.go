// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// RenderTemplate expands raw as a text/template document with sprig's
// helper functions and vars as the data context, failing on any
// reference to an undefined variable — the Go equivalent of Jinja2's
// StrictUndefined used by the python original (spec §6 "--input-vars",
// grounded on the template-rendering idiom of
// AMD-AGI-Primus-SaFE/Lens/modules/installer/pkg/installer/stages/opensearch.go).
func RenderTemplate(raw string, vars map[string]string) (string, error) {
	data := make(map[string]any, len(vars))
	for k, v := range vars {
		data[k] = v
	}

	tmpl, err := template.New("config").
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(raw)
	if err != nil {
		return "", fmt.Errorf("config: parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("config: undefined template variable (define it through --input-vars): %w", err)
	}
	return buf.String(), nil
}
