// Copyright (C) 2023 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fingerprint classifies a test's metadata mapping into the
// small closed set of match kinds the Index Client needs to build a
// search query: exact match, negative-match subtree, wildcard-match on
// the version field, and dotted-path lookup for extracting values back
// out of a hit document. Grounded on
// orion/matcher.py:get_uuid_by_metadata's field classification.
package fingerprint

import (
	"fmt"
	"strings"
)

// Kind is the closed set of ways one metadata entry participates in a
// lookup query.
type Kind int

const (
	// KindExact is a plain `must` match clause: field == value.
	KindExact Kind = iota
	// KindNegative is one entry of the reserved "not" subtree: a
	// `must_not` match clause.
	KindNegative
	// KindWildcard is the reserved "ocpMajorVersion" key, or the
	// version field when it is absent: a wildcard `filter` clause.
	KindWildcard
)

// Field is one classified metadata entry.
type Field struct {
	Kind  Kind
	Key   string
	Value string
}

// ReservedVersionField is the key whose presence overrides the
// default version-field wildcard match with an explicit major-version
// wildcard (spec §4.1).
const ReservedVersionField = "ocpMajorVersion"

// ReservedNegativeField is the key whose value is itself a mapping of
// must-not clauses (spec §3).
const ReservedNegativeField = "not"

// Classification is the result of classifying one test's metadata
// fingerprint: the must-clauses, the must-not clauses, and the
// wildcard version clause.
type Classification struct {
	Must     []Field
	MustNot  []Field
	Wildcard Field
}

// Classify splits meta into must/must-not/wildcard fields, per
// orion/matcher.py:get_uuid_by_metadata. versionField is the
// per-test configured version field (defaults applied by the caller);
// its value is only used when meta carries no ocpMajorVersion entry.
func Classify(meta map[string]any, versionField string) (Classification, error) {
	var c Classification

	if majorVersion, ok := meta[ReservedVersionField]; ok {
		c.Wildcard = Field{Kind: KindWildcard, Key: ReservedVersionField, Value: toString(majorVersion)}
	} else {
		raw, ok := meta[versionField]
		if !ok {
			return c, &MissingVersionFieldError{Field: versionField}
		}
		version := toString(raw)
		if len(version) > 4 {
			version = version[:4]
		}
		c.Wildcard = Field{Kind: KindWildcard, Key: versionField, Value: version}
	}

	for key, value := range meta {
		switch key {
		case versionField, ReservedVersionField:
			continue
		case ReservedNegativeField:
			sub, ok := value.(map[string]any)
			if !ok {
				continue
			}
			for notKey, notValue := range sub {
				c.MustNot = append(c.MustNot, Field{Kind: KindNegative, Key: notKey, Value: toString(notValue)})
			}
		default:
			c.Must = append(c.Must, Field{Kind: KindExact, Key: key, Value: toString(value)})
		}
	}
	return c, nil
}

// MissingVersionFieldError is returned when meta carries neither the
// configured version field nor the reserved ocpMajorVersion override.
type MissingVersionFieldError struct {
	Field string
}

func (e *MissingVersionFieldError) Error() string {
	return "fingerprint: metadata is missing version field " + e.Field
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// ExtractPath resolves a dotted path (e.g. "tags.sw_version") against
// a decoded document, walking nested maps one segment at a time. This
// is how version fields inside nested documents are read back out of
// a hit (spec §4.1).
func ExtractPath(doc map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")
	var cur any = doc
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// ExtractPathString is ExtractPath followed by a string coercion, the
// shape every version/uuid field lookup actually needs.
func ExtractPathString(doc map[string]any, path string) (string, bool) {
	v, ok := ExtractPath(doc, path)
	if !ok {
		return "", false
	}
	return toString(v), true
}
