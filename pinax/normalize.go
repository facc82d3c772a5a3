// Copyright (c) 2025 The Arke Institute developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pinax

import (
	"regexp"
	"strings"
)

// typeAliases maps common free-form type names, lowercased, to canonical DCMI values.
var typeAliases = map[string]string{
	"photo":      "StillImage",
	"photograph": "StillImage",
	"picture":    "StillImage",
	"img":        "Image",
	"images":     "Image",
	"video":      "MovingImage",
	"movie":      "MovingImage",
	"film":       "MovingImage",
	"audio":      "Sound",
	"recording":  "Sound",
	"document":   "Text",
	"book":       "Text",
	"article":    "Text",
	"manuscript": "Text",
	"object":     "PhysicalObject",
	"artifact":   "PhysicalObject",
}

var (
	yearOnlyPattern = regexp.MustCompile(`^\d{4}$`)
	fullDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	embeddedYear    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// NormalizeType coerces a free-form type value to the canonical DCMI
// vocabulary. Exact matches pass through, then case-insensitive matches, then
// a set of common aliases. Unknown values are returned unchanged so the
// validator can flag them. NormalizeType is idempotent.
func NormalizeType(v string) string {
	if v == "" {
		return v
	}
	if IsDCMIType(v) {
		return v
	}
	for _, t := range DCMITypes {
		if strings.EqualFold(v, t) {
			return t
		}
	}
	if canonical, ok := typeAliases[strings.ToLower(v)]; ok {
		return canonical
	}
	return v
}

// NormalizeDate coerces a free-form date to YYYY or YYYY-MM-DD. Values
// already in either form pass through. Otherwise the first plausible 4-digit
// year embedded in the value is used. Values with no recognizable year are
// returned unchanged so the validator can flag them. NormalizeDate is
// idempotent.
func NormalizeDate(v string) string {
	if v == "" {
		return v
	}
	if yearOnlyPattern.MatchString(v) || fullDatePattern.MatchString(v) {
		return v
	}
	if year := embeddedYear.FindString(v); year != "" {
		return year
	}
	return v
}
