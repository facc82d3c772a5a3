// Copyright (c) 2025 The Arke Institute developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pinax

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ulidPattern = regexp.MustCompile(`(?i)^[0-9A-HJKMNP-TV-Z]{26}$`)
	uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	langPattern = regexp.MustCompile(`^[a-z]{2,3}(-[A-Z]{2})?$`)
)

// Validation is the outcome of checking one record against the PINAX schema.
type Validation struct {
	Valid            bool              `json:"valid"`
	MissingRequired  []string          `json:"missing_required"`
	Warnings         []string          `json:"warnings"`
	FieldValidations map[string]string `json:"field_validations"`
}

const (
	okPrefix   = "✓ "
	warnPrefix = "⚠ "
)

// Validate checks a possibly partial record against the PINAX schema. It is a
// pure function: required fields must be present and non-empty, present
// fields with format rules are checked, and absent recommended fields produce
// warnings. The record is valid when nothing required is missing and no
// present field fails its format rule.
func Validate(r *Record) *Validation {
	v := &Validation{
		MissingRequired:  []string{},
		Warnings:         []string{},
		FieldValidations: map[string]string{},
	}

	required := []struct {
		name  string
		empty bool
	}{
		{"id", r.ID == ""},
		{"title", r.Title == ""},
		{"type", r.Type == ""},
		{"creator", len(r.Creator) == 0},
		{"institution", r.Institution == ""},
		{"created", r.Created == ""},
		{"access_url", r.AccessURL == ""},
	}
	for _, f := range required {
		if f.empty {
			v.MissingRequired = append(v.MissingRequired, f.name)
		}
	}

	if r.ID != "" {
		switch {
		case ulidPattern.MatchString(r.ID):
			v.FieldValidations["id"] = okPrefix + "valid identifier (ULID)"
		case uuidPattern.MatchString(r.ID):
			v.FieldValidations["id"] = okPrefix + "valid identifier (UUID)"
		default:
			v.FieldValidations["id"] = warnPrefix + "not a ULID or UUID"
		}
	}

	if r.Type != "" {
		if IsDCMIType(r.Type) {
			v.FieldValidations["type"] = okPrefix + "DCMI type"
		} else {
			v.FieldValidations["type"] = warnPrefix + fmt.Sprintf("%q is not a DCMI type", r.Type)
		}
	}

	if r.Created != "" {
		v.FieldValidations["created"] = validateCreated(r.Created)
	}

	if r.Language != "" {
		if langPattern.MatchString(r.Language) {
			v.FieldValidations["language"] = okPrefix + "BCP 47 tag"
		} else {
			v.FieldValidations["language"] = warnPrefix + "not a BCP 47 tag (expected e.g. en or en-US)"
		}
	}

	if r.AccessURL != "" {
		if u, err := url.Parse(r.AccessURL); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			v.FieldValidations["access_url"] = okPrefix + "http(s) URL"
		} else {
			v.FieldValidations["access_url"] = warnPrefix + "not an http(s) URL"
		}
	}

	if r.Description == "" {
		v.Warnings = append(v.Warnings, "missing recommended field: description")
	}
	if len(r.Subjects) == 0 {
		v.Warnings = append(v.Warnings, "missing recommended field: subjects")
	}
	if r.Language == "" {
		v.Warnings = append(v.Warnings, "missing recommended field: language")
	}
	if r.Source == "" {
		v.Warnings = append(v.Warnings, "missing recommended field: source")
	}

	v.Valid = len(v.MissingRequired) == 0
	for _, msg := range v.FieldValidations {
		if strings.HasPrefix(msg, warnPrefix) {
			v.Valid = false
		}
	}
	return v
}

func validateCreated(created string) string {
	if yearOnlyPattern.MatchString(created) {
		year, _ := strconv.Atoi(created)
		if year < 1000 || year > 9999 {
			return warnPrefix + "year out of range"
		}
		return okPrefix + "well-formed date"
	}
	if fullDatePattern.MatchString(created) {
		month, _ := strconv.Atoi(created[5:7])
		day, _ := strconv.Atoi(created[8:10])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return warnPrefix + "month or day out of range"
		}
		if _, err := time.Parse("2006-01-02", created); err != nil {
			return warnPrefix + "not a real calendar date"
		}
		return okPrefix + "well-formed date"
	}
	return warnPrefix + "expected YYYY or YYYY-MM-DD"
}
