// Copyright (c) 2025 The Arke Institute developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package pinax defines the PINAX metadata record, a Dublin-Core-derived
// schema emitted for entities in the Arke archive, along with the
// normalization and validation rules that keep emitted records conformant.
package pinax

import "encoding/json"

// DCMITypes is the closed DCMI Type vocabulary accepted in the record's
// "type" field. Matching is case-sensitive.
var DCMITypes = []string{
	"Collection",
	"Dataset",
	"Event",
	"Image",
	"InteractiveResource",
	"MovingImage",
	"PhysicalObject",
	"Service",
	"Software",
	"Sound",
	"StillImage",
	"Text",
}

// IsDCMIType reports whether v is one of the canonical DCMI type values.
func IsDCMIType(v string) bool {
	for _, t := range DCMITypes {
		if v == t {
			return true
		}
	}
	return false
}

// Record is one PINAX metadata record.
//
// Required fields: ID, Title, Type, Creator, Institution, Created and
// AccessURL. The rest are optional but raise validation warnings when absent.
type Record struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title,omitempty"`
	Type        string     `json:"type,omitempty"`
	Creator     StringList `json:"creator,omitempty"`
	Institution string     `json:"institution,omitempty"`
	Created     string     `json:"created,omitempty"`
	AccessURL   string     `json:"access_url,omitempty"`

	Language    string     `json:"language,omitempty"`
	Subjects    []string   `json:"subjects,omitempty"`
	Description string     `json:"description,omitempty"`
	Source      string     `json:"source,omitempty"`
	Rights      string     `json:"rights,omitempty"`
	Place       StringList `json:"place,omitempty"`
}

// MarshalIndent renders the record as pretty JSON, the form published to the
// object store as pinax.json.
func (r *Record) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// StringList accepts either a JSON string or an array of strings. Upstream
// producers and the model emit both shapes for creator and place.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*s = nil
		} else {
			*s = StringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = StringList(many)
	return nil
}

// MarshalJSON implements json.Marshaler. A single element is rendered as a
// plain string to keep published records close to their hand-written
// ancestors.
func (s StringList) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}
