// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package extract

import "fmt"

// LLMError reports a failed model gateway call: transport failure, non-2xx
// response or an empty choice list. Status is zero when no HTTP status was
// available.
type LLMError struct {
	Status int
	Body   string
}

func (e *LLMError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("LLM error: %s", e.Body)
	}
	return fmt.Sprintf("LLM error %d: %s", e.Status, e.Body)
}

// ParseError reports completion content that did not decode into a record.
type ParseError struct {
	Content string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable completion: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
