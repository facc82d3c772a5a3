// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package extract

import (
	"strings"

	"github.com/Arke-Institute/arke-metadata-service/fetcher"
)

const systemPrompt = `You are an archival metadata specialist. You read the files of one archival directory and produce a single PINAX metadata record describing it, as one JSON object.

PINAX fields (all string-valued unless noted):
- id: persistent identifier; leave absent if unknown
- title: concise descriptive title
- type: one of the DCMI types listed below
- creator: person or organization that created the material (string or list of strings)
- institution: holding institution
- created: creation date as YYYY or YYYY-MM-DD
- access_url: canonical URL of the material
- language: BCP-47 tag such as "en" or "grc"
- subjects: list of topical keywords
- description: a one-paragraph summary
- source: provenance of this record
- rights: rights statement
- place: geographic coverage (string or list of strings)

DCMI types: Collection, Dataset, Event, Image, InteractiveResource, MovingImage, PhysicalObject, Service, Software, Sound, StillImage, Text.

Heuristics:
- A directory holding multiple files describes a Collection by default. Describe the whole; never reuse one item's title for the collection.
- Synthesize the title from the directory name and what the files actually contain.
- Aggregate subjects, creators and places across all files.
- Files named child_pinax_<name>.json are finished records of sub-collections; treat them as signals of what this collection contains.
- A file named "[PREVIOUS] pinax.json" is the current record of this directory; improve and extend it, do not start over.
- Emit only fields you are confident about and omit the rest.

Respond with the JSON object only, no prose around it.`

// schemaBlock closes the user prompt so the expected shape is the last
// thing the model reads.
const schemaBlock = `Respond with one JSON object of this shape (omit unknown fields):
{
  "id": "...",
  "title": "...",
  "type": "...",
  "creator": ["..."],
  "institution": "...",
  "created": "...",
  "access_url": "...",
  "language": "...",
  "subjects": ["..."],
  "description": "...",
  "source": "...",
  "rights": "...",
  "place": ["..."]
}`

func buildSystemPrompt(customPrompt string) string {
	if customPrompt == "" {
		return systemPrompt
	}
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nAdditional instructions from the submitting institution:\n")
	b.WriteString(customPrompt)
	return b.String()
}

func buildUserPrompt(bundle *fetcher.Bundle) string {
	var b strings.Builder
	b.WriteString("Directory: ")
	b.WriteString(bundle.DirectoryName)
	b.WriteString("\n\n")
	for _, file := range bundle.Files {
		b.WriteString("--- File: ")
		b.WriteString(file.Name)
		b.WriteString(" ---\n")
		b.WriteString(file.Content)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(schemaBlock)
	return b.String()
}
