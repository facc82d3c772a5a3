// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package fetcher assembles the extraction context for a PI: the entity's
// text components, reference sidecars, the previous PINAX record and the
// children's records, fetched concurrently and trimmed to the model's
// context budget.
package fetcher

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/Arke-Institute/arke-metadata-service/arkestore"
	"github.com/Arke-Institute/arke-metadata-service/co"
	"github.com/Arke-Institute/arke-metadata-service/log"
	"github.com/Arke-Institute/arke-metadata-service/pinax"
	"github.com/Arke-Institute/arke-metadata-service/tokentax"
)

var logger = log.WithContext("pkg", "fetcher")

// PreviousPinaxName labels the prior record inside the bundle so the model
// treats it as revision input rather than source material.
const PreviousPinaxName = "[PREVIOUS] pinax.json"

const (
	pinaxComponent = "pinax.json"
	refSuffix      = ".ref.json"
)

// DefaultMaxFileBytes caps a single fetched component. Archival directories
// occasionally hold multi-hundred-megabyte OCR dumps next to their finding
// aids; anything past this limit would be truncated away regardless.
const DefaultMaxFileBytes = 4 << 20

// textExtensions are the component suffixes offered to the model verbatim.
var textExtensions = map[string]struct{}{
	".txt": {}, ".md": {}, ".json": {}, ".xml": {}, ".html": {}, ".htm": {},
	".csv": {}, ".tsv": {}, ".yaml": {}, ".yml": {}, ".toml": {}, ".ini": {},
	".cfg": {}, ".conf": {}, ".log": {}, ".rst": {}, ".tex": {}, ".rtf": {},
	".asc": {}, ".nfo": {},
}

// File is one named piece of context.
type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Bundle is the assembled context for one extraction.
type Bundle struct {
	DirectoryName string
	Files         []File
	ExistingPinax *pinax.Record
}

// Fetcher builds context bundles from the object store.
type Fetcher struct {
	store    *arkestore.Client
	target   float64
	maxBytes uint64
}

// New creates a Fetcher drawing from the given store. A bundle's token
// budget is maxModelTokens scaled by contentProportion; the rest of the
// window is left to prompts and the completion. maxFileBytes caps a single
// component, zero selects DefaultMaxFileBytes.
func New(store *arkestore.Client, maxModelTokens int, contentProportion float64, maxFileBytes uint64) *Fetcher {
	if maxFileBytes == 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	return &Fetcher{
		store:    store,
		target:   float64(maxModelTokens) * contentProportion,
		maxBytes: maxFileBytes,
	}
}

// DirectoryName derives the display name of an entity: its label when set,
// else the last 8 characters of the PI.
func DirectoryName(entity *arkestore.Entity) string {
	if entity.Label != "" {
		return entity.Label
	}
	return tailID(entity.PI)
}

// Fetch retrieves the entity snapshot for pi and assembles its bundle.
// Individual file fetches are best-effort: a failed one is logged and
// dropped. Only the snapshot read itself is fatal.
func (f *Fetcher) Fetch(ctx context.Context, pi string) (*Bundle, error) {
	entity, err := f.store.GetEntity(ctx, pi)
	if err != nil {
		return nil, errors.WithMessage(err, "fetch entity snapshot")
	}

	tasks := f.planTasks(entity)

	type result struct {
		name    string
		content string
		err     error
	}
	results := make([]result, len(tasks))

	var goes co.Goes
	for i, run := range tasks {
		goes.Go(func() {
			name, content, err := run(ctx)
			results[i] = result{name, content, err}
		})
	}
	goes.Wait()

	bundle := &Bundle{DirectoryName: DirectoryName(entity)}
	for _, res := range results {
		if res.err != nil {
			logger.Warn("skipping context file", "pi", pi, "file", res.name, "err", res.err)
			continue
		}
		if res.name == PreviousPinaxName {
			var prev pinax.Record
			if err := json.Unmarshal([]byte(res.content), &prev); err != nil {
				logger.Warn("previous record is not valid JSON", "pi", pi, "err", err)
			} else {
				bundle.ExistingPinax = &prev
			}
		}
		bundle.Files = append(bundle.Files, File{Name: res.name, Content: res.content})
	}

	f.truncate(bundle)
	return bundle, nil
}

type fetchTask func(context.Context) (name, content string, err error)

// planTasks lays out the fetches in bundle order: previous record, text
// components, reference sidecars, child records. Component names are
// sorted so the bundle is deterministic.
func (f *Fetcher) planTasks(entity *arkestore.Entity) []fetchTask {
	names := make([]string, 0, len(entity.Components))
	for name := range entity.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	var tasks []fetchTask
	if cid, ok := entity.Components[pinaxComponent]; ok {
		tasks = append(tasks, f.componentTask(PreviousPinaxName, cid))
	}
	for _, name := range names {
		if isText(name) {
			tasks = append(tasks, f.componentTask(name, entity.Components[name]))
		}
	}
	for _, name := range names {
		if strings.HasSuffix(name, refSuffix) {
			tasks = append(tasks, f.componentTask(name, entity.Components[name]))
		}
	}
	for _, childPI := range entity.ChildrenPI {
		tasks = append(tasks, f.childTask(childPI))
	}
	return tasks
}

func (f *Fetcher) componentTask(name, cid string) fetchTask {
	return func(ctx context.Context) (string, string, error) {
		content, err := f.download(ctx, cid)
		return name, content, err
	}
}

// download fetches a blob and enforces the per-component size cap.
func (f *Fetcher) download(ctx context.Context, cid string) (string, error) {
	content, err := f.store.Download(ctx, cid)
	if err != nil {
		return "", err
	}
	if uint64(len(content)) > f.maxBytes {
		return "", errors.Errorf("component is %v, limit is %v",
			humanize.IBytes(uint64(len(content))), humanize.IBytes(f.maxBytes))
	}
	return string(content), nil
}

// childTask fetches a child's PINAX record as a sub-collection signal.
// Children are processed before their parent by the orchestrator's
// bottom-up traversal, so the record is expected to exist.
func (f *Fetcher) childTask(childPI string) fetchTask {
	return func(ctx context.Context) (string, string, error) {
		child, err := f.store.GetEntity(ctx, childPI)
		if err != nil {
			return "child_pinax_" + tailID(childPI) + ".json", "", err
		}
		name := "child_pinax_" + DirectoryName(child) + ".json"
		cid, ok := child.Components[pinaxComponent]
		if !ok {
			return name, "", errors.New("child has no pinax.json component")
		}
		content, err := f.download(ctx, cid)
		return name, content, err
	}
}

func (f *Fetcher) truncate(bundle *Bundle) {
	if len(bundle.Files) == 0 {
		return
	}
	items := make([]tokentax.Item, len(bundle.Files))
	for i, file := range bundle.Files {
		items[i] = tokentax.NewItem(file.Name, file.Content)
	}
	allocs, stats := tokentax.Allocate(items, f.target)
	if stats.Mode != tokentax.ModeNoTruncation {
		logger.Debug("truncating context",
			"dir", bundle.DirectoryName,
			"mode", stats.Mode,
			"before", stats.TotalBefore,
			"after", stats.TotalAfter,
			"target", stats.Target)
	}
	for i, it := range tokentax.Apply(items, allocs) {
		bundle.Files[i].Content = it.Content
	}
}

// isText reports whether a component name should be fed to the model as
// text. Reserved names are excluded even when their extension matches:
// the record itself and the sidecars are fetched through dedicated paths,
// and description.md is orchestrator output rather than source material.
func isText(name string) bool {
	switch name {
	case pinaxComponent, "cheimarros.json", "description.md":
		return false
	}
	if strings.HasSuffix(name, refSuffix) {
		return false
	}
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return false
	}
	_, ok := textExtensions[strings.ToLower(name[idx:])]
	return ok
}

func tailID(pi string) string {
	if len(pi) <= 8 {
		return pi
	}
	return pi[len(pi)-8:]
}
