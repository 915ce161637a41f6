package manifest

import (
	"fmt"
	"time"

	"github.com/dtnitsch/sitemap2skill/models"
	"github.com/dtnitsch/sitemap2skill/pkg/storage"
)

// archiveModTime is stamped on every archive entry so that the same pages
// always produce the same archive bytes.
var archiveModTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Bundle is the fully rendered content of a skill archive.
type Bundle struct {
	Manifest models.BundleManifest
	Files    []storage.Entry
}

// Build lays out pages, in the order given, as a bundle. It is a pure
// function of its input.
func Build(pages []models.Page, info models.SkillInfo) (*Bundle, error) {
	if len(pages) == 0 {
		return nil, &models.PackagingError{Reason: models.ErrEmptyResult}
	}

	urls := make([]string, len(pages))
	for i, p := range pages {
		urls[i] = p.URL
	}
	paths := AssignPaths(urls)

	entries := make([]models.ManifestEntry, len(pages))
	refs := make([]storage.Entry, len(pages))
	for i, page := range pages {
		data, err := RenderReference(page)
		if err != nil {
			return nil, &models.PackagingError{Reason: fmt.Errorf("render %s: %w", page.URL, err)}
		}
		refs[i] = storage.Entry{Name: paths[i], Data: data}
		entries[i] = models.ManifestEntry{
			Title:        page.Title,
			RelativePath: paths[i],
			URL:          page.URL,
			Sections:     Sections(page.Markdown, maxIndexSections),
		}
	}

	index, err := RenderIndex(info, entries)
	if err != nil {
		return nil, &models.PackagingError{Reason: err}
	}

	files := make([]storage.Entry, 0, len(refs)+2)
	files = append(files,
		storage.Entry{Name: SkillFile, Data: []byte(index)},
		storage.Entry{Name: ReadmeFile, Data: []byte(Readme)},
	)
	files = append(files, refs...)

	return &Bundle{
		Manifest: models.BundleManifest{Entries: entries, IndexMarkdown: index},
		Files:    files,
	}, nil
}

// Assemble builds the bundle and packages it into sink. With no pages it
// fails with a *models.PackagingError wrapping models.ErrEmptyResult and sink
// is never touched.
func Assemble(pages []models.Page, info models.SkillInfo, sink storage.Sink) (*models.BundleManifest, error) {
	bundle, err := Build(pages, info)
	if err != nil {
		return nil, err
	}

	w, err := sink.Create()
	if err != nil {
		return nil, &models.PackagingError{Reason: err}
	}
	if err := storage.WriteZip(w, bundle.Files, archiveModTime); err != nil {
		storage.Abort(w)
		return nil, &models.PackagingError{Reason: err}
	}
	if err := w.Close(); err != nil {
		return nil, &models.PackagingError{Reason: err}
	}

	return &bundle.Manifest, nil
}
