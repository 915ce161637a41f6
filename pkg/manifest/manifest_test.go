package manifest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/sitemap2skill/models"
	"github.com/dtnitsch/sitemap2skill/pkg/storage"
)

var testInfo = models.SkillInfo{
	Name:        "example-docs",
	Description: "Docs for Example.",
	Overview:    "Reference pages scraped from example.com.",
}

func samplePages() []models.Page {
	return []models.Page{
		{
			URL:      "https://example.com/",
			Title:    "Home",
			Markdown: "# Home\n\nWelcome.\n\n## Install\n\nRun it.\n\n## Configure\n\nEdit it.",
		},
		{
			URL:      "https://example.com/docs/api",
			Title:    "API | Reference",
			Markdown: "Intro text.\n\n## `GET` /items\n\nList.",
			Language: "en",
		},
		{
			URL:      "https://example.com/blog/post",
			Title:    "Post",
			Markdown: "Just text.",
		},
	}
}

func TestBuildOrdersEntriesAsSupplied(t *testing.T) {
	bundle, err := Build(samplePages(), testInfo)
	require.NoError(t, err)

	entries := bundle.Manifest.Entries
	require.Len(t, entries, 3)
	assert.Equal(t, "https://example.com/", entries[0].URL)
	assert.Equal(t, "references/index.md", entries[0].RelativePath)
	assert.Equal(t, []string{"Install", "Configure"}, entries[0].Sections)
	assert.Equal(t, "references/docs/api.md", entries[1].RelativePath)
	assert.Equal(t, []string{"GET /items"}, entries[1].Sections)
	assert.Equal(t, "references/blog/post.md", entries[2].RelativePath)

	names := make([]string, len(bundle.Files))
	for i, f := range bundle.Files {
		names[i] = f.Name
	}
	assert.Equal(t, []string{
		"SKILL.md",
		"README.md",
		"references/index.md",
		"references/docs/api.md",
		"references/blog/post.md",
	}, names)
}

func TestRenderIndexLayout(t *testing.T) {
	bundle, err := Build(samplePages(), testInfo)
	require.NoError(t, err)
	index := bundle.Manifest.IndexMarkdown

	assert.True(t, strings.HasPrefix(index, "---\nname: example-docs\ndescription: Docs for Example.\n---\n\n# example-docs\n"))
	assert.Contains(t, index, "## Overview\n\nReference pages scraped from example.com.\n")
	assert.Contains(t, index, "## Reference File Index")
	assert.Contains(t, index, "| 1 | Home | `references/index.md` | <https://example.com/> | Install, Configure |")
	assert.Contains(t, index, `| 2 | API \| Reference |`)

	first := strings.Index(index, "references/index.md")
	second := strings.Index(index, "references/docs/api.md")
	third := strings.Index(index, "references/blog/post.md")
	assert.True(t, first < second && second < third, "entries keep supplied order")
}

func TestBuildIsIdempotent(t *testing.T) {
	a, err := Build(samplePages(), testInfo)
	require.NoError(t, err)
	b, err := Build(samplePages(), testInfo)
	require.NoError(t, err)

	assert.Equal(t, a.Manifest.IndexMarkdown, b.Manifest.IndexMarkdown)
	assert.Equal(t, a.Files, b.Files)
}

func TestRenderReference(t *testing.T) {
	pages := samplePages()

	data, err := RenderReference(pages[0])
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.HasPrefix(out, "---\ntitle: Home\nsource_url: https://example.com/\n---\n\n# Home\n\nWelcome."))
	assert.Equal(t, 1, strings.Count(out, "# Home\n"), "title heading is not duplicated")

	data, err = RenderReference(pages[1])
	require.NoError(t, err)
	out = string(data)
	assert.Contains(t, out, "language: en\n")
	assert.Contains(t, out, "---\n\n# API | Reference\n\nIntro text.")
}

func TestBuildEmpty(t *testing.T) {
	_, err := Build(nil, testInfo)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrPackaging))
	assert.True(t, errors.Is(err, models.ErrEmptyResult))
}

func TestAssembleEmptyNeverCreatesArtifact(t *testing.T) {
	sink := &storage.MemorySink{}
	_, err := Assemble(nil, testInfo, sink)
	require.Error(t, err)

	var pkgErr *models.PackagingError
	require.True(t, errors.As(err, &pkgErr))
	assert.ErrorIs(t, pkgErr.Reason, models.ErrEmptyResult)
	assert.Nil(t, sink.Bytes())
}

func TestAssembleWritesReadableArchive(t *testing.T) {
	sink := &storage.MemorySink{}
	manifest, err := Assemble(samplePages(), testInfo, sink)
	require.NoError(t, err)
	require.Len(t, manifest.Entries, 3)

	info, err := storage.ReadBundleBytes(sink.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "example-docs", info.Name)
	assert.True(t, info.HasReadme)
	assert.Len(t, info.References, 3)
	assert.Empty(t, info.Problems)

	again := &storage.MemorySink{}
	_, err = Assemble(samplePages(), testInfo, again)
	require.NoError(t, err)
	assert.Equal(t, sink.Bytes(), again.Bytes(), "archive bytes are reproducible")
}

func TestSections(t *testing.T) {
	md := "# Title\n\n## One\n\ntext\n\n### Nested\n\n## *Two* [link](https://x.test)\n\n## Three\n## Four\n## Five\n## Six"
	assert.Equal(t, []string{"One", "Two link", "Three", "Four", "Five"}, Sections(md, 5))
	assert.Empty(t, Sections("no headings", 5))
}
