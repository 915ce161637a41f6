// Package manifest lays out a skill bundle: reference file paths, the
// SKILL.md index, the README, and the packaged archive.
package manifest

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dtnitsch/sitemap2skill/models"
)

const (
	SkillFile  = "SKILL.md"
	ReadmeFile = "README.md"

	// maxIndexSections caps the H2 outline shown per page in SKILL.md.
	maxIndexSections = 5
)

// Readme is the static usage note shipped in every bundle.
const Readme = `# Generated AI Skill

This skill was generated from a website sitemap by sitemap2skill.

## Contents

- ` + "`SKILL.md`" + ` lists every reference page with its source URL.
- ` + "`references/`" + ` holds one Markdown file per page.

## Usage

Install this skill into your AI agent or editor, or unzip it and point the
agent at ` + "`SKILL.md`" + `.
`

// SkillFrontMatter is the YAML header of SKILL.md.
type SkillFrontMatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ReferenceFrontMatter is the YAML header of each reference file.
type ReferenceFrontMatter struct {
	Title       string `yaml:"title"`
	SourceURL   string `yaml:"source_url"`
	Description string `yaml:"description,omitempty"`
	Language    string `yaml:"language,omitempty"`
}

func writeFrontMatter(b *bytes.Buffer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal front matter: %w", err)
	}
	b.WriteString("---\n")
	b.Write(data)
	b.WriteString("---\n\n")
	return nil
}

// RenderIndex builds the SKILL.md content for entries, in the given order.
func RenderIndex(info models.SkillInfo, entries []models.ManifestEntry) (string, error) {
	var b bytes.Buffer
	if err := writeFrontMatter(&b, SkillFrontMatter{Name: info.Name, Description: info.Description}); err != nil {
		return "", err
	}

	fmt.Fprintf(&b, "# %s\n\n", info.Name)
	fmt.Fprintf(&b, "## Overview\n\n%s\n\n", strings.TrimSpace(info.Overview))
	fmt.Fprintf(&b, "## Reference File Index\n\n")
	fmt.Fprintf(&b, "%d reference files.\n\n", len(entries))
	b.WriteString("| # | Title | File | Source | Sections |\n")
	b.WriteString("|---|---|---|---|---|\n")

	for i, e := range entries {
		fmt.Fprintf(&b, "| %d | %s | `%s` | <%s> | %s |\n",
			i+1,
			tableCell(e.Title),
			e.RelativePath,
			e.URL,
			tableCell(strings.Join(e.Sections, ", ")),
		)
	}

	return b.String(), nil
}

// RenderReference builds one reference file: front matter, a level-one title,
// then the page Markdown. The title heading is not repeated when the Markdown
// already opens with it.
func RenderReference(page models.Page) ([]byte, error) {
	var b bytes.Buffer
	fm := ReferenceFrontMatter{
		Title:       page.Title,
		SourceURL:   page.URL,
		Description: page.Description,
		Language:    page.Language,
	}
	if err := writeFrontMatter(&b, fm); err != nil {
		return nil, err
	}

	body := strings.TrimSpace(page.Markdown)
	heading := "# " + page.Title
	if firstLine(body) != heading {
		b.WriteString(heading)
		b.WriteString("\n\n")
	}
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.Bytes(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

// tableCell makes s safe inside a Markdown table cell.
func tableCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
