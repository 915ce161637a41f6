package storage

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/klauspost/compress/zip"
)

// Entry is one file to place in an archive.
type Entry struct {
	Name string
	Data []byte
}

// WriteZip writes entries, in order, as a deflated zip archive. Every entry
// carries modTime so identical input yields identical archive bytes.
func WriteZip(w io.Writer, entries []Entry, modTime time.Time) error {
	zw := zip.NewWriter(w)

	for _, e := range entries {
		hdr := &zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: modTime,
		}
		hdr.SetMode(FileMode)

		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("add %s to archive: %w", e.Name, err)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return fmt.Errorf("write %s to archive: %w", e.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

// BundleReference describes one reference file found in a bundle.
type BundleReference struct {
	Path      string `yaml:"path"`
	Title     string `yaml:"title"`
	SourceURL string `yaml:"source_url"`
	Language  string `yaml:"language,omitempty"`
	Size      int64  `yaml:"size"`
}

// BundleInfo summarises a packaged bundle.
type BundleInfo struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	HasReadme   bool              `yaml:"has_readme"`
	References  []BundleReference `yaml:"references"`
	// Problems lists structural issues, e.g. a reference file without a
	// source_url or a reference missing from SKILL.md.
	Problems []string `yaml:"problems,omitempty"`
}

type skillHeader struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type referenceHeader struct {
	Title     string `yaml:"title"`
	SourceURL string `yaml:"source_url"`
	Language  string `yaml:"language"`
}

// ReadBundle opens the archive at zipPath and checks its layout.
func ReadBundle(zipPath string) (*BundleInfo, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer zr.Close()

	return inspect(&zr.Reader)
}

// ReadBundleBytes is ReadBundle for an in-memory archive.
func ReadBundleBytes(data []byte) (*BundleInfo, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	return inspect(zr)
}

func inspect(zr *zip.Reader) (*BundleInfo, error) {
	info := &BundleInfo{}
	var skillBody []byte
	foundSkill := false

	for _, f := range zr.File {
		switch {
		case f.Name == "SKILL.md":
			data, err := readEntry(f)
			if err != nil {
				return nil, err
			}
			var hdr skillHeader
			rest, err := frontmatter.Parse(bytes.NewReader(data), &hdr)
			if err != nil {
				return nil, fmt.Errorf("parse SKILL.md front matter: %w", err)
			}
			info.Name = hdr.Name
			info.Description = hdr.Description
			skillBody = rest
			foundSkill = true

		case f.Name == "README.md":
			info.HasReadme = true

		case strings.HasPrefix(f.Name, "references/") && path.Ext(f.Name) == ".md":
			data, err := readEntry(f)
			if err != nil {
				return nil, err
			}
			var hdr referenceHeader
			if _, err := frontmatter.Parse(bytes.NewReader(data), &hdr); err != nil {
				info.Problems = append(info.Problems, fmt.Sprintf("%s: unreadable front matter: %v", f.Name, err))
			}
			if hdr.SourceURL == "" {
				info.Problems = append(info.Problems, fmt.Sprintf("%s: missing source_url", f.Name))
			}
			info.References = append(info.References, BundleReference{
				Path:      f.Name,
				Title:     hdr.Title,
				SourceURL: hdr.SourceURL,
				Language:  hdr.Language,
				Size:      int64(f.UncompressedSize64),
			})
		}
	}

	if !foundSkill {
		return nil, fmt.Errorf("bundle has no SKILL.md")
	}
	if !info.HasReadme {
		info.Problems = append(info.Problems, "missing README.md")
	}
	for _, ref := range info.References {
		if !bytes.Contains(skillBody, []byte("`"+ref.Path+"`")) {
			info.Problems = append(info.Problems, fmt.Sprintf("%s: not listed in SKILL.md", ref.Path))
		}
	}

	sort.Strings(info.Problems)
	return info, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}
