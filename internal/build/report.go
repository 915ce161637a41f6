package build

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/dtnitsch/sitemap2skill/internal/common"
	"github.com/dtnitsch/sitemap2skill/models"
	"github.com/dtnitsch/sitemap2skill/pkg/storage"
)

// Artifact describes the written bundle.
type Artifact struct {
	Path      string `yaml:"path"`
	SizeBytes int64  `yaml:"size_bytes"`
	SHA256    string `yaml:"sha256"`
}

// Summary is the content of <artifact>.report.yaml.
type Summary struct {
	Report     models.RunReport `yaml:",inline"`
	Artifact   *Artifact        `yaml:"artifact,omitempty"`
	Error      string           `yaml:"error,omitempty"`
	ReportPath string           `yaml:"-"`
}

// ReportPath returns the report location for an artifact path:
// "out/docs.zip" -> "out/docs.report.yaml".
func ReportPath(artifactPath string) string {
	return strings.TrimSuffix(artifactPath, filepath.Ext(artifactPath)) + ".report.yaml"
}

// WriteReport saves the summary as YAML.
func WriteReport(path string, summary Summary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	s := &storage.Storage{}
	return s.SaveFile(path, data)
}

func describeArtifact(path string) (*Artifact, error) {
	s := &storage.Storage{}
	stats, err := s.GetFileStats(path)
	if err != nil {
		return nil, err
	}
	data, err := s.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Artifact{Path: path, SizeBytes: stats.SizeBytes, SHA256: common.ContentHash(data)}, nil
}

// PrintSummary renders the run outcome for humans.
func PrintSummary(w io.Writer, summary Summary) {
	report := summary.Report

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Build " + report.RunID)
	t.AppendRows([]table.Row{
		{"Sitemap", report.SitemapURL},
		{"Discovered", report.TotalDiscovered},
		{"Succeeded", report.Succeeded},
		{"Failed", len(report.Failed)},
		{"Duration", report.Duration.String()},
	})
	if report.Cancelled {
		t.AppendRow(table.Row{"Cancelled", fmt.Sprintf("yes (%d URLs not fetched)", report.CountKind(models.KindCancelled))})
	}
	if summary.Artifact != nil {
		t.AppendRow(table.Row{"Artifact", fmt.Sprintf("%s (%s)", summary.Artifact.Path, humanize.Bytes(uint64(summary.Artifact.SizeBytes)))})
	}
	if summary.ReportPath != "" {
		t.AppendRow(table.Row{"Report", summary.ReportPath})
	}
	if summary.Error != "" {
		t.AppendRow(table.Row{"Error", summary.Error})
	}
	t.Render()

	failed := failuresExcept(report.Failed, models.KindCancelled)
	if len(failed) == 0 {
		return
	}

	ft := table.NewWriter()
	ft.SetOutputMirror(w)
	ft.SetStyle(table.StyleLight)
	ft.AppendHeader(table.Row{"#", "URL", "Reason", "Attempts"})
	for i, f := range failed {
		ft.AppendRow(table.Row{i + 1, f.URL, f.Reason, f.Attempts})
	}
	ft.Render()
}

func failuresExcept(failed []models.FailedURL, kind models.ErrorKind) []models.FailedURL {
	var out []models.FailedURL
	for _, f := range failed {
		if f.Kind != kind {
			out = append(out, f)
		}
	}
	return out
}
