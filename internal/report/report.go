// Package report turns a weekly snapshot into the markdown and HTML reports
// written next to the data directory.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/techpulse/internal/alert"
	"github.com/TobiSchelling/techpulse/internal/bucket"
	"github.com/TobiSchelling/techpulse/internal/fileutil"
	"github.com/TobiSchelling/techpulse/internal/period"
	"github.com/TobiSchelling/techpulse/internal/snapshot"
	"github.com/TobiSchelling/techpulse/internal/ui"
)

//go:embed templates/report.html
var templateFS embed.FS

var (
	md   = goldmark.New(goldmark.WithExtensions(extension.Table))
	page = template.Must(template.ParseFS(templateFS, "templates/report.html"))
)

// sections lists the interpretation groups in report order.
var sections = []struct {
	interpretation alert.Interpretation
	title          string
}{
	{alert.Opportunity, "Opportunities"},
	{alert.Risk, "Risks"},
	{alert.Signal, "Signals"},
	{alert.Neutral, "Watch List"},
}

// Report is one rendered weekly report.
type Report struct {
	WeekStart period.Date
	Cards     []ui.AlertCard
	Dismissed int
	Markdown  string
	HTML      string
}

// Build renders the report for a snapshot. history maps bucket IDs to earlier
// profiles for the sparklines. Alerts for which hidden returns true are left
// out of the card list but still counted in the summary.
func Build(s snapshot.WeeklySnapshot, history map[string][]bucket.Profile, hidden func(alert.BucketAlert) bool, pres ui.Presentation, now time.Time) (*Report, error) {
	r := &Report{WeekStart: s.WeekStart}
	for _, a := range s.Alerts {
		if hidden != nil && hidden(a) {
			r.Dismissed++
			continue
		}
		r.Cards = append(r.Cards, ui.BuildAlertCardData(a, s.Profile(a.BucketID), history[a.BucketID], pres))
	}

	r.Markdown = Compose(s, r.Cards, r.Dismissed)
	html, err := Render(Title(s.WeekStart), r.Markdown, now)
	if err != nil {
		return nil, err
	}
	r.HTML = html
	return r, nil
}

// Title returns the report heading for a week.
func Title(week period.Date) string {
	return "Tech Pulse: week of " + period.FormatWeekDisplay(week)
}

// Compose assembles the markdown body.
func Compose(s snapshot.WeeklySnapshot, cards []ui.AlertCard, dismissed int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", Title(s.WeekStart))

	fmt.Fprintf(&b, "%d buckets scored, %d alerts fired (%d opportunities, %d risks).",
		s.TotalBucketsScored, s.TotalAlertsFired, s.OpportunitiesCount, s.RisksCount)
	if dismissed > 0 {
		fmt.Fprintf(&b, " %d dismissed alert(s) hidden.", dismissed)
	}
	b.WriteString("\n\n")

	if len(s.TopHeating) > 0 {
		b.WriteString("## Top Heating\n\n")
		for i, id := range s.TopHeating {
			name, heat := id, 0.0
			if p := s.Profile(id); p != nil {
				heat = p.HeatScore
				if p.BucketName != "" {
					name = p.BucketName
				}
			}
			fmt.Fprintf(&b, "%d. **%s** (heat %.0f)\n", i+1, name, heat)
		}
		b.WriteString("\n")
	}

	if len(cards) == 0 {
		b.WriteString("No alerts this week.\n")
		return b.String()
	}

	for _, sec := range sections {
		var group []ui.AlertCard
		for _, c := range cards {
			if c.Interpretation == sec.interpretation {
				group = append(group, c)
			}
		}
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", sec.title)
		for _, c := range group {
			writeCard(&b, c)
		}
	}
	return b.String()
}

func writeCard(b *strings.Builder, c ui.AlertCard) {
	name := c.BucketName
	if name == "" {
		name = c.BucketID
	}
	fmt.Fprintf(b, "### %s %s: %s\n\n", c.SeverityIcon, c.Title, name)
	fmt.Fprintf(b, "**%s** · %s · %s", c.Severity, c.MagnitudeLabel, c.PersistenceLabel)
	if c.Border == ui.BorderDashed {
		b.WriteString(" · _low confidence_")
	}
	b.WriteString("\n\n")

	if c.Headline != "" {
		fmt.Fprintf(b, "> %s\n\n", c.Headline)
	}
	if c.WhyNow != "" {
		fmt.Fprintf(b, "_Why now:_ %s\n\n", c.WhyNow)
	}

	if len(c.Features) > 0 {
		b.WriteString("| Signal | Value | Coverage | Quality |\n|---|---|---|---|\n")
		for _, f := range c.Features {
			value := f.Display
			if f.Badge != "" && f.Badge != f.Display {
				value += " " + f.Badge
			}
			coverage := "-"
			if f.Coverage != nil {
				coverage = fmt.Sprintf("%.0f%%", *f.Coverage*100)
			}
			fmt.Fprintf(b, "| %s | %s | %s | %s |\n", f.Label, value, coverage, f.Quality)
		}
		b.WriteString("\n")
	}

	if len(c.SupportingEntities) > 0 {
		fmt.Fprintf(b, "Entities: %s\n\n", strings.Join(c.SupportingEntities, ", "))
	}
}

// Render converts markdown to a standalone HTML page.
func Render(title, markdown string, now time.Time) (string, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}

	var out bytes.Buffer
	err := page.Execute(&out, map[string]any{
		"Title":     title,
		"Body":      template.HTML(body.String()), //nolint: gosec
		"Generated": now.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return "", fmt.Errorf("executing report template: %w", err)
	}
	return out.String(), nil
}

// Paths returns the markdown and HTML paths for a week's report under dir.
func Paths(dir string, week period.Date) (string, string) {
	base := filepath.Join(dir, "weekly_"+week.String())
	return base + ".md", base + ".html"
}

// Write stores both renderings under dir, replacing any earlier report for
// the same week.
func (r *Report) Write(dir string) (string, string, error) {
	mdPath, htmlPath := Paths(dir, r.WeekStart)
	if err := fileutil.WriteFileAtomic(mdPath, []byte(r.Markdown), 0o644); err != nil {
		return "", "", fmt.Errorf("writing markdown report: %w", err)
	}
	if err := fileutil.WriteFileAtomic(htmlPath, []byte(r.HTML), 0o644); err != nil {
		return "", "", fmt.Errorf("writing html report: %w", err)
	}
	return mdPath, htmlPath, nil
}
