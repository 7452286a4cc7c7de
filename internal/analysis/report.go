package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DescribeMarkdown renders descriptive statistics as a compact summary.
func DescribeMarkdown(name string, rows int, stats []ColumnStats) string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", rows))
	b.WriteString(fmt.Sprintf("Numeric columns: %d\n\n", len(stats)))

	b.WriteString("[BASIC STATISTICS]\n")
	b.WriteString("| column | count | mean | std | min | 25% | 50% | 75% | max |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- | --- |\n")
	for _, s := range stats {
		b.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s | %s | %s | %s |\n",
			safeName(s.Name), s.Count, num(s.Mean), num(s.Std), num(s.Min), num(s.Q25), num(s.Median), num(s.Q75), num(s.Max)))
	}
	var notes []string
	for _, s := range stats {
		if s.Outliers > 0 {
			notes = append(notes, fmt.Sprintf("%s: %d outlier(s) above |z|>%.1f (max |z|≈%.2f)", s.Name, s.Outliers, s.OutlierThreshold, s.OutlierMaxAbsZ))
		}
	}
	if len(notes) > 0 {
		b.WriteString("\n[OUTLIERS]\n")
		for _, n := range notes {
			b.WriteString("- " + n + "\n")
		}
	}
	return b.String()
}

// Markdown renders per-column missingness, worst first.
func (m *Missingness) Markdown() string {
	var b strings.Builder
	b.WriteString("[MISSINGNESS]\n")
	totals := append([]Presence(nil), m.Totals...)
	sort.SliceStable(totals, func(i, j int) bool { return totals[i].MissingFraction() > totals[j].MissingFraction() })
	for _, p := range totals {
		b.WriteString(fmt.Sprintf("- %s: present %d/%d (missing %.1f%%)\n", safeName(p.Column), p.Present, p.Total, 100*p.MissingFraction()))
	}
	return b.String()
}

// PresenceMarkdown renders a presence-by-group table (the heatmap data).
func PresenceMarkdown(title string, columns []string, groups []GroupPresence) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[PRESENCE BY %s]\n", strings.ToUpper(title)))
	b.WriteString("| " + title + " | rows")
	for _, c := range columns {
		b.WriteString(" | " + safeName(c))
	}
	b.WriteString(" |\n|" + strings.Repeat(" --- |", len(columns)+2) + "\n")
	for _, g := range groups {
		b.WriteString(fmt.Sprintf("| %s | %d", safeVal(g.Key), g.Total))
		for _, p := range g.Present {
			b.WriteString(fmt.Sprintf(" | %d", p))
		}
		b.WriteString(" |\n")
	}
	return b.String()
}

// Markdown renders the grouped aggregate as a table.
func (g *GroupTable) Markdown() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[GROUP-BY %s]\n", strings.ToUpper(string(g.Agg))))
	header := append(append([]string{}, g.Keys...), "n")
	header = append(header, g.Columns...)
	for i := range header {
		header[i] = safeName(header[i])
	}
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
	for _, grp := range g.Groups {
		cells := make([]string, 0, len(header))
		for _, k := range grp.Key {
			cells = append(cells, safeVal(k))
		}
		cells = append(cells, fmt.Sprintf("%d", grp.Size))
		for _, v := range grp.Values {
			cells = append(cells, num(v))
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	if len(g.Groups) == 0 {
		b.WriteString("(no groups)\n")
	}
	return b.String()
}

// Markdown renders the matrix and lists its strongest off-diagonal pairs.
func (m *Matrix) Markdown() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s MATRIX]\n", strings.ToUpper(string(m.Kind))))
	b.WriteString("| |")
	for _, c := range m.Columns {
		b.WriteString(" " + safeName(c) + " |")
	}
	b.WriteString("\n|" + strings.Repeat(" --- |", len(m.Columns)+1) + "\n")
	for i, c := range m.Columns {
		b.WriteString("| " + safeName(c) + " |")
		for j := range m.Columns {
			b.WriteString(" " + num(m.At(i, j)) + " |")
		}
		b.WriteString("\n")
	}
	if m.Kind != Correlation || len(m.Columns) < 2 {
		return b.String()
	}
	type pr struct {
		A, B string
		R    float64
		N    int
	}
	var pairs []pr
	n := len(m.Columns)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if v := m.At(i, j); !math.IsNaN(v) {
				pairs = append(pairs, pr{A: m.Columns[i], B: m.Columns[j], R: v, N: m.Pairs[i][j]})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if len(pairs) > 10 {
		pairs = pairs[:10]
	}
	if len(pairs) > 0 {
		b.WriteString("\n[STRONGEST PAIRS]\n")
		for _, p := range pairs {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f (n=%d)\n", p.A, p.B, p.R, p.N))
		}
	}
	return b.String()
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.4g", v)
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
