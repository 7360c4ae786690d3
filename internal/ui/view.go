package ui

import (
	"fmt"
	"strings"

	"webmcut/internal/progress"
	"webmcut/internal/util/format"
)

func (m Model) viewHeader() string {
	kind := "encode"
	if m.test {
		kind = "test encode"
	}
	title := m.styles.Title.Render("webmcut")
	sub := m.styles.Subtitle.Render(fmt.Sprintf("%s • %s • %s from %s • q: cancel",
		kind, m.opts.Mode, format.Timestamp(m.opts.Duration), format.Timestamp(m.opts.Start)))
	return title + "\n" + sub
}

func (m Model) stageStyle() func(...string) string {
	switch m.job.stage {
	case progress.StageProbe:
		return m.styles.StageProbe.Render
	case progress.StagePass1, progress.StagePass2:
		return m.styles.StagePass.Render
	case progress.StageEncoding, progress.StageTest:
		return m.styles.StageEnc.Render
	case progress.StagePreview, progress.StageConcat:
		return m.styles.StageJoin.Render
	case progress.StageCompleted:
		return m.styles.Success.Render
	case progress.StageError, progress.StageCanceled:
		return m.styles.Error.Render
	}
	return m.styles.JobInfo.Render
}

func (m Model) viewJob() string {
	js := m.job
	line1 := fmt.Sprintf("%s  %s", m.styles.JobTitle.Render(truncate(js.title, 48)), m.stageStyle()(string(js.stage)))

	var bar string
	switch {
	case js.percent >= 0 && js.percent <= 100:
		bar = fmt.Sprintf("%s %6s", js.bar.ViewAs(js.percent/100.0), format.Percent(js.percent))
	case js.done && js.err == nil:
		bar = m.styles.Success.Render("✓ done")
	case js.err != nil:
		bar = m.styles.Error.Render("✗ " + string(js.stage))
	default:
		bar = m.styles.Spinner.Render(js.spinner.View()) + " " + m.styles.Faint.Render("working")
	}

	lines := []string{line1, bar, m.styles.JobInfo.Render(js.status)}
	if u := viewUsage(js); u != "" {
		lines = append(lines, m.styles.Faint.Render(u))
	}
	for _, l := range js.logs {
		lines = append(lines, m.styles.Log.Render(truncate(l, m.logWidth())))
	}
	return m.styles.Box.Render(strings.Join(lines, "\n"))
}

func viewUsage(js *jobState) string {
	var parts []string
	if js.cpu != nil {
		parts = append(parts, fmt.Sprintf("cpu %.0f%%", *js.cpu))
	}
	if js.rss != nil {
		parts = append(parts, "rss "+format.HumanizeBytes(int64(*js.rss)))
	}
	return strings.Join(parts, " • ")
}

func (m Model) logWidth() int {
	if m.width > 8 {
		return m.width - 6
	}
	return 100
}

func (m Model) viewSummary() string {
	var b strings.Builder
	for _, w := range m.warnings {
		b.WriteString(m.styles.Warning.Render("! " + w))
		b.WriteString("\n")
	}
	if !m.closed {
		return b.String()
	}
	if m.err != nil {
		b.WriteString(m.styles.Error.Render("✗ " + m.err.Error()))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(m.styles.Success.Render(fmt.Sprintf("✓ %s (%s)", m.out.Output, format.HumanizeBytes(m.out.Bytes))))
	b.WriteString("\n")
	if m.out.Overshot {
		b.WriteString(m.styles.Warning.Render(fmt.Sprintf("! output is %.0f%% of the size limit", m.out.OvershootRatio*100)))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
