// Package render formats aggregated statistics for display. It reads the
// engine's accessors and imposes nothing back on it.
package render

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/github-usage/internal/usecase"
)

// Summary returns a human-readable block of all available statistics.
// Languages are listed by descending share, ties broken by name.
func Summary(ctx context.Context, s *usecase.Stats) string {
	languages := s.LanguagesProportional(ctx)
	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if languages[names[i]] != languages[names[j]] {
			return languages[names[i]] > languages[names[j]]
		}
		return names[i] < names[j]
	})
	formatted := make([]string, 0, len(names))
	for _, name := range names {
		formatted = append(formatted, fmt.Sprintf("%s: %.4f%%", name, languages[name]))
	}

	additions, deletions := s.LinesChanged(ctx)

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", s.Name(ctx))
	fmt.Fprintf(&b, "Stargazers: %s\n", humanize.Comma(int64(s.Stargazers(ctx))))
	fmt.Fprintf(&b, "Forks: %s\n", humanize.Comma(int64(s.Forks(ctx))))
	fmt.Fprintf(&b, "All-time contributions: %s\n", humanize.Comma(int64(s.TotalContributions(ctx))))
	fmt.Fprintf(&b, "Repositories with contributions: %d\n", len(s.Repos(ctx)))
	fmt.Fprintf(&b, "Lines of code added: %s\n", humanize.Comma(int64(additions)))
	fmt.Fprintf(&b, "Lines of code deleted: %s\n", humanize.Comma(int64(deletions)))
	fmt.Fprintf(&b, "Lines of code changed: %s\n", humanize.Comma(int64(additions+deletions)))
	fmt.Fprintf(&b, "Project page views: %s\n", humanize.Comma(int64(s.Views(ctx))))
	if mean, peak, ok := viewFigures(s.ViewSamples(ctx)); ok {
		fmt.Fprintf(&b, "Average daily page views: %.1f (peak %s)\n", mean, humanize.Comma(int64(peak)))
	}
	fmt.Fprintf(&b, "Languages:\n  - %s", strings.Join(formatted, "\n  - "))
	return b.String()
}

// viewFigures derives mean and peak daily views from the raw samples.
func viewFigures(samples []float64) (mean float64, peak int, ok bool) {
	if len(samples) == 0 {
		return 0, 0, false
	}
	mean, err := stats.Mean(samples)
	if err != nil {
		return 0, 0, false
	}
	highest, err := stats.Max(samples)
	if err != nil {
		return 0, 0, false
	}
	return mean, int(highest), true
}
