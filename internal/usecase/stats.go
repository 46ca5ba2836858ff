// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/naka-gawa/github-usage/internal/domain"
	"github.com/naka-gawa/github-usage/internal/gateway"
	"github.com/naka-gawa/github-usage/internal/query"
	"golang.org/x/sync/errgroup"
)

// defaultName is used when the API reports neither a display name nor a login.
const defaultName = "No Name"

// Options configures a Stats instance.
type Options struct {
	// Username is the login of the account under measurement.
	Username string
	// ExcludeRepos lists repository identities (owner/name) that never
	// contribute to any statistic.
	ExcludeRepos []string
	// ExcludeLangs lists language names to exclude, matched case-insensitively.
	ExcludeLangs []string
	// ExcludeContribRepos drops the contributed-to collection entirely,
	// counting only repositories the account owns.
	ExcludeContribRepos bool
}

// Stats retrieves and memoizes statistics about an account's GitHub usage.
// Each statistic is computed lazily on first access and cached for the
// lifetime of the instance; the expensive repository traversal runs at most
// once no matter how many accessors request it concurrently.
type Stats struct {
	querier gateway.Querier
	logger  *log.Logger
	opts    Options

	excludeRepos map[string]struct{}
	excludeLangs map[string]struct{}

	overviewOnce sync.Once
	name         string
	stargazers   int
	forks        int
	languages    map[string]*domain.LanguageStat
	repos        map[string]*domain.Repository

	contribOnce        sync.Once
	totalContributions int

	linesOnce sync.Once
	additions int
	deletions int

	viewsOnce   sync.Once
	views       int
	viewSamples []float64
}

// NewStats creates a new Stats instance. No requests are issued until a
// statistic is accessed.
func NewStats(querier gateway.Querier, opts Options, logger *log.Logger) *Stats {
	excludeRepos := make(map[string]struct{}, len(opts.ExcludeRepos))
	for _, r := range opts.ExcludeRepos {
		excludeRepos[r] = struct{}{}
	}
	excludeLangs := make(map[string]struct{}, len(opts.ExcludeLangs))
	for _, l := range opts.ExcludeLangs {
		excludeLangs[strings.ToLower(l)] = struct{}{}
	}
	return &Stats{
		querier:      querier,
		logger:       logger,
		opts:         opts,
		excludeRepos: excludeRepos,
		excludeLangs: excludeLangs,
	}
}

// overviewResponse mirrors the shape of the repository overview query.
// Missing keys decode to zero values, so a failed or partial response
// simply contributes no data.
type overviewResponse struct {
	Data struct {
		Viewer struct {
			Login         string         `json:"login"`
			Name          string         `json:"name"`
			Repositories  repoConnection `json:"repositories"`
			ContributedTo repoConnection `json:"repositoriesContributedTo"`
		} `json:"viewer"`
	} `json:"data"`
}

type repoConnection struct {
	PageInfo struct {
		HasNextPage bool   `json:"hasNextPage"`
		EndCursor   string `json:"endCursor"`
	} `json:"pageInfo"`
	Nodes []*repoNode `json:"nodes"`
}

type repoNode struct {
	NameWithOwner string `json:"nameWithOwner"`
	Stargazers    struct {
		TotalCount int `json:"totalCount"`
	} `json:"stargazers"`
	ForkCount int `json:"forkCount"`
	Languages struct {
		Edges []struct {
			Size int `json:"size"`
			Node struct {
				Name  string `json:"name"`
				Color string `json:"color"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"languages"`
}

// overview runs the bulk traversal exactly once; concurrent callers block
// until the first caller's traversal completes.
func (s *Stats) overview(ctx context.Context) {
	s.overviewOnce.Do(func() { s.collectOverview(ctx) })
}

// collectOverview walks the owned and contributed-to repository collections
// page by page until neither reports a further page, folding every
// first-seen repository into the running totals.
func (s *Stats) collectOverview(ctx context.Context) {
	s.logger.Println("Fetching repository overview...")
	s.languages = make(map[string]*domain.LanguageStat)
	s.repos = make(map[string]*domain.Repository)

	var ownedCursor, contribCursor string
	for {
		raw, err := s.querier.GraphQL(ctx, query.OverviewDocument(ownedCursor, contribCursor))
		var page overviewResponse
		if err != nil {
			s.logger.Printf("Overview query failed: %v", err)
		} else if err := json.Unmarshal(raw, &page); err != nil {
			s.logger.Printf("Overview response was malformed: %v", err)
		}
		viewer := page.Data.Viewer

		if s.name == "" {
			switch {
			case viewer.Name != "":
				s.name = viewer.Name
			case viewer.Login != "":
				s.name = viewer.Login
			default:
				s.name = defaultName
			}
		}

		nodes := viewer.Repositories.Nodes
		if !s.opts.ExcludeContribRepos {
			nodes = append(nodes, viewer.ContributedTo.Nodes...)
		}
		for _, node := range nodes {
			if node == nil {
				continue
			}
			name := node.NameWithOwner
			if _, seen := s.repos[name]; seen {
				continue
			}
			if _, excluded := s.excludeRepos[name]; excluded {
				continue
			}
			repo := &domain.Repository{
				NameWithOwner: name,
				Stargazers:    node.Stargazers.TotalCount,
				Forks:         node.ForkCount,
			}
			s.stargazers += repo.Stargazers
			s.forks += repo.Forks

			for _, edge := range node.Languages.Edges {
				lang := edge.Node.Name
				if lang == "" {
					lang = "Other"
				}
				if _, excluded := s.excludeLangs[strings.ToLower(lang)]; excluded {
					continue
				}
				repo.Languages = append(repo.Languages, domain.LanguageSize{
					Name:  lang,
					Size:  edge.Size,
					Color: edge.Node.Color,
				})
				if stat, ok := s.languages[lang]; ok {
					stat.Size += edge.Size
					stat.Occurrences++
				} else {
					s.languages[lang] = &domain.LanguageStat{
						Size:        edge.Size,
						Occurrences: 1,
						Color:       edge.Node.Color,
					}
				}
			}
			s.repos[name] = repo
		}

		owned := viewer.Repositories.PageInfo
		contrib := viewer.ContributedTo.PageInfo
		if !owned.HasNextPage && !contrib.HasNextPage {
			break
		}
		// An empty endCursor keeps the previous cursor for that collection.
		if owned.EndCursor != "" {
			ownedCursor = owned.EndCursor
		}
		if contrib.EndCursor != "" {
			contribCursor = contrib.EndCursor
		}
		s.logger.Println("  Fetching next page of repositories...")
	}

	domain.ComputeShares(s.languages)
	s.logger.Printf("Completed repository overview: %d repositories.", len(s.repos))
}

// Name returns the account's display name, falling back to its login and
// finally to a literal default.
func (s *Stats) Name(ctx context.Context) string {
	s.overview(ctx)
	return s.name
}

// Stargazers returns the total stargazer count across all counted repositories.
func (s *Stats) Stargazers(ctx context.Context) int {
	s.overview(ctx)
	return s.stargazers
}

// Forks returns the total fork count across all counted repositories.
func (s *Stats) Forks(ctx context.Context) int {
	s.overview(ctx)
	return s.forks
}

// Languages returns the per-language aggregate, keyed by language name.
func (s *Stats) Languages(ctx context.Context) map[string]domain.LanguageStat {
	s.overview(ctx)
	out := make(map[string]domain.LanguageStat, len(s.languages))
	for name, stat := range s.languages {
		out[name] = *stat
	}
	return out
}

// LanguagesProportional returns each language's percentage share of the
// total byte size.
func (s *Stats) LanguagesProportional(ctx context.Context) map[string]float64 {
	s.overview(ctx)
	out := make(map[string]float64, len(s.languages))
	for name, stat := range s.languages {
		out[name] = stat.Prop
	}
	return out
}

// Repos returns the sorted identities of every counted repository.
func (s *Stats) Repos(ctx context.Context) []string {
	s.overview(ctx)
	repos := make([]string, 0, len(s.repos))
	for name := range s.repos {
		repos = append(repos, name)
	}
	sort.Strings(repos)
	return repos
}

// Repositories returns every counted repository with its recorded
// attributes, sorted by identity.
func (s *Stats) Repositories(ctx context.Context) []domain.Repository {
	s.overview(ctx)
	repos := make([]domain.Repository, 0, len(s.repos))
	for _, repo := range s.repos {
		repos = append(repos, *repo)
	}
	sort.Slice(repos, func(i, j int) bool {
		return repos[i].NameWithOwner < repos[j].NameWithOwner
	})
	return repos
}

// TotalContributions returns the account's all-time contribution count,
// summed over every year with recorded activity.
func (s *Stats) TotalContributions(ctx context.Context) int {
	s.contribOnce.Do(func() { s.collectContributions(ctx) })
	return s.totalContributions
}

func (s *Stats) collectContributions(ctx context.Context) {
	s.logger.Println("Fetching all-time contributions...")
	var yearsResp struct {
		Data struct {
			Viewer struct {
				ContributionsCollection struct {
					ContributionYears []int `json:"contributionYears"`
				} `json:"contributionsCollection"`
			} `json:"viewer"`
		} `json:"data"`
	}
	raw, err := s.querier.GraphQL(ctx, query.YearsDocument())
	if err != nil {
		s.logger.Printf("Contribution years query failed: %v", err)
		return
	}
	if err := json.Unmarshal(raw, &yearsResp); err != nil {
		s.logger.Printf("Contribution years response was malformed: %v", err)
		return
	}
	years := yearsResp.Data.Viewer.ContributionsCollection.ContributionYears
	if len(years) == 0 {
		return
	}

	// One combined query with a per-year alias; a year missing from the
	// response contributes zero.
	var contribResp struct {
		Data struct {
			Viewer map[string]struct {
				ContributionCalendar struct {
					TotalContributions int `json:"totalContributions"`
				} `json:"contributionCalendar"`
			} `json:"viewer"`
		} `json:"data"`
	}
	raw, err = s.querier.GraphQL(ctx, query.ContributionsDocument(years))
	if err != nil {
		s.logger.Printf("Contributions query failed: %v", err)
		return
	}
	if err := json.Unmarshal(raw, &contribResp); err != nil {
		s.logger.Printf("Contributions response was malformed: %v", err)
		return
	}
	for _, year := range contribResp.Data.Viewer {
		s.totalContributions += year.ContributionCalendar.TotalContributions
	}
}

// LinesChanged returns the total lines added and deleted by the account
// across all counted repositories.
func (s *Stats) LinesChanged(ctx context.Context) (additions, deletions int) {
	s.linesOnce.Do(func() { s.collectLinesChanged(ctx) })
	return s.additions, s.deletions
}

func (s *Stats) collectLinesChanged(ctx context.Context) {
	repos := s.Repos(ctx)
	s.logger.Printf("Fetching contributor stats for %d repositories...", len(repos))

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for _, repo := range repos {
		eg.Go(func() error {
			raw, err := s.querier.REST(egCtx, fmt.Sprintf("repos/%s/stats/contributors", repo), nil)
			if err != nil {
				s.logger.Printf("Contributor stats for %s unavailable: %v", repo, err)
				return nil
			}
			var contributors []struct {
				Author struct {
					Login string `json:"login"`
				} `json:"author"`
				Weeks []struct {
					Additions int `json:"a"`
					Deletions int `json:"d"`
				} `json:"weeks"`
			}
			// A non-list response carries no usable data; skip it.
			if err := json.Unmarshal(raw, &contributors); err != nil {
				return nil
			}
			var adds, dels int
			for _, c := range contributors {
				if c.Author.Login != s.opts.Username {
					continue
				}
				for _, week := range c.Weeks {
					adds += week.Additions
					dels += week.Deletions
				}
			}
			mu.Lock()
			s.additions += adds
			s.deletions += dels
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
}

// Views returns the total page view count across all counted repositories.
func (s *Stats) Views(ctx context.Context) int {
	s.viewsOnce.Do(func() { s.collectViews(ctx) })
	return s.views
}

// ViewSamples returns the individual per-period view counts gathered while
// computing Views, for descriptive statistics in the renderer.
func (s *Stats) ViewSamples(ctx context.Context) []float64 {
	s.viewsOnce.Do(func() { s.collectViews(ctx) })
	out := make([]float64, len(s.viewSamples))
	copy(out, s.viewSamples)
	return out
}

func (s *Stats) collectViews(ctx context.Context) {
	repos := s.Repos(ctx)
	s.logger.Printf("Fetching traffic views for %d repositories...", len(repos))

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for _, repo := range repos {
		eg.Go(func() error {
			raw, err := s.querier.REST(egCtx, fmt.Sprintf("repos/%s/traffic/views", repo), nil)
			if err != nil {
				s.logger.Printf("Traffic views for %s unavailable: %v", repo, err)
				return nil
			}
			var traffic struct {
				Views []struct {
					Count int `json:"count"`
				} `json:"views"`
			}
			if err := json.Unmarshal(raw, &traffic); err != nil {
				return nil
			}
			mu.Lock()
			for _, v := range traffic.Views {
				s.views += v.Count
				s.viewSamples = append(s.viewSamples, float64(v.Count))
			}
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
}
