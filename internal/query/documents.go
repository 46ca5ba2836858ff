// Package query generates the GraphQL documents sent to the GitHub v4 API.
// The documents are plain text: the contributions query uses one dynamic
// alias per year, which rules out struct-based query builders.
package query

import (
	"fmt"
	"strings"
)

// cursorLiteral renders a pagination cursor as a GraphQL argument value.
// An absent cursor (empty string) renders as null, requesting the first page.
func cursorLiteral(cursor string) string {
	if cursor == "" {
		return "null"
	}
	return fmt.Sprintf("%q", cursor)
}

// OverviewDocument returns the query for one page of the repository
// overview: the viewer's identity plus one page each of the owned and
// contributed-to repository collections, with stargazer, fork and
// language data per repository.
func OverviewDocument(ownedCursor, contribCursor string) string {
	return fmt.Sprintf(`{
  viewer {
    login
    name
    repositories(
        first: 100,
        orderBy: {field: UPDATED_AT, direction: DESC},
        isFork: false,
        after: %s
    ) {
      pageInfo {
        hasNextPage
        endCursor
      }
      nodes {
        nameWithOwner
        stargazers {
          totalCount
        }
        forkCount
        languages(first: 10, orderBy: {field: SIZE, direction: DESC}) {
          edges {
            size
            node {
              name
              color
            }
          }
        }
      }
    }
    repositoriesContributedTo(
        first: 100,
        includeUserRepositories: false,
        orderBy: {field: UPDATED_AT, direction: DESC},
        contributionTypes: [COMMIT, PULL_REQUEST, REPOSITORY, PULL_REQUEST_REVIEW],
        after: %s
    ) {
      pageInfo {
        hasNextPage
        endCursor
      }
      nodes {
        nameWithOwner
        stargazers {
          totalCount
        }
        forkCount
        languages(first: 10, orderBy: {field: SIZE, direction: DESC}) {
          edges {
            size
            node {
              name
              color
            }
          }
        }
      }
    }
  }
}`, cursorLiteral(ownedCursor), cursorLiteral(contribCursor))
}

// YearsDocument returns the query for the list of years in which the
// viewer has recorded contributions.
func YearsDocument() string {
	return `query {
  viewer {
    contributionsCollection {
      contributionYears
    }
  }
}`
}

// ContributionsDocument returns a single query covering every given year,
// aliasing each year's contributionsCollection as yearNNNN so the totals
// can be read back from one response.
func ContributionsDocument(years []int) string {
	var b strings.Builder
	for _, year := range years {
		fmt.Fprintf(&b, `    year%d: contributionsCollection(
        from: "%d-01-01T00:00:00Z",
        to: "%d-01-01T00:00:00Z"
    ) {
      contributionCalendar {
        totalContributions
      }
    }
`, year, year, year+1)
	}
	return fmt.Sprintf("query {\n  viewer {\n%s  }\n}", b.String())
}
