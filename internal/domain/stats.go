// Package domain contains the core data structures and domain logic for the application.
package domain

// LanguageSize is a single (language, byte size) entry on a repository, in
// the order the API reports them (largest first).
type LanguageSize struct {
	Name  string
	Size  int
	Color string
}

// Repository holds the per-repository attributes folded into the aggregate.
// A repository is identified by its NameWithOwner; the aggregation layer
// creates at most one Repository per identity and never mutates it afterwards.
type Repository struct {
	NameWithOwner string         `json:"name_with_owner"`
	Stargazers    int            `json:"stargazers"`
	Forks         int            `json:"forks"`
	Languages     []LanguageSize `json:"languages,omitempty"`
}

// LanguageStat is the running aggregate for a single language across all
// counted repositories.
type LanguageStat struct {
	Size        int     `json:"size"`
	Occurrences int     `json:"occurrences"`
	Color       string  `json:"color,omitempty"`
	Prop        float64 `json:"prop"`
}

// ComputeShares sets each language's Prop to its percentage of the total
// byte size. When the total is zero every share is zero; otherwise the
// shares sum to 100 within floating tolerance.
func ComputeShares(langs map[string]*LanguageStat) {
	total := 0
	for _, l := range langs {
		total += l.Size
	}
	for _, l := range langs {
		if total > 0 {
			l.Prop = 100 * float64(l.Size) / float64(total)
		} else {
			l.Prop = 0
		}
	}
}
