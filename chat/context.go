package chat

import "github.com/c360studio/repopulse/snapshot"

// ContextLimits caps each entity list in the repo context projection, so
// the chat request stays within payload limits however large the snapshot
// has grown.
type ContextLimits struct {
	MaxCommits      int `yaml:"max_commits"`
	MaxBranches     int `yaml:"max_branches"`
	MaxPullRequests int `yaml:"max_pull_requests"`
	MaxIssues       int `yaml:"max_issues"`
	MaxContributors int `yaml:"max_contributors"`
}

// DefaultContextLimits returns the default projection caps.
func DefaultContextLimits() ContextLimits {
	return ContextLimits{
		MaxCommits:      20,
		MaxBranches:     10,
		MaxPullRequests: 10,
		MaxIssues:       10,
		MaxContributors: 10,
	}
}

// RepoContext is the size-bounded projection of a snapshot that accompanies
// every chat request.
type RepoContext struct {
	Owner        string                 `json:"owner"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	Summary      string                 `json:"summary,omitempty"`
	Commits      []snapshot.Commit      `json:"commits,omitempty"`
	Branches     []snapshot.Branch      `json:"branches,omitempty"`
	PullRequests []snapshot.PullRequest `json:"pullRequests,omitempty"`
	Issues       []snapshot.Issue       `json:"issues,omitempty"`
	Contributors []snapshot.Contributor `json:"contributors,omitempty"`
}

// BuildContext projects a snapshot into a capped RepoContext. A nil
// snapshot yields an empty context (chat without a loaded repository).
func BuildContext(snap *snapshot.RepoSnapshot, limits ContextLimits) RepoContext {
	if snap == nil {
		return RepoContext{}
	}

	return RepoContext{
		Owner:        snap.Repo.Owner,
		Name:         snap.Repo.Name,
		Description:  snap.Repo.Description,
		Summary:      snap.Summary,
		Commits:      capped(snap.Commits, limits.MaxCommits),
		Branches:     capped(snap.Branches, limits.MaxBranches),
		PullRequests: capped(snap.PullRequests, limits.MaxPullRequests),
		Issues:       capped(snap.Issues, limits.MaxIssues),
		Contributors: capped(snap.Contributors, limits.MaxContributors),
	}
}

// capped returns at most n leading elements as a fresh slice.
func capped[T any](s []T, n int) []T {
	if n <= 0 || len(s) == 0 {
		return nil
	}
	if len(s) > n {
		s = s[:n]
	}
	return append([]T(nil), s...)
}
