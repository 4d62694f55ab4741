// Package snapshot holds the canonical view of one repository and the merge
// rules that keep it consistent while live events arrive.
package snapshot

import "time"

// Repository identifies the repository a snapshot describes.
type Repository struct {
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	DefaultBranch string    `json:"defaultBranch,omitempty"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	UpdatedAt     time.Time `json:"updatedAt,omitzero"`
}

// Commit is one entry in the snapshot's commit sequence. CommitID is the
// identity key used to deduplicate repeated deliveries.
type Commit struct {
	CommitID  string    `json:"commitId"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	Branch    string    `json:"branch,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`

	// Enrichment fields, populated once background processing finishes.
	Enriched  bool    `json:"enriched,omitempty"`
	Category  string  `json:"category,omitempty"`
	RiskScore float64 `json:"riskScore,omitempty"`
	Summary   string  `json:"summary,omitempty"`
}

// Branch is an auxiliary collection entry, replaced wholesale on refetch.
type Branch struct {
	Name         string `json:"name"`
	LastCommitID string `json:"lastCommitId,omitempty"`
	Protected    bool   `json:"protected,omitempty"`
}

// PullRequest is an auxiliary collection entry, replaced wholesale on refetch.
type PullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
	State  string `json:"state,omitempty"`
}

// Issue is an auxiliary collection entry, replaced wholesale on refetch.
type Issue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state,omitempty"`
}

// Contributor is an auxiliary collection entry, replaced wholesale on refetch.
type Contributor struct {
	Login   string `json:"login"`
	Commits int    `json:"commits"`
}

// RepoSnapshot is the canonical view of one repository. Commits are kept
// most-recent-first; the auxiliary collections are only ever replaced as a
// whole by a refetch, never patched incrementally.
type RepoSnapshot struct {
	Repo    Repository `json:"repo"`
	Commits []Commit   `json:"commits"`

	// AI summary state. Summary and SummaryError are mutually exclusive in
	// practice but both are carried so the reconciler can replace them
	// atomically with the playbook availability flag.
	Summary      string `json:"summary,omitempty"`
	SummaryError string `json:"summaryError,omitempty"`

	// PlaybookAvailable reports whether a playbook document exists server-side.
	// PlaybookGeneration is a cache-invalidation counter: it carries no data,
	// a bump means dependent views must re-fetch the playbook content.
	PlaybookAvailable  bool   `json:"playbookAvailable"`
	PlaybookGeneration uint64 `json:"-"`

	Branches     []Branch      `json:"branches,omitempty"`
	PullRequests []PullRequest `json:"pullRequests,omitempty"`
	Issues       []Issue       `json:"issues,omitempty"`
	Contributors []Contributor `json:"contributors,omitempty"`
}

// HasCommit reports whether a commit with the given identity key is already
// present in the commit sequence.
func (s *RepoSnapshot) HasCommit(commitID string) bool {
	for _, c := range s.Commits {
		if c.CommitID == commitID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the snapshot. Readers get clones so they can
// never mutate the canonical state.
func (s *RepoSnapshot) Clone() *RepoSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Commits = append([]Commit(nil), s.Commits...)
	out.Branches = append([]Branch(nil), s.Branches...)
	out.PullRequests = append([]PullRequest(nil), s.PullRequests...)
	out.Issues = append([]Issue(nil), s.Issues...)
	out.Contributors = append([]Contributor(nil), s.Contributors...)
	return &out
}

// Notification is one entry in the bounded recent-activity list. ID is a
// client-generated monotonic identifier used for dismissal; it is independent
// of the commit identity key so enrichment can update a notification in place
// without the entry appearing to jump.
type Notification struct {
	ID         uint64    `json:"id"`
	Commit     Commit    `json:"commit"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// AnalysisStatus describes the progress of one commit-scoped background
// analysis. It is a transient UI signal, never merged into the snapshot.
type AnalysisStatus string

const (
	AnalysisRunning   AnalysisStatus = "running"
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisFailed    AnalysisStatus = "failed"
)

// Analysis tracks one background analysis run.
type Analysis struct {
	CommitID string
	Status   AnalysisStatus
	Analyzed int
	Total    int
	Error    string
}

// State is the canonical snapshot plus the transient signals that live beside
// it: the bounded notification list, the connection flag, and per-commit
// background analysis progress.
type State struct {
	Snapshot      *RepoSnapshot
	Notifications []Notification

	Connected       bool
	LastStreamError string
	Analyses        map[string]Analysis
}

// Clone returns a deep copy of the state.
func (st *State) Clone() State {
	out := State{
		Snapshot:        st.Snapshot.Clone(),
		Notifications:   append([]Notification(nil), st.Notifications...),
		Connected:       st.Connected,
		LastStreamError: st.LastStreamError,
	}
	if st.Analyses != nil {
		out.Analyses = make(map[string]Analysis, len(st.Analyses))
		for k, v := range st.Analyses {
			out.Analyses[k] = v
		}
	}
	return out
}
