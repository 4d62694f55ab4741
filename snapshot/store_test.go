package snapshot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/repopulse/livefeed"
	"github.com/c360studio/repopulse/snapshot"
)

func repoSnap(owner, name string) *snapshot.RepoSnapshot {
	return &snapshot.RepoSnapshot{
		Repo: snapshot.Repository{Owner: owner, Name: name},
	}
}

func TestStore_LoadAndView(t *testing.T) {
	store := snapshot.NewStore()

	store.Load(repoSnap("octo", "pulse"))

	view := store.View()
	require.NotNil(t, view.Snapshot)
	assert.Equal(t, "octo", view.Snapshot.Repo.Owner)
}

func TestStore_ViewIsACopy(t *testing.T) {
	store := snapshot.NewStore()
	store.Load(repoSnap("octo", "pulse"))
	store.Apply(&livefeed.CommitEvent{CommitID: "c1", Author: "dev", Message: "m"})

	view := store.View()
	view.Snapshot.Commits[0].Message = "tampered"
	view.Notifications[0].Commit.Message = "tampered"

	fresh := store.View()
	assert.Equal(t, "m", fresh.Snapshot.Commits[0].Message)
	assert.Equal(t, "m", fresh.Notifications[0].Commit.Message)
}

func TestStore_SwitchingRepositoryResetsTransients(t *testing.T) {
	store := snapshot.NewStore()
	store.Load(repoSnap("octo", "pulse"))
	store.Apply(&livefeed.CommitEvent{CommitID: "c1"})
	require.Len(t, store.View().Notifications, 1)

	store.Load(repoSnap("octo", "other"))

	view := store.View()
	assert.Equal(t, "other", view.Snapshot.Repo.Name)
	assert.Empty(t, view.Notifications)
}

func TestStore_RefreshSameRepositoryKeepsNotificationsAndGeneration(t *testing.T) {
	store := snapshot.NewStore()
	store.Load(repoSnap("octo", "pulse"))
	store.Apply(&livefeed.CommitEvent{CommitID: "c1"})
	store.Apply(&livefeed.PlaybookUpdatedEvent{})

	// Authoritative refetch of the same repository.
	store.Load(repoSnap("octo", "pulse"))

	view := store.View()
	assert.Len(t, view.Notifications, 1)
	assert.Equal(t, uint64(1), view.Snapshot.PlaybookGeneration,
		"refetch cannot know the client-side generation counter")
}

func TestStore_Clear(t *testing.T) {
	store := snapshot.NewStore()
	store.Load(repoSnap("octo", "pulse"))
	store.Apply(&livefeed.CommitEvent{CommitID: "c1"})

	store.Clear()

	view := store.View()
	assert.Nil(t, view.Snapshot)
	assert.Empty(t, view.Notifications)
}

func TestStore_DismissNotification(t *testing.T) {
	store := snapshot.NewStore()
	store.Load(repoSnap("octo", "pulse"))
	store.Apply(&livefeed.CommitEvent{CommitID: "c1"})
	store.Apply(&livefeed.CommitEvent{CommitID: "c2"})

	view := store.View()
	require.Len(t, view.Notifications, 2)
	first := view.Notifications[0].ID

	store.DismissNotification(first)

	view = store.View()
	require.Len(t, view.Notifications, 1)
	assert.Equal(t, "c2", view.Notifications[0].Commit.CommitID)

	// Dismissing an unknown id is a no-op.
	store.DismissNotification(9999)
	assert.Len(t, store.View().Notifications, 1)
}

func TestStore_ListenersReceiveChanges(t *testing.T) {
	store := snapshot.NewStore()

	var changes []snapshot.Change
	remove := store.AddListener(func(c snapshot.Change) {
		changes = append(changes, c)
	})

	store.Load(repoSnap("octo", "pulse"))
	store.Apply(&livefeed.CommitEvent{CommitID: "c1"})

	assert.Contains(t, changes, snapshot.ChangeSnapshot)
	assert.Contains(t, changes, snapshot.ChangeNotifications)

	// Removed listeners stop receiving; removal is idempotent.
	remove()
	remove()
	seen := len(changes)
	store.Apply(&livefeed.CommitEvent{CommitID: "c2"})
	assert.Len(t, changes, seen)
}

func TestStore_ListenerCanCallView(t *testing.T) {
	store := snapshot.NewStore()

	var commits int
	store.AddListener(func(c snapshot.Change) {
		if c == snapshot.ChangeSnapshot {
			if snap := store.View().Snapshot; snap != nil {
				commits = len(snap.Commits)
			}
		}
	})

	store.Load(repoSnap("octo", "pulse"))
	store.Apply(&livefeed.CommitEvent{CommitID: "c1"})

	assert.Equal(t, 1, commits)
}

func TestStore_ApplyDuplicateNotifiesNothing(t *testing.T) {
	store := snapshot.NewStore()
	store.Load(repoSnap("octo", "pulse"))
	store.Apply(&livefeed.CommitEvent{CommitID: "c1"})

	var fired int
	store.AddListener(func(snapshot.Change) { fired++ })

	store.Apply(&livefeed.CommitEvent{CommitID: "c1"})
	assert.Zero(t, fired, "idempotent insert must not trigger a re-render")
}
