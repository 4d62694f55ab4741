package chat_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/repopulse/chat"
	"github.com/c360studio/repopulse/snapshot"
)

// streamHandler writes the given records as a chunked chat response.
func streamHandler(t *testing.T, records ...string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer does not support flushing")
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		for _, record := range records {
			fmt.Fprintf(w, "data: %s\n", record)
			flusher.Flush()
		}
	}
}

func TestClient_Send_StreamsResponse(t *testing.T) {
	var gotReq struct {
		Messages    []chat.Message   `json:"messages"`
		RepoContext chat.RepoContext `json:"repoContext"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		streamHandler(t,
			`{"chunk":"The repo "}`,
			`{"chunk":"looks healthy."}`,
			`{"done":true}`,
		)(w, r)
	}))
	defer server.Close()

	client := chat.NewClient(server.URL)

	var deltas []string
	full, err := client.Send(context.Background(),
		[]chat.Message{{Role: chat.RoleUser, Text: "How is the repo?"}},
		chat.RepoContext{Owner: "octo", Name: "pulse"},
		func(delta, total string) {
			deltas = append(deltas, delta)
		})

	require.NoError(t, err)
	assert.Equal(t, "The repo looks healthy.", full)
	assert.Equal(t, []string{"The repo ", "looks healthy."}, deltas)
	assert.Equal(t, "octo", gotReq.RepoContext.Owner)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, chat.RoleUser, gotReq.Messages[0].Role)
}

func TestClient_Send_ErrorRecordFailsExchange(t *testing.T) {
	server := httptest.NewServer(streamHandler(t,
		`{"chunk":"before"}`,
		`{"error":"model unavailable"}`,
		`{"chunk":"after"}`,
	))
	defer server.Close()

	client := chat.NewClient(server.URL)

	_, err := client.Send(context.Background(),
		[]chat.Message{{Role: chat.RoleUser, Text: "hi"}}, chat.RepoContext{}, nil)

	var respErr *chat.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "model unavailable", respErr.Message)
}

func TestClient_Send_NonSuccessJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"rate limited"}`)
	}))
	defer server.Close()

	client := chat.NewClient(server.URL)

	_, err := client.Send(context.Background(),
		[]chat.Message{{Role: chat.RoleUser, Text: "hi"}}, chat.RepoContext{}, nil)

	var respErr *chat.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "rate limited", respErr.Message)
}

func TestClient_Send_NonSuccessOpaqueBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html>bad gateway</html>")
	}))
	defer server.Close()

	client := chat.NewClient(server.URL)

	_, err := client.Send(context.Background(),
		[]chat.Message{{Role: chat.RoleUser, Text: "hi"}}, chat.RepoContext{}, nil)

	var respErr *chat.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Contains(t, respErr.Message, "502")
}

func TestClient_Send_RequiresMessages(t *testing.T) {
	client := chat.NewClient("http://localhost:0")

	_, err := client.Send(context.Background(), nil, chat.RepoContext{}, nil)
	require.Error(t, err)
}

func TestSession_PromotesDraftOnSuccess(t *testing.T) {
	server := httptest.NewServer(streamHandler(t,
		`{"chunk":"All "}`,
		`{"chunk":"good."}`,
		`{"done":true,"fullResponse":"All good."}`,
	))
	defer server.Close()

	session := chat.NewSession(chat.NewClient(server.URL))

	var sawDraft bool
	msg, err := session.Send(context.Background(), "status?", chat.RepoContext{}, func(delta, total string) {
		if draft, active := session.Transcript().Draft(); active && draft != "" {
			sawDraft = true
		}
	})
	require.NoError(t, err)

	assert.True(t, sawDraft, "draft should carry partial text while streaming")
	assert.Equal(t, chat.RoleAssistant, msg.Role)
	assert.Equal(t, "All good.", msg.Text)
	assert.False(t, msg.IsError)

	// Draft is gone once promoted.
	_, active := session.Transcript().Draft()
	assert.False(t, active)

	messages := session.Transcript().Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, chat.RoleUser, messages[0].Role)
	assert.Equal(t, "status?", messages[0].Text)
	assert.Equal(t, "All good.", messages[1].Text)
}

func TestSession_FailureKeepsUserInput(t *testing.T) {
	server := httptest.NewServer(streamHandler(t, `{"error":"boom"}`))
	defer server.Close()

	session := chat.NewSession(chat.NewClient(server.URL))

	msg, err := session.Send(context.Background(), "status?", chat.RepoContext{}, nil)
	require.Error(t, err)

	assert.True(t, msg.IsError)
	assert.Equal(t, "boom", msg.Text)

	// The user's message survives, followed by the assistant error entry.
	messages := session.Transcript().Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, chat.RoleUser, messages[0].Role)
	assert.Equal(t, "status?", messages[0].Text)
	assert.True(t, messages[1].IsError)

	// The failed exchange released the draft slot.
	_, active := session.Transcript().Draft()
	assert.False(t, active)
}

func TestSession_EmptyInputRejectedSynchronously(t *testing.T) {
	session := chat.NewSession(chat.NewClient("http://localhost:0"))

	_, err := session.Send(context.Background(), "   ", chat.RepoContext{}, nil)
	require.Error(t, err)
	assert.Zero(t, session.Transcript().Len())
}

func TestTranscript_SingleDraftInvariant(t *testing.T) {
	transcript := chat.NewTranscript()

	require.NoError(t, transcript.BeginDraft())
	require.Error(t, transcript.BeginDraft(), "second concurrent draft must be refused")

	transcript.PromoteDraft("done")
	require.NoError(t, transcript.BeginDraft(), "slot frees up after promotion")
}

func TestBuildContext_CapsCollections(t *testing.T) {
	snap := &snapshot.RepoSnapshot{
		Repo:    snapshot.Repository{Owner: "octo", Name: "pulse"},
		Summary: "busy repo",
	}
	for i := 0; i < 40; i++ {
		snap.Commits = append(snap.Commits, snapshot.Commit{CommitID: fmt.Sprintf("c%d", i)})
		snap.Branches = append(snap.Branches, snapshot.Branch{Name: fmt.Sprintf("b%d", i)})
	}

	repoCtx := chat.BuildContext(snap, chat.DefaultContextLimits())

	assert.Equal(t, "octo", repoCtx.Owner)
	assert.Equal(t, "busy repo", repoCtx.Summary)
	assert.Len(t, repoCtx.Commits, 20)
	assert.Len(t, repoCtx.Branches, 10)
	// Caps keep the newest entries: commits are most-recent-first already.
	assert.Equal(t, "c0", repoCtx.Commits[0].CommitID)
}

func TestBuildContext_NilSnapshot(t *testing.T) {
	repoCtx := chat.BuildContext(nil, chat.DefaultContextLimits())
	assert.Empty(t, repoCtx.Owner)
	assert.Nil(t, repoCtx.Commits)
}
