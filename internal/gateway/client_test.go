package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractExpiryHint(t *testing.T) {
	tests := []struct {
		nick string
		want string
	}{
		{"Fulano | 31/12/2025", "31/12/2025"},
		{"Fulano|01/01/2026", "01/01/2026"},
		{"Fulano | 31/12/2025   ", "31/12/2025"},
		{"Nome | Sobrenome | 15/06/2025", "15/06/2025"},
		{"Fulano", ""},
		{"Fulano | amanhã", ""},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ExtractExpiryHint(tc.nick), "nick=%q", tc.nick)
	}
}

func TestCleanNickname(t *testing.T) {
	assert.Equal(t, "Fulano", CleanNickname("Fulano | 31/12/2025"))
	assert.Equal(t, "Fulano", CleanNickname("Fulano"))
	assert.Equal(t, "Nome | Sobrenome", CleanNickname("Nome | Sobrenome | 15/06/2025"))
}

func newTestClient(url string) *Client {
	return NewClient(url, "test-token", "g1", "ASSINANTE", "chan-1")
}

func TestListTrackedSubjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/guilds/g1/members", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]Member{
			{ID: 10, Username: "fulano", Nick: "Fulano | 31/12/2025"},
			{ID: 20, Username: "visitante", Nick: ""},
		})
	}))
	defer srv.Close()

	subjects, err := newTestClient(srv.URL).ListTrackedSubjects(context.Background())
	require.NoError(t, err)
	require.Len(t, subjects, 2)

	assert.Equal(t, int64(10), subjects[0].ID)
	assert.Equal(t, "Fulano", subjects[0].DisplayName)
	assert.Equal(t, "31/12/2025", subjects[0].RawExpiry)

	assert.Equal(t, "visitante", subjects[1].DisplayName)
	assert.Empty(t, subjects[1].RawExpiry, "member without a date suffix is untracked")
}

func TestListTrackedSubjectsGatewayDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "guild not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ListTrackedSubjects(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status: 404")
}

func TestSendDirectNotice(t *testing.T) {
	var gotPath, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req MessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotContent = req.Content
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).SendDirectNotice(context.Background(), 10, "REMINDER_MID", "sua assinatura expira em 3 dias")
	require.NoError(t, err)
	assert.Equal(t, "/users/10/messages", gotPath)
	assert.Equal(t, "sua assinatura expira em 3 dias", gotContent)
}

func TestSendChannelNotice(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).SendChannelNotice(context.Background(), "relatório")
	require.NoError(t, err)
	assert.Equal(t, "/channels/chan-1/messages", gotPath)
}

func TestRevokeAndRemove(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	require.NoError(t, c.RevokeAccess(context.Background(), 10, "assinatura expirada"))
	require.NoError(t, c.RemoveMembership(context.Background(), 10, "assinatura expirada"))

	require.Len(t, calls, 2)
	assert.Equal(t, "DELETE /guilds/g1/members/10/roles/ASSINANTE", calls[0])
	assert.Equal(t, "DELETE /guilds/g1/members/10", calls[1])
}

func TestGrantAccess(t *testing.T) {
	var calls []string
	var gotNick string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPatch {
			var req NicknameRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			gotNick = req.Nick
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	expiry := time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC)
	err := newTestClient(srv.URL).GrantAccess(context.Background(), 10, "Fulano | 01/01/2025", expiry)
	require.NoError(t, err)

	require.Len(t, calls, 2)
	assert.Equal(t, "PATCH /guilds/g1/members/10", calls[0])
	assert.Equal(t, "PUT /guilds/g1/members/10/roles/ASSINANTE", calls[1])
	assert.Equal(t, "Fulano | 31/12/2025", gotNick, "old date suffix replaced, not stacked")
}
