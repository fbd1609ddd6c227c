package googlechat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	chatdomain "chatsync-backend/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) chatdomain.RemoteClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc := NewService("id", "secret", NewLimiter(2, 0, 5*time.Second), 2,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	account := &chatdomain.Account{ID: "acc-1", Email: "a@x.com", AccessToken: "tok", TokenExpiry: time.Now().Add(time.Hour)}
	remote, err := svc.Open(context.Background(), account, nil)
	require.NoError(t, err)
	return remote
}

func TestListSpacesFollowsPageTokens(t *testing.T) {
	var calls int32
	remote := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/spaces", r.URL.Path)
		atomic.AddInt32(&calls, 1)
		switch r.URL.Query().Get("pageToken") {
		case "":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"spaces": []map[string]interface{}{
					{"name": "spaces/DM1", "spaceType": "DIRECT_MESSAGE"},
					{"name": "spaces/G1", "spaceType": "SPACE", "displayName": "Team"},
				},
				"nextPageToken": "p2",
			})
		case "p2":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"spaces": []map[string]interface{}{
					{"name": "spaces/G2", "spaceType": "GROUP_CHAT"},
				},
			})
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	})

	spaces, err := remote.ListSpaces(context.Background())
	require.NoError(t, err)
	require.Len(t, spaces, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, chatdomain.KindDirect, spaces[0].Kind)
	assert.Equal(t, chatdomain.KindGroup, spaces[1].Kind)
	assert.Equal(t, "Team", spaces[1].DisplayName)
	assert.Equal(t, "spaces/G2", spaces[2].SpaceID)
}

func TestListSpacesFailure(t *testing.T) {
	remote := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": map[string]interface{}{"code": 500, "message": "boom"},
		})
	})

	_, err := remote.ListSpaces(context.Background())
	assert.Error(t, err)
}

func TestListMembersSkipsNonUserMemberships(t *testing.T) {
	remote := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/spaces/DM1/members", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"memberships": []map[string]interface{}{
				{"name": "spaces/DM1/members/1", "member": map[string]interface{}{"name": "users/111", "displayName": "Bob"}},
				{"name": "spaces/DM1/members/2", "groupMember": map[string]interface{}{"name": "groups/x"}},
			},
		})
	})

	members, err := remote.ListMembers(context.Background(), "spaces/DM1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "users/111", members[0].ExternalUserID)
	assert.Equal(t, "Bob", members[0].DisplayName)
}

func TestListMessagesIncrementalFilter(t *testing.T) {
	since := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	remote := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/spaces/G1/messages", r.URL.Path)
		assert.Equal(t, `createTime > "2026-05-01T10:00:00Z"`, r.URL.Query().Get("filter"))
		assert.Equal(t, "createTime ASC", r.URL.Query().Get("orderBy"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"messages": []map[string]interface{}{
				{
					"name":       "spaces/G1/messages/m1",
					"text":       "hello",
					"createTime": "2026-05-01T10:05:00.123456Z",
					"sender":     map[string]interface{}{"name": "users/222", "displayName": "Carol"},
				},
				{"name": "spaces/G1/messages/bad", "createTime": "not-a-time"},
			},
		})
	})

	messages, err := remote.ListMessages(context.Background(), "spaces/G1", &since)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "spaces/G1/messages/m1", messages[0].MessageID)
	assert.Equal(t, "users/222", messages[0].SenderExternalID)
	assert.Equal(t, "Carol", messages[0].SenderDisplayName)
	assert.True(t, messages[0].CreateTime.After(since))
}

func TestGetUser(t *testing.T) {
	remote := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "domain_public", r.URL.Query().Get("viewType"))
		key := strings.TrimPrefix(r.URL.Path, "/admin/directory/v1/users/")
		switch key {
		case "111":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"id":           "111",
				"primaryEmail": "bob@x.com",
				"name":         map[string]interface{}{"fullName": "Bob Builder"},
			})
		case "500":
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"error": map[string]interface{}{"code": 500, "message": "boom"},
			})
		default:
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"error": map[string]interface{}{"code": 404, "message": "Resource Not Found: userKey"},
			})
		}
	})

	user, err := remote.GetUser(context.Background(), "111")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "bob@x.com", user.PrimaryEmail)
	assert.Equal(t, "Bob Builder", user.FullName)

	missing, err := remote.GetUser(context.Background(), "999")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = remote.GetUser(context.Background(), "500")
	assert.Error(t, err)
}

func TestLimiterBoundsConcurrency(t *testing.T) {
	limiter := NewLimiter(2, 0, time.Second)
	var inFlight, peak int32
	done := make(chan struct{})

	for i := 0; i < 6; i++ {
		go func() {
			_ = limiter.Do(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestLimiterAppliesTimeout(t *testing.T) {
	limiter := NewLimiter(1, 0, 20*time.Millisecond)
	err := limiter.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
