package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"chatfm/auth"
	"chatfm/chat"
	"chatfm/config"
	"chatfm/db"
	"chatfm/model"
	"chatfm/realtime"
)

type testEnv struct {
	cfg      *config.Config
	engine   *gin.Engine
	hub      *realtime.Hub
	channels *db.ChannelRepo
	messages *db.MessageRepo
	users    *db.UserRepo
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWTSecret:       "test-secret",
		RoutePrefix:     "/chat-fm",
		OpenAccess:      true,
		Versioning:      true,
		MessageVersions: 5,
	}
	if mutate != nil {
		mutate(cfg)
	}

	database, err := db.InitDB(filepath.Join(t.TempDir(), "routes-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.CloseDB(database) })

	logger := slog.Default()
	env := &testEnv{
		cfg:      cfg,
		hub:      realtime.NewHub(logger),
		channels: db.NewChannelRepo(database, logger),
		messages: db.NewMessageRepo(database, logger),
		users:    db.NewUserRepo(database, logger),
	}

	api := chat.New(cfg, env.channels, env.messages, env.users, env.hub, logger)
	env.engine = gin.New()
	SetupAPIRoutes(env.engine, cfg, api, env.hub)
	return env
}

func (e *testEnv) token(t *testing.T, userID, firstName string) string {
	t.Helper()
	token, err := auth.Token(e.cfg, userID, firstName, "", true)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, request)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func values(t *testing.T, w *httptest.ResponseRecorder) []any {
	t.Helper()
	list, ok := decode(t, w)["value"].([]any)
	require.True(t, ok)
	return list
}

func Test_Send_To_Self_Fails(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")

	w := env.do(t, "POST", "/chat-fm/messages", gin.H{"to": []string{"u-alice"}, "text": "hi me"}, alice)
	req.Equal(http.StatusBadRequest, w.Code)
}

func Test_Send_Single_Recipient_Creates_P2P(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")

	w := env.do(t, "POST", "/chat-fm/messages", gin.H{"to": []string{"u-bob"}, "text": "hello bob"}, alice)
	req.Equal(http.StatusOK, w.Code)

	message := decode(t, w)
	channelID, _ := message["channel"].(string)
	req.NotEmpty(channelID)

	channel, err := env.channels.FindByID(channelID)
	req.NoError(err)
	req.Equal(model.ChannelP2P, channel.Type)
	req.Equal("u-alice", channel.Owner)
}

func Test_Send_Multiple_Recipients_Creates_Private(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")

	w := env.do(t, "POST", "/chat-fm/messages", gin.H{"to": []string{"u-bob", "u-carol"}, "text": "hi both"}, alice)
	req.Equal(http.StatusOK, w.Code)

	channelID := decode(t, w)["channel"].(string)
	channel, err := env.channels.FindByID(channelID)
	req.NoError(err)
	req.Equal(model.ChannelPrivate, channel.Type)
	req.Len(channel.Users, 2)
}

func Test_Anonymous_Sender(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)

	w := env.do(t, "POST", "/chat-fm/messages", gin.H{"to": []string{"u-bob", "u-carol"}, "text": "hi"}, "")
	req.Equal(http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/chat-fm/messages", gin.H{"to": []string{"u-bob"}, "text": "guest question"}, "")
	req.Equal(http.StatusOK, w.Code)

	channelID := decode(t, w)["channel"].(string)
	channel, err := env.channels.FindByID(channelID)
	req.NoError(err)
	req.Equal("u-bob", channel.Owner)
	req.Empty(channel.Users)
}

func Test_Create_Channel_Requires_Auth_And_Valid_Type(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")

	w := env.do(t, "POST", "/chat-fm/channels", gin.H{"name": "ops"}, "")
	req.Equal(http.StatusUnauthorized, w.Code)

	w = env.do(t, "POST", "/chat-fm/channels", gin.H{"name": "ops", "type": "secret"}, alice)
	req.Equal(http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/chat-fm/channels", gin.H{
		"name": "ops",
		"type": "internal",
		"users": []gin.H{{"user": "u-bob"}},
	}, alice)
	req.Equal(http.StatusCreated, w.Code)

	channel := decode(t, w)
	req.Equal("u-alice", channel["owner"])
	req.Equal("internal", channel["type"])
}

func Test_Edit_Channel_Admin_Only(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")
	bob := env.token(t, "u-bob", "Bob")

	w := env.do(t, "POST", "/chat-fm/channels", gin.H{
		"name": "ops", "type": "internal",
		"users": []gin.H{{"user": "u-bob"}},
	}, alice)
	req.Equal(http.StatusCreated, w.Code)
	id := decode(t, w)["id"].(string)

	w = env.do(t, "POST", "/chat-fm/channels/"+id, gin.H{"name": "renamed"}, bob)
	req.Equal(http.StatusForbidden, w.Code)

	w = env.do(t, "POST", "/chat-fm/channels/"+id, gin.H{"name": "renamed"}, alice)
	req.Equal(http.StatusOK, w.Code)
	req.Equal("renamed", decode(t, w)["name"])
}

func Test_Archive_Hides_From_Listing(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")

	w := env.do(t, "POST", "/chat-fm/channels", gin.H{"name": "ops", "type": "private"}, alice)
	id := decode(t, w)["id"].(string)

	w = env.do(t, "POST", "/chat-fm/channels/"+id+"/archive", nil, alice)
	req.Equal(http.StatusOK, w.Code)

	w = env.do(t, "GET", "/chat-fm/channels", nil, alice)
	req.Equal(http.StatusOK, w.Code)
	req.Empty(values(t, w))

	w = env.do(t, "POST", "/chat-fm/channels/"+id+"/unarchive", nil, alice)
	req.Equal(http.StatusOK, w.Code)

	w = env.do(t, "GET", "/chat-fm/channels", nil, alice)
	req.Len(values(t, w), 1)
}

func Test_Empty_Listings_Serialize_As_Arrays(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")

	w := env.do(t, "GET", "/chat-fm/channels", nil, alice)
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"value": []}`, w.Body.String())

	w = env.do(t, "POST", "/chat-fm/channels", gin.H{"name": "ops", "type": "private"}, alice)
	id := decode(t, w)["id"].(string)

	w = env.do(t, "GET", "/chat-fm/channels/"+id+"/messages", nil, alice)
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"value": []}`, w.Body.String())
}

func Test_Invite_Upserts_Members(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")

	w := env.do(t, "POST", "/chat-fm/channels", gin.H{"name": "ops", "type": "private"}, alice)
	id := decode(t, w)["id"].(string)

	w = env.do(t, "POST", "/chat-fm/channels/"+id+"/invite", []gin.H{
		{"user": "u-bob"},
		{"user": "u-carol", "isAdmin": true},
	}, alice)
	req.Equal(http.StatusOK, w.Code)

	w = env.do(t, "POST", "/chat-fm/channels/"+id+"/invite", []gin.H{
		{"user": "u-bob", "isAdmin": true},
	}, alice)
	req.Equal(http.StatusOK, w.Code)

	channel, err := env.channels.FindByID(id)
	req.NoError(err)
	req.Len(channel.Users, 2)
	req.True(channel.Users[0].IsAdmin)
}

func Test_Leave_Channel(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")
	bob := env.token(t, "u-bob", "Bob")

	w := env.do(t, "POST", "/chat-fm/channels", gin.H{
		"name": "ops", "type": "private",
		"users": []gin.H{{"user": "u-bob"}},
	}, alice)
	id := decode(t, w)["id"].(string)

	w = env.do(t, "POST", "/chat-fm/channels/"+id+"/leave", nil, alice)
	req.Equal(http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/chat-fm/channels/"+id+"/leave", nil, bob)
	req.Equal(http.StatusNoContent, w.Code)

	// Former members lose access; the denial reads as not-found.
	w = env.do(t, "GET", "/chat-fm/channels/"+id, nil, bob)
	req.Equal(http.StatusNotFound, w.Code)
}

func Test_Messages_List_Marks_Seen(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")
	bob := env.token(t, "u-bob", "Bob")

	w := env.do(t, "POST", "/chat-fm/messages", gin.H{"to": []string{"u-bob"}, "text": "are you there"}, alice)
	req.Equal(http.StatusOK, w.Code)
	channelID := decode(t, w)["channel"].(string)

	// Unread for the recipient right after the send.
	w = env.do(t, "GET", "/chat-fm/channels/preview", nil, bob)
	req.Equal(http.StatusOK, w.Code)
	preview := values(t, w)[0].(map[string]any)
	req.Equal(false, preview["read"])

	// The sender's own seen-marking runs in the background.
	require.Eventually(t, func() bool {
		w := env.do(t, "GET", "/chat-fm/channels/preview", nil, alice)
		list := values(t, w)
		return len(list) == 1 && list[0].(map[string]any)["read"] == true
	}, 2*time.Second, 10*time.Millisecond)

	// Reading page zero marks the channel seen.
	w = env.do(t, "GET", "/chat-fm/channels/"+channelID+"/messages", nil, bob)
	req.Equal(http.StatusOK, w.Code)
	req.Len(values(t, w), 1)

	w = env.do(t, "GET", "/chat-fm/channels/preview", nil, bob)
	preview = values(t, w)[0].(map[string]any)
	req.Equal(true, preview["read"])

	// Deeper pages do not mark anything.
	w = env.do(t, "POST", "/chat-fm/messages", gin.H{"to": []string{"u-bob"}, "text": "second"}, alice)
	req.Equal(http.StatusOK, w.Code)
	w = env.do(t, "GET", "/chat-fm/channels/"+channelID+"/messages?skip=1", nil, bob)
	req.Equal(http.StatusOK, w.Code)

	w = env.do(t, "GET", "/chat-fm/channels/preview", nil, bob)
	preview = values(t, w)[0].(map[string]any)
	req.Equal(false, preview["read"])
}

func Test_Edit_Message_Author_Only_With_Versioning(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")
	bob := env.token(t, "u-bob", "Bob")

	w := env.do(t, "POST", "/chat-fm/messages", gin.H{"to": []string{"u-bob"}, "text": "first"}, alice)
	req.Equal(http.StatusOK, w.Code)
	id := decode(t, w)["id"].(string)

	w = env.do(t, "POST", "/chat-fm/messages/"+id, gin.H{"text": "hacked"}, bob)
	req.Equal(http.StatusForbidden, w.Code)

	w = env.do(t, "POST", "/chat-fm/messages/"+id, gin.H{"text": "second"}, alice)
	req.Equal(http.StatusOK, w.Code)
	edited := decode(t, w)
	req.Equal("second", edited["text"])

	versions := edited["versions"].([]any)
	req.Len(versions, 1)
	req.Equal("first", versions[0].(map[string]any)["text"])

	w = env.do(t, "POST", "/chat-fm/messages/"+id, gin.H{"text": "third"}, alice)
	versions = decode(t, w)["versions"].([]any)
	req.Len(versions, 2)
	req.Equal("second", versions[0].(map[string]any)["text"])
	req.Equal("first", versions[1].(map[string]any)["text"])
}

func Test_Remove_Message_Soft(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")

	w := env.do(t, "POST", "/chat-fm/messages", gin.H{"to": []string{"u-bob"}, "text": "oops"}, alice)
	id := decode(t, w)["id"].(string)

	w = env.do(t, "DELETE", "/chat-fm/messages/"+id, nil, alice)
	req.Equal(http.StatusOK, w.Code)
	removed := decode(t, w)
	req.Equal(true, removed["removed"])
	req.Equal("", removed["text"])
}

func Test_Remove_Message_Hard(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, func(cfg *config.Config) { cfg.RemoveMessages = true })
	alice := env.token(t, "u-alice", "Alice")

	w := env.do(t, "POST", "/chat-fm/messages", gin.H{"to": []string{"u-bob"}, "text": "oops"}, alice)
	id := decode(t, w)["id"].(string)

	w = env.do(t, "DELETE", "/chat-fm/messages/"+id, nil, alice)
	req.Equal(http.StatusNoContent, w.Code)

	w = env.do(t, "DELETE", "/chat-fm/messages/"+id, nil, alice)
	req.Equal(http.StatusNotFound, w.Code)
}

func Test_Remove_Channel_Owner_Only_And_Cascades(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")
	bob := env.token(t, "u-bob", "Bob")

	w := env.do(t, "POST", "/chat-fm/messages", gin.H{"to": []string{"u-bob"}, "text": "one"}, alice)
	channelID := decode(t, w)["channel"].(string)
	for i := 0; i < 2; i++ {
		env.do(t, "POST", "/chat-fm/channels/"+channelID+"/messages", gin.H{"text": fmt.Sprintf("more %d", i)}, alice)
	}

	w = env.do(t, "DELETE", "/chat-fm/channels/"+channelID, nil, bob)
	req.Equal(http.StatusForbidden, w.Code)

	w = env.do(t, "DELETE", "/chat-fm/channels/"+channelID, nil, alice)
	req.Equal(http.StatusNoContent, w.Code)

	n, err := env.messages.CountByChannel(channelID)
	req.NoError(err)
	req.Zero(n)

	w = env.do(t, "GET", "/chat-fm/channels/"+channelID, nil, alice)
	req.Equal(http.StatusNotFound, w.Code)
}

func Test_Send_System_Type_Admin_Only(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")
	bob := env.token(t, "u-bob", "Bob")

	w := env.do(t, "POST", "/chat-fm/channels", gin.H{
		"name": "ops", "type": "internal",
		"users": []gin.H{{"user": "u-bob"}},
	}, alice)
	id := decode(t, w)["id"].(string)

	w = env.do(t, "POST", "/chat-fm/channels/"+id+"/messages", gin.H{"text": "alert", "type": "warning"}, bob)
	req.Equal(http.StatusForbidden, w.Code)

	w = env.do(t, "POST", "/chat-fm/channels/"+id+"/messages", gin.H{"text": "alert", "type": "warning"}, alice)
	req.Equal(http.StatusOK, w.Code)
	req.Equal("warning", decode(t, w)["type"])
}

func Test_Visibility_Anonymous(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")

	w := env.do(t, "POST", "/chat-fm/channels", gin.H{"name": "town square", "type": "public"}, alice)
	req.Equal(http.StatusCreated, w.Code)
	w = env.do(t, "POST", "/chat-fm/channels", gin.H{"name": "staff", "type": "internal"}, alice)
	req.Equal(http.StatusCreated, w.Code)
	internalID := decode(t, w)["id"].(string)

	w = env.do(t, "GET", "/chat-fm/channels", nil, "")
	req.Equal(http.StatusOK, w.Code)
	list := values(t, w)
	req.Len(list, 1)
	req.Equal("town square", list[0].(map[string]any)["name"])

	w = env.do(t, "GET", "/chat-fm/channels/"+internalID, nil, "")
	req.Equal(http.StatusNotFound, w.Code)
}

func Test_Invalid_Ids_Are_Bad_Requests(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")

	w := env.do(t, "GET", "/chat-fm/channels/not-a-uuid", nil, alice)
	req.Equal(http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/chat-fm/messages/not-a-uuid", gin.H{"text": "x"}, alice)
	req.Equal(http.StatusBadRequest, w.Code)
}

func Test_Invalid_Token_Rejected(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)

	w := env.do(t, "GET", "/chat-fm/channels", nil, "garbage")
	req.Equal(http.StatusUnauthorized, w.Code)
}

func Test_Module_Claim_Enforced_Without_Open_Access(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, func(cfg *config.Config) { cfg.OpenAccess = false })

	denied, err := auth.Token(env.cfg, "u-alice", "Alice", "", false)
	req.NoError(err)
	w := env.do(t, "GET", "/chat-fm/channels", nil, denied)
	req.Equal(http.StatusForbidden, w.Code)

	granted, err := auth.Token(env.cfg, "u-alice", "Alice", "", true)
	req.NoError(err)
	w = env.do(t, "GET", "/chat-fm/channels", nil, granted)
	req.Equal(http.StatusOK, w.Code)
}

func Test_Preview_Top_Clamped(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")

	for i := 0; i < 12; i++ {
		w := env.do(t, "POST", "/chat-fm/channels", gin.H{"name": fmt.Sprintf("room %d", i), "type": "private"}, alice)
		req.Equal(http.StatusCreated, w.Code)
	}

	// Oversized top is capped, everything fits under the cap here.
	w := env.do(t, "GET", "/chat-fm/channels/preview?top=5000", nil, alice)
	req.Equal(http.StatusOK, w.Code)
	req.Len(values(t, w), 12)

	// Garbage and negative input fall back to the default page size.
	w = env.do(t, "GET", "/chat-fm/channels/preview?top=abc", nil, alice)
	req.Equal(http.StatusOK, w.Code)
	req.Len(values(t, w), 10)

	w = env.do(t, "GET", "/chat-fm/channels/preview?top=-3", nil, alice)
	req.Equal(http.StatusOK, w.Code)
	req.Len(values(t, w), 10)
}

func Test_Expand_Channel_Members(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t, nil)
	alice := env.token(t, "u-alice", "Alice")
	req.NoError(env.users.Upsert(model.User{ID: "u-bob", FirstName: "Bob", LastName: "Burns"}))

	w := env.do(t, "POST", "/chat-fm/channels", gin.H{
		"name": "ops", "type": "private",
		"users": []gin.H{{"user": "u-bob"}},
	}, alice)
	id := decode(t, w)["id"].(string)

	w = env.do(t, "GET", "/chat-fm/channels/"+id+"?expand=users.user,owner", nil, alice)
	req.Equal(http.StatusOK, w.Code)
	body := decode(t, w)

	members := body["users"].([]any)
	req.Len(members, 1)
	member := members[0].(map[string]any)
	user := member["user"].(map[string]any)
	req.Equal("Bob", user["first_name"])

	// The owner has no directory row, so the reference stays an id.
	req.Equal("u-alice", body["owner"])
}
