package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dosada05/popularity-cup/brackets"
	"github.com/Dosada05/popularity-cup/chat"
	"github.com/Dosada05/popularity-cup/handlers"
	"github.com/Dosada05/popularity-cup/models"
	"github.com/Dosada05/popularity-cup/repositories"
	"github.com/Dosada05/popularity-cup/services"
	"github.com/Dosada05/popularity-cup/storage"
	"github.com/Dosada05/popularity-cup/utils"
)

const (
	testSecret   = "test-secret"
	testStaffKey = "letmein"
	testChannel  = "cup"
)

type apiFixture struct {
	server *httptest.Server
	board  *chat.Board
	hub    *brackets.Hub
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hash, err := utils.HashPasswordWithCost(testStaffKey, bcrypt.MinCost)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	hub := brackets.NewHub(logger)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		_ = hub.Run(ctx)
	}()

	store := storage.NewMemoryStore()
	repo := repositories.NewTournamentRepository(store, "", 3, logger)
	users := repositories.NewUserRepository(store, "", 3, logger)
	engine := brackets.NewSingleElimination(7)
	board := chat.NewBoard(hub, logger)
	matches := services.NewMatchService(repo, engine, board, services.MatchServiceConfig{ChannelID: testChannel}, logger)
	tournaments := services.NewTournamentService(repo, engine, matches, nil, board, testChannel, logger)
	auth := services.NewAuthService(users, services.AuthConfig{
		JWTSecret:    testSecret,
		StaffKeyHash: hash,
		BcryptCost:   bcrypt.MinCost,
	}, logger)

	router := chi.NewRouter()
	SetupRoutes(router, Options{JWTSecret: testSecret, AllowedOrigins: []string{"*"}},
		handlers.NewAuthHandler(auth),
		handlers.NewItemHandler(services.NewItemService(repo, logger)),
		handlers.NewTournamentHandler(tournaments),
		handlers.NewReactionHandler(board, tournaments),
		handlers.NewWebSocketHandler(hub, nil),
	)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		cancel()
		<-hubDone
		srv.Close()
	})
	return &apiFixture{server: srv, board: board, hub: hub}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		js, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(js)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(bytes.TrimSpace(raw)) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func passwordFor(userID string) string {
	return "pass-" + userID + "-secret"
}

// token регистрирует пользователя (если нужно) и входит под ним.
func (f *apiFixture) token(t *testing.T, userID, staffKey string) string {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/auth/register", "", models.RegisterInput{UserID: userID, Password: passwordFor(userID)})
	require.Contains(t, []int{http.StatusCreated, http.StatusConflict}, status, body)

	status, body = f.do(t, http.MethodPost, "/auth/token", "",
		models.Credentials{UserID: userID, Password: passwordFor(userID), StaffKey: staffKey})
	require.Equal(t, http.StatusOK, status, body)
	token, ok := body["token"].(string)
	require.True(t, ok)
	return token
}

func TestAuth_TokenIssuance(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(t, http.MethodPost, "/auth/register", "", models.RegisterInput{UserID: "mod", DisplayName: "Moderator", Password: passwordFor("mod")})
	require.Equal(t, http.StatusCreated, status, body)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "Moderator", user["display_name"])
	assert.Equal(t, string(models.RoleMember), user["role"])
	assert.NotContains(t, user, "password_hash")

	status, body = f.do(t, http.MethodPost, "/auth/token", "", models.Credentials{UserID: "mod", Password: passwordFor("mod"), StaffKey: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotEmpty(t, body["error"])

	status, _ = f.do(t, http.MethodPost, "/auth/token", "", models.Credentials{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, http.MethodPost, "/auth/token", "", models.Credentials{UserID: "mod", Password: passwordFor("mod"), StaffKey: testStaffKey})
	require.Equal(t, http.StatusOK, status)
	actor := body["actor"].(map[string]interface{})
	assert.Equal(t, string(models.RoleStaff), actor["role"])
	assert.Equal(t, "Moderator", actor["display_name"])

	status, body = f.do(t, http.MethodPost, "/auth/token", "", models.Credentials{UserID: "mod", Password: passwordFor("mod")})
	require.Equal(t, http.StatusOK, status)
	actor = body["actor"].(map[string]interface{})
	assert.Equal(t, string(models.RoleMember), actor["role"], "staff role needs the key on every login")
}

func TestAuth_NoTokenWithoutPassword(t *testing.T) {
	f := newAPIFixture(t)
	alice := f.token(t, "alice", "")
	require.NotEmpty(t, alice)

	cases := []struct {
		name  string
		creds models.Credentials
	}{
		{"unregistered user", models.Credentials{UserID: "mallory", Password: passwordFor("mallory")}},
		{"wrong password", models.Credentials{UserID: "alice", Password: "not-alices-password"}},
		{"someone else's password", models.Credentials{UserID: "alice", Password: passwordFor("mallory")}},
		{"staff key alone", models.Credentials{UserID: "mallory", Password: "whatever-pass", StaffKey: testStaffKey}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := f.do(t, http.MethodPost, "/auth/token", "", tc.creds)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Nil(t, body["token"])
		})
	}

	// Повторная регистрация не перезаписывает чужой пароль.
	status, _ := f.do(t, http.MethodPost, "/auth/register", "", models.RegisterInput{UserID: "alice", Password: "mallory-takes-over"})
	assert.Equal(t, http.StatusConflict, status)
	status, _ = f.do(t, http.MethodPost, "/auth/token", "", models.Credentials{UserID: "alice", Password: "mallory-takes-over"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(t, http.MethodPost, "/auth/register", "", models.RegisterInput{UserID: "bob", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRoutes_RequireToken(t *testing.T) {
	f := newAPIFixture(t)

	status, _ := f.do(t, http.MethodGet, "/items", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(t, http.MethodGet, "/items", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)

	resp, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoutes_StaffOnly(t *testing.T) {
	f := newAPIFixture(t)
	member := f.token(t, "fan", "")

	for _, path := range []string{"/tournament/start", "/tournament/advance", "/tournament/close", "/tournament/end", "/tournament/reset"} {
		status, _ := f.do(t, http.MethodPost, path, member, map[string]string{"title": "x"})
		assert.Equal(t, http.StatusForbidden, status, path)
	}
	status, _ := f.do(t, http.MethodDelete, "/items", member, map[string]string{"items": "a"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = f.do(t, http.MethodDelete, "/history?title=x", member, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestItems_MemberSubmitsOnce(t *testing.T) {
	f := newAPIFixture(t)
	member := f.token(t, "fan", "")

	status, body := f.do(t, http.MethodPost, "/items", member, map[string]string{"items": "Pizza"})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, []interface{}{"Pizza"}, body["added"])

	status, _ = f.do(t, http.MethodPost, "/items", member, map[string]string{"items": "Tacos"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = f.do(t, http.MethodGet, "/items", member, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])
}

func TestTournament_StartOnNonFullPool(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.token(t, "mod", testStaffKey)

	status, _ := f.do(t, http.MethodPost, "/tournament/start", staff, map[string]string{"title": "Snacks"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/tournament/advance", staff, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTournament_VoteCloseAdvance(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.token(t, "mod", testStaffKey)

	names := make([]string, models.PoolSize)
	for i := range names {
		names[i] = fmt.Sprintf("Item %02d", i+1)
	}
	status, body := f.do(t, http.MethodPost, "/items", staff, map[string]string{"items": strings.Join(names, ",")})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = f.do(t, http.MethodPost, "/tournament/start", staff, map[string]string{"title": "Snacks"})
	require.Equal(t, http.StatusCreated, status, body)
	match := body["match"].(map[string]interface{})
	messageID := match["message_id"].(string)
	require.NotEmpty(t, messageID)
	reactionsPath := fmt.Sprintf("/channels/%s/messages/%s/reactions", testChannel, messageID)

	status, _ = f.do(t, http.MethodPost, "/tournament/start", staff, map[string]string{"title": "Again"})
	assert.Equal(t, http.StatusConflict, status)

	votes := []struct {
		user  string
		emoji string
	}{
		{"fan-1", models.EmojiVoteA},
		{"fan-2", models.EmojiVoteA},
		{"fan-3", models.EmojiVoteB},
		// Проголосовал за обоих: голос не засчитывается.
		{"fan-4", models.EmojiVoteA},
		{"fan-4", models.EmojiVoteB},
	}
	for _, v := range votes {
		token := f.token(t, v.user, "")
		status, body := f.do(t, http.MethodPut, reactionsPath, token, map[string]string{"emoji": v.emoji})
		require.Equal(t, http.StatusNoContent, status, body)
	}

	msg, err := f.board.Message(testChannel, messageID)
	require.NoError(t, err)
	require.NotNil(t, msg.Match)
	assert.Equal(t, 2, msg.Match.AVotes)
	assert.Equal(t, 1, msg.Match.BVotes)

	status, body = f.do(t, http.MethodPost, "/tournament/close", staff, nil)
	require.Equal(t, http.StatusOK, status, body)
	counts := body["locked_counts"].(map[string]interface{})
	assert.EqualValues(t, 2, counts["a"])
	assert.EqualValues(t, 1, counts["b"])

	// Голоса после закрытия не меняют итог.
	late := f.token(t, "fan-5", "")
	status, _ = f.do(t, http.MethodPut, reactionsPath, late, map[string]string{"emoji": models.EmojiVoteB})
	require.Equal(t, http.StatusNoContent, status)

	status, body = f.do(t, http.MethodPost, "/tournament/advance", staff, nil)
	require.Equal(t, http.StatusOK, status, body)
	advance := body["advance"].(map[string]interface{})
	assert.Equal(t, string(services.AdvanceResolved), advance["outcome"])
	result := advance["result"].(map[string]interface{})
	assert.Equal(t, match["a"], result["winner"])
	assert.EqualValues(t, 2, result["a_votes"])
	assert.EqualValues(t, 1, result["b_votes"])
	assert.NotNil(t, advance["next_match"])

	status, body = f.do(t, http.MethodGet, "/tournament/scoreboard", late, nil)
	require.Equal(t, http.StatusOK, status)
	scoreboard := body["scoreboard"].(map[string]interface{})
	assert.Len(t, scoreboard["finished"], 1)
	assert.Equal(t, true, scoreboard["running"])

	status, _ = f.do(t, http.MethodPut, "/channels/cup/messages/missing/reactions", late, map[string]string{"emoji": models.EmojiVoteA})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHistory_DeleteRequiresTitle(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.token(t, "mod", testStaffKey)

	status, _ := f.do(t, http.MethodDelete, "/history", staff, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodDelete, "/history?title=Nothing", staff, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body := f.do(t, http.MethodGet, "/history", staff, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["history"])
}

func TestWebSocket_ReceivesMatchUpdates(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.token(t, "mod", testStaffKey)
	fan := f.token(t, "fan-1", "")

	names := make([]string, models.PoolSize)
	for i := range names {
		names[i] = fmt.Sprintf("Item %02d", i+1)
	}
	status, body := f.do(t, http.MethodPost, "/items", staff, map[string]string{"items": strings.Join(names, ",")})
	require.Equal(t, http.StatusCreated, status, body)
	status, body = f.do(t, http.MethodPost, "/tournament/start", staff, map[string]string{"title": "Snacks"})
	require.Equal(t, http.StatusCreated, status, body)
	messageID := body["match"].(map[string]interface{})["message_id"].(string)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/channels/" + testChannel
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	require.Eventually(t, func() bool { return f.hub.RoomSize(testChannel) == 1 }, time.Second, 10*time.Millisecond)

	reactionsPath := fmt.Sprintf("/channels/%s/messages/%s/reactions", testChannel, messageID)
	status, _ = f.do(t, http.MethodPut, reactionsPath, fan, map[string]string{"emoji": models.EmojiVoteA})
	require.Equal(t, http.StatusNoContent, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var seen []string
	for {
		var msg struct {
			Type    string          `json:"type"`
			RoomID  string          `json:"room_id"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&msg), "events so far: %v", seen)
		seen = append(seen, msg.Type)
		if msg.Type != brackets.MessageMatchUpdated {
			continue
		}

		var payload chat.Message
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, testChannel, msg.RoomID)
		assert.Equal(t, messageID, payload.ID)
		require.NotNil(t, payload.Match)
		assert.Equal(t, 1, payload.Match.AVotes)
		assert.Equal(t, 0, payload.Match.BVotes)
		break
	}
	assert.Equal(t, brackets.MessageReaction, seen[0], "the raw reaction event precedes the refreshed match")

	// Чужой канал не получает событий кубка.
	other, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.server.URL, "http")+"/ws/channels/elsewhere", nil)
	require.NoError(t, err)
	defer other.Close()
	require.Eventually(t, func() bool { return f.hub.RoomSize("elsewhere") == 1 }, time.Second, 10*time.Millisecond)
	status, _ = f.do(t, http.MethodDelete, reactionsPath, fan, map[string]string{"emoji": models.EmojiVoteA})
	require.Equal(t, http.StatusNoContent, status)
	require.NoError(t, other.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err)
}
