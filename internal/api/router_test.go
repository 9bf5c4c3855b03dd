package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/isdelr/blog-admin/internal/auth"
	"github.com/isdelr/blog-admin/internal/config"
	"github.com/isdelr/blog-admin/internal/database"
	"github.com/isdelr/blog-admin/internal/models"
	"github.com/isdelr/blog-admin/internal/services"
	"github.com/isdelr/blog-admin/internal/views"
	"github.com/isdelr/blog-admin/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	ts       *httptest.Server
	handler  http.Handler
	client   *http.Client
	tokens   *auth.Manager
	users    *services.UserService
	posts    *services.PostService
	messages *services.MessageService
}

func setupTestServer(t *testing.T, publicMessages bool) *testEnv {
	t.Helper()

	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	renderer, err := views.New()
	require.NoError(t, err)

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	cfg := &config.Config{
		JWTSecret:          "test-secret",
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		PublicMessageList:  publicMessages,
	}
	env := &testEnv{
		tokens:   auth.NewManager(cfg.JWTSecret, 0, false),
		users:    services.NewUserService(db),
		posts:    services.NewPostService(db),
		messages: services.NewMessageService(db),
	}

	router := NewRouter(cfg, zerolog.Nop(), env.tokens, renderer, hub, env.users, env.posts, env.messages)
	env.handler = router
	env.ts = httptest.NewServer(router)
	t.Cleanup(env.ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	env.client = env.ts.Client()
	env.client.Jar = jar
	// Inspect redirects instead of following them.
	env.client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return env
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := e.client.PostForm(e.ts.URL+path, form)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) postJSON(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := e.client.Post(e.ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.ts.URL + path)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) delete(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, e.ts.URL+path, nil)
	require.NoError(t, err)
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	return resp
}

// serveAs runs a request straight through the router with a session
// cookie for an admin user.
func (e *testEnv) serveAs(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	token, err := e.tokens.GenerateJWT(models.User{ID: "admin-1", IsAdmin: true})
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, username, password string) {
	t.Helper()
	_, err := e.users.CreateUser(context.Background(), username, password, true)
	require.NoError(t, err)

	resp := e.postForm(t, "/admin", url.Values{"username": {username}, "password": {password}})
	readBody(t, resp)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestLoginPage(t *testing.T) {
	env := setupTestServer(t, false)

	resp := env.get(t, "/admin")
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `action="/admin"`)
}

func TestRegisterThenLogin(t *testing.T) {
	env := setupTestServer(t, false)

	resp := env.postJSON(t, "/register", `{"username":"a","password":"x"}`)
	body := readBody(t, resp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Message string                 `json:"message"`
		User    map[string]interface{} `json:"user"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	assert.Equal(t, "User Created", created.Message)
	assert.Equal(t, "a", created.User["username"])
	assert.NotContains(t, body, "$2a$", "hash must not be returned")
	assert.NotContains(t, strings.ToLower(body), "password")

	resp = env.postForm(t, "/admin", url.Values{"username": {"a"}, "password": {"x"}})
	readBody(t, resp)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	var token *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			token = c
		}
	}
	require.NotNil(t, token, "login must set the session cookie")
	assert.True(t, token.HttpOnly)

	resp = env.get(t, "/dashboard")
	readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginAcceptsJSON(t *testing.T) {
	env := setupTestServer(t, false)
	_, err := env.users.CreateUser(context.Background(), "json", "pw", false)
	require.NoError(t, err)

	resp := env.postJSON(t, "/admin", `{"username":"json","password":"pw"}`)
	readBody(t, resp)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	env := setupTestServer(t, false)
	_, err := env.users.CreateUser(context.Background(), "a", "right", false)
	require.NoError(t, err)

	wrong := env.postJSON(t, "/admin", `{"username":"a","password":"wrong"}`)
	wrongBody := readBody(t, wrong)
	unknown := env.postJSON(t, "/admin", `{"username":"ghost","password":"wrong"}`)
	unknownBody := readBody(t, unknown)

	assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, unknown.StatusCode)
	assert.JSONEq(t, `{"message":"Invalid credentials"}`, wrongBody)
	assert.Equal(t, wrongBody, unknownBody)
	assert.Empty(t, wrong.Cookies())
}

func TestRegisterDuplicate(t *testing.T) {
	env := setupTestServer(t, false)

	first := env.postJSON(t, "/register", `{"username":"a","password":"x"}`)
	readBody(t, first)
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second := env.postJSON(t, "/register", `{"username":"a","password":"x"}`)
	body := readBody(t, second)
	assert.Equal(t, http.StatusConflict, second.StatusCode)
	assert.JSONEq(t, `{"message":"User already in use"}`, body)

	n, err := env.users.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegisterValidation(t *testing.T) {
	env := setupTestServer(t, false)

	resp := env.postJSON(t, "/register", `{"username":"","password":"x"}`)
	readBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.postJSON(t, "/register", `not json`)
	readBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.postForm(t, "/register", url.Values{"username": {"long"}, "password": {strings.Repeat("p", 80)}})
	body := readBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Password is too long"}`, body)

	n, err := env.users.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := setupTestServer(t, false)
	post, err := env.posts.CreatePost(context.Background(), "Keep", "me")
	require.NoError(t, err)

	requests := []struct {
		method string
		path   string
		form   url.Values
	}{
		{http.MethodGet, "/dashboard", nil},
		{http.MethodGet, "/add-post", nil},
		{http.MethodPost, "/add-post", url.Values{"title": {"Nope"}, "body": {"x"}}},
		{http.MethodGet, "/edit-post/" + post.ID, nil},
		{http.MethodPost, "/edit-post/" + post.ID, url.Values{"title": {"Changed"}, "body": {"x"}}},
		{http.MethodDelete, "/delete-post/" + post.ID, nil},
		{http.MethodPost, "/delete-post/" + post.ID, url.Values{"_method": {"DELETE"}}},
		{http.MethodGet, "/admin/messages", nil},
		{http.MethodGet, "/admin/messages/ws", nil},
	}

	for _, rr := range requests {
		t.Run(rr.method+" "+rr.path, func(t *testing.T) {
			var body io.Reader
			if rr.form != nil {
				body = strings.NewReader(rr.form.Encode())
			}
			req, err := http.NewRequest(rr.method, env.ts.URL+rr.path, body)
			require.NoError(t, err)
			if rr.form != nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "forged.token.value"})

			resp, err := env.client.Do(req)
			require.NoError(t, err)
			respBody := readBody(t, resp)

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.JSONEq(t, `{"message":"Unauthorized"}`, respBody)
		})
	}

	posts, err := env.posts.GetAllPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1, "no post may be created or deleted")
	assert.Equal(t, "Keep", posts[0].Title)
}

func TestPostCRUD(t *testing.T) {
	env := setupTestServer(t, false)
	env.login(t, "admin", "pw")
	ctx := context.Background()

	resp := env.get(t, "/add-post")
	readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.postForm(t, "/add-post", url.Values{"title": {"Hello World"}, "body": {"First body"}})
	readBody(t, resp)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp = env.get(t, "/dashboard")
	body := readBody(t, resp)
	assert.Equal(t, 1, strings.Count(body, "Hello World"))

	posts, err := env.posts.GetAllPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	original := posts[0]

	resp = env.get(t, "/edit-post/"+original.ID)
	body = readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "First body")

	resp = env.postForm(t, "/edit-post/"+original.ID, url.Values{"title": {"Renamed"}, "body": {"Second body"}})
	readBody(t, resp)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/edit-post/"+original.ID, resp.Header.Get("Location"))

	updated, err := env.posts.GetPostByID(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "Second body", updated.Body)
	assert.True(t, original.CreatedAt.Equal(updated.CreatedAt))
	assert.False(t, updated.UpdatedAt.Before(original.UpdatedAt))

	resp = env.delete(t, "/delete-post/"+original.ID)
	readBody(t, resp)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp = env.delete(t, "/delete-post/"+original.ID)
	readBody(t, resp)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "repeat delete is a no-op")

	resp = env.get(t, "/dashboard")
	body = readBody(t, resp)
	assert.NotContains(t, body, "Renamed")
}

func TestDeleteViaMethodOverride(t *testing.T) {
	env := setupTestServer(t, false)
	env.login(t, "admin", "pw")
	post, err := env.posts.CreatePost(context.Background(), "Doomed", "")
	require.NoError(t, err)

	resp := env.postForm(t, "/delete-post/"+post.ID, url.Values{"_method": {"DELETE"}})
	readBody(t, resp)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, err = env.posts.GetPostByID(context.Background(), post.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestOversizedFormIsRejected(t *testing.T) {
	env := setupTestServer(t, false)
	ctx := context.Background()
	post, err := env.posts.CreatePost(ctx, "Keep title", "Keep body")
	require.NoError(t, err)

	huge := strings.Repeat("x", 2<<20)
	tests := []struct {
		path string
		form url.Values
	}{
		{"/edit-post/" + post.ID, url.Values{"title": {"New"}, "body": {huge}}},
		{"/add-post", url.Values{"title": {"New"}, "body": {huge}}},
		{"/contact", url.Values{"name": {"Ann"}, "email": {"a@example.com"}, "message": {huge}}},
		{"/delete-post/" + post.ID, url.Values{"_method": {"DELETE"}, "pad": {huge}}},
		{"/register", url.Values{"username": {"big"}, "password": {huge}}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			w := env.serveAs(t, req)
			assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		})
	}

	t.Run("json", func(t *testing.T) {
		body := `{"name":"Ann","email":"a@example.com","message":"` + huge + `"}`
		req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		w := env.serveAs(t, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	posts, err := env.posts.GetAllPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Keep title", posts[0].Title)
	assert.Equal(t, "Keep body", posts[0].Body)

	messages, err := env.messages.GetAllMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, messages)

	n, err := env.users.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMalformedOverrideFormIsRejected(t *testing.T) {
	env := setupTestServer(t, false)
	post, err := env.posts.CreatePost(context.Background(), "Keep", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/delete-post/"+post.ID, strings.NewReader("_method=DELETE&bad=%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := env.serveAs(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, err = env.posts.GetPostByID(context.Background(), post.ID)
	assert.NoError(t, err)
}

func TestEditMissingPost(t *testing.T) {
	env := setupTestServer(t, false)
	env.login(t, "admin", "pw")

	resp := env.get(t, "/edit-post/does-not-exist")
	readBody(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.postForm(t, "/edit-post/does-not-exist", url.Values{"title": {"x"}})
	readBody(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestContactAndMessageList(t *testing.T) {
	env := setupTestServer(t, false)

	for _, name := range []string{"Earlier Ann", "Later Bob"} {
		resp := env.postForm(t, "/contact", url.Values{
			"name":    {name},
			"email":   {"x@example.com"},
			"message": {"Hello from " + name},
		})
		body := readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Thank you for your message!", body)
	}

	resp := env.get(t, "/admin/messages")
	readBody(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "listing is gated by default")

	env.login(t, "admin", "pw")
	resp = env.get(t, "/admin/messages")
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "/admin/messages/ws", "signed-in admins get the live feed")

	later := strings.Index(body, "Later Bob")
	earlier := strings.Index(body, "Earlier Ann")
	require.NotEqual(t, -1, later)
	require.NotEqual(t, -1, earlier)
	assert.Less(t, later, earlier, "most recent message first")
}

func TestPublicMessageList(t *testing.T) {
	env := setupTestServer(t, true)

	resp := env.get(t, "/admin/messages")
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "/admin/messages/ws", "anonymous viewers cannot open the gated feed")

	env.login(t, "admin", "pw")
	resp = env.get(t, "/admin/messages")
	body = readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "/admin/messages/ws")
}

func TestLogout(t *testing.T) {
	env := setupTestServer(t, false)
	env.login(t, "admin", "pw")

	resp := env.get(t, "/logout")
	readBody(t, resp)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp = env.get(t, "/dashboard")
	readBody(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLiveMessageFeed(t *testing.T) {
	env := setupTestServer(t, false)

	token, err := env.tokens.GenerateJWT(models.User{ID: "admin-1", IsAdmin: true})
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/admin/messages/ws"
	header := http.Header{}
	header.Set("Cookie", auth.CookieName+"="+token)
	conn, resp, err := gws.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	received := make(chan websocket.Message, 1)
	go func() {
		var msg websocket.Message
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
	}()

	// The hub registers the client just after the handshake, so keep
	// submitting until the first notification arrives.
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case msg := <-received:
			assert.Equal(t, websocket.ActionMessageCreated, msg.Action)
			payload, ok := msg.Payload.(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, "Live", payload["name"])
			return
		case <-tick.C:
			r := env.postForm(t, "/contact", url.Values{"name": {"Live"}, "email": {"l@example.com"}, "message": {"ping"}})
			readBody(t, r)
		case <-deadline:
			t.Fatal("no websocket notification received")
		}
	}
}
