package blogadmin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eringen/blogadmin/objectstore"
	"github.com/eringen/blogadmin/posts"
)

const testDocKey = "blog/posts.json"

var testNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

var errBoom = errors.New("boom")

// flakyStore wraps a real client and fails Puts of selected keys.
type flakyStore struct {
	objectstore.Client

	mu      sync.Mutex
	failPut map[string]error
	puts    []string
}

func (s *flakyStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	s.mu.Lock()
	err := s.failPut[key]
	if err == nil {
		s.puts = append(s.puts, key)
	}
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.Client.Put(ctx, key, body, contentType)
}

func (s *flakyStore) failOn(key string, err error) {
	s.mu.Lock()
	s.failPut[key] = err
	s.mu.Unlock()
}

func (s *flakyStore) putKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.puts...)
}

type testServer struct {
	app    *App
	srv    *httptest.Server
	client *http.Client
	jar    *cookiejar.Jar
	store  *flakyStore
	logs   *observer.ObservedLogs
}

func newTestServer(t *testing.T, mutate ...func(*Config)) *testServer {
	t.Helper()

	backend := s3mem.New()
	require.NoError(t, backend.CreateBucket("blog"))
	fake := httptest.NewServer(gofakes3.New(backend).Server())
	t.Cleanup(fake.Close)

	s3c, err := objectstore.NewS3(objectstore.S3Config{
		Bucket:          "blog",
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Endpoint:        fake.URL,
	})
	require.NoError(t, err)
	store := &flakyStore{Client: s3c, failPut: make(map[string]error)}

	cfg := Config{
		BucketName:      "blog",
		FileKey:         testDocKey,
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		GoogleClientID:  "client-123",
		AllowedEmail:    "a@x.com",
		AllowedName:     "Ada",
		SessionSecret:   "0123456789abcdef0123456789abcdef",
	}
	for _, m := range mutate {
		m(&cfg)
	}

	core, logs := observer.New(zap.DebugLevel)
	app := New(cfg, ViewFuncs{},
		WithStore(store),
		WithLogger(zap.New(core)),
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, app.Setup(context.Background()))

	srv := httptest.NewServer(app.Echo)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testServer{app: app, srv: srv, client: client, jar: jar, store: store, logs: logs}
}

type response struct {
	code     int
	body     string
	location string
	cookies  []*http.Cookie
}

func (ts *testServer) do(t *testing.T, req *http.Request) response {
	t.Helper()
	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{code: resp.StatusCode, body: string(body), location: resp.Header.Get("Location"), cookies: resp.Cookies()}
}

func (ts *testServer) get(t *testing.T, path string) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+path, nil)
	require.NoError(t, err)
	return ts.do(t, req)
}

func (ts *testServer) postForm(t *testing.T, path string, form url.Values) response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.do(t, req)
}

func (ts *testServer) postMultipart(t *testing.T, path string, fields map[string]string, files map[string]upload) response {
	t.Helper()
	body, contentType := multipartBody(t, fields, files)
	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	return ts.do(t, req)
}

func (ts *testServer) cookie(name string) string {
	u, _ := url.Parse(ts.srv.URL)
	for _, c := range ts.jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// csrf returns the echo CSRF token, fetching a page first if needed.
func (ts *testServer) csrf(t *testing.T) string {
	t.Helper()
	if tok := ts.cookie("_csrf"); tok != "" {
		return tok
	}
	ts.get(t, "/healthz/")
	tok := ts.cookie("_csrf")
	require.NotEmpty(t, tok)
	return tok
}

func mintCredential(t *testing.T, email, given, family string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         "1234567890",
		"email":       email,
		"given_name":  given,
		"family_name": family,
	})
	raw, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func (ts *testServer) loginWith(t *testing.T, credential string) response {
	t.Helper()
	u, _ := url.Parse(ts.srv.URL)
	ts.jar.SetCookies(u, []*http.Cookie{{Name: googleCSRFName, Value: "g-token", Path: "/"}})
	return ts.postForm(t, "/auth/google/", url.Values{
		"credential":   {credential},
		googleCSRFName: {"g-token"},
	})
}

func (ts *testServer) login(t *testing.T) {
	t.Helper()
	resp := ts.loginWith(t, mintCredential(t, "a@x.com", "Ada", "Lovelace"))
	require.Equal(t, http.StatusSeeOther, resp.code)
	require.Equal(t, "/", resp.location)
}

func (ts *testServer) seed(t *testing.T, list ...posts.Post) {
	t.Helper()
	require.NoError(t, ts.app.Repo.ReplaceAll(context.Background(), list))
}

func (ts *testServer) listPosts(t *testing.T) []posts.Post {
	t.Helper()
	list, err := ts.app.Repo.ListPosts(context.Background())
	require.NoError(t, err)
	return list
}

type upload struct {
	name string
	body []byte
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]upload) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, f := range files {
		part, err := w.CreateFormFile(field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func toast(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return u.Query().Get("msg")
}

func TestIndexShowsLoginWhenSignedOut(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "Sign in")
	assert.Contains(t, resp.body, `data-client_id="client-123"`)
	assert.Contains(t, resp.body, "/auth/google/")
}

func TestLoginPageIgnoresUnknownToast(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/?msg="+url.QueryEscape("Your account is locked, call 555-0100"))
	assert.Equal(t, http.StatusOK, resp.code)
	assert.NotContains(t, resp.body, "555-0100")

	resp = ts.get(t, "/?msg="+url.QueryEscape(msgTooManyAttempts))
	assert.Contains(t, resp.body, msgTooManyAttempts)
}

func TestSessionCookieMaxAge(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.loginWith(t, mintCredential(t, "a@x.com", "Ada", "Lovelace"))
	require.Equal(t, http.StatusSeeOther, resp.code)

	var found bool
	for _, c := range resp.cookies {
		if c.Name == sessionName {
			found = true
			assert.Equal(t, int(sessionMaxAge/time.Second), c.MaxAge)
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found, "session cookie not set")
}

func TestGoogleLoginAccepted(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)
	assert.Equal(t, 1, ts.app.Sessions.Len())

	resp := ts.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "Ada Lovelace")
	assert.Contains(t, resp.body, "New post")
}

func TestGoogleLoginAcceptsNameOnly(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.loginWith(t, mintCredential(t, "someone@else.com", "Ada", "Byron"))
	assert.Equal(t, http.StatusSeeOther, resp.code)
	assert.Equal(t, 1, ts.app.Sessions.Len())
}

func TestGoogleLoginRejected(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.loginWith(t, mintCredential(t, "b@y.com", "Bob", "Smith"))
	assert.Equal(t, http.StatusUnauthorized, resp.code)
	assert.Contains(t, resp.body, "Invalid credentials")
	assert.Equal(t, 0, ts.app.Sessions.Len())

	rejected := ts.logs.FilterMessage("login rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, "b@y.com", rejected[0].ContextMap()["email"])
}

func TestGoogleLoginMalformedCredential(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.loginWith(t, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.code)
	assert.Contains(t, resp.body, "Login Failed")
}

func TestGoogleLoginRequiresDoubleSubmitCookie(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.postForm(t, "/auth/google/", url.Values{
		"credential":   {mintCredential(t, "a@x.com", "Ada", "Lovelace")},
		googleCSRFName: {"g-token"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.code)
	assert.Contains(t, resp.body, "Login Failed")
	assert.Equal(t, 0, ts.app.Sessions.Len())
}

func TestGoogleLoginRateLimited(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.LoginAttempts = 2 })

	for i := 0; i < 2; i++ {
		resp := ts.loginWith(t, mintCredential(t, "b@y.com", "Bob", ""))
		require.Equal(t, http.StatusUnauthorized, resp.code)
	}
	resp := ts.loginWith(t, mintCredential(t, "a@x.com", "Ada", "Lovelace"))
	assert.Equal(t, http.StatusTooManyRequests, resp.code)
	assert.Contains(t, resp.body, "Too many login attempts")
}

func TestPostRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/posts/new/", "/posts/1/", "/posts/1/delete/"} {
		resp := ts.get(t, path)
		assert.Equal(t, http.StatusSeeOther, resp.code, path)
		assert.Equal(t, "/", resp.location, path)
	}
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	resp := ts.postForm(t, "/logout/", url.Values{"_csrf": {ts.csrf(t)}})
	assert.Equal(t, http.StatusSeeOther, resp.code)
	assert.Equal(t, 0, ts.app.Sessions.Len())

	resp = ts.get(t, "/")
	assert.Contains(t, resp.body, "Sign in")
}

func TestDashboardFiltersByTitle(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t,
		posts.Post{ID: 1, Title: "Go Tips", Slug: "go-tips", IntroText: "x", Sections: []posts.Section{}},
		posts.Post{ID: 2, Title: "Rust notes", Slug: "rust-notes", IntroText: "y", Sections: []posts.Section{}},
	)
	ts.login(t)

	resp := ts.get(t, "/?q=go")
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "Go Tips")
	assert.NotContains(t, resp.body, "Rust notes")
	assert.Contains(t, resp.body, "(2)")
}

func TestDashboardShowsListingError(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.store.Client.Put(context.Background(), testDocKey, []byte(`{"not":"a list"}`), "application/json")
	require.NoError(t, err)
	ts.login(t)

	resp := ts.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "malformed")
}

func TestDashboardToastFromQuery(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t)
	ts.login(t)

	resp := ts.get(t, "/?msg="+url.QueryEscape(msgPostDeleted))
	assert.Contains(t, resp.body, msgPostDeleted)
}

func TestCreatePost(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	resp := ts.postMultipart(t, "/posts/", map[string]string{
		"_csrf":         ts.csrf(t),
		"title":         "Hello World, Foo!",
		"introText":     "An **intro**",
		"sections":      "1",
		"subHeading-0":  "Part one",
		"sectionText-0": "Body text",
		"action":        "create",
	}, map[string]upload{
		"headerImage": {name: "head.png", body: pngBytes(t)},
		"picture-0":   {name: "pic.png", body: pngBytes(t)},
	})
	require.Equal(t, http.StatusSeeOther, resp.code, resp.body)
	assert.Equal(t, msgPostCreated, toast(resp.location))

	list := ts.listPosts(t)
	require.Len(t, list, 1)
	p := list[0]
	assert.Equal(t, 1, p.ID)
	assert.Equal(t, "hello-world-foo", p.Slug)
	assert.Equal(t, testNow, p.CreatedAt)
	assert.Equal(t, ts.store.URL("images/head.png"), p.HeaderImage)
	require.Len(t, p.Sections, 1)
	assert.Equal(t, 1, p.Sections[0].ID)
	assert.Equal(t, "Part one", p.Sections[0].SubHeading)
	assert.Equal(t, ts.store.URL("images/pic.png"), p.Sections[0].Picture)

	assert.Equal(t, []string{"images/head.png", "images/pic.png", testDocKey}, ts.store.putKeys())
	img, err := ts.store.Get(context.Background(), "images/head.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)

	page := ts.get(t, "/")
	assert.Contains(t, page.body, "Hello World, Foo!")
}

func TestCreatePostValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	resp := ts.postMultipart(t, "/posts/", map[string]string{
		"_csrf":     ts.csrf(t),
		"title":     "  ",
		"introText": "kept text",
		"action":    "create",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.code)
	assert.Contains(t, resp.body, "Title is required")
	assert.Contains(t, resp.body, "kept text")
	assert.Empty(t, ts.store.putKeys())
}

func TestCreatePostRejectsNonImage(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	resp := ts.postMultipart(t, "/posts/", map[string]string{
		"_csrf":     ts.csrf(t),
		"title":     "Title",
		"introText": "Intro",
		"action":    "create",
	}, map[string]upload{
		"headerImage": {name: "notes.txt", body: []byte("just text")},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.code)
	assert.Contains(t, resp.body, "Invalid image")
	assert.Empty(t, ts.store.putKeys())
}

func TestCreatePostSectionActions(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)
	token := ts.csrf(t)

	resp := ts.postMultipart(t, "/posts/", map[string]string{
		"_csrf":  token,
		"title":  "Draft",
		"action": "add-section",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, `name="subHeading-0"`)
	assert.Contains(t, resp.body, `value="Draft"`)

	resp = ts.postMultipart(t, "/posts/", map[string]string{
		"_csrf":        token,
		"sections":     "2",
		"subHeading-0": "first",
		"subHeading-1": "second",
		"action":       "remove-section-0",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, `value="second"`)
	assert.NotContains(t, resp.body, `value="first"`)
	assert.NotContains(t, resp.body, `name="subHeading-1"`)
	assert.Empty(t, ts.store.putKeys())
}

func TestCreatePostUploadFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)
	ts.store.failOn("images/head.png", errBoom)

	resp := ts.postMultipart(t, "/posts/", map[string]string{
		"_csrf":     ts.csrf(t),
		"title":     "Title",
		"introText": "Intro",
		"action":    "create",
	}, map[string]upload{
		"headerImage": {name: "head.png", body: pngBytes(t)},
	})
	assert.Equal(t, http.StatusBadGateway, resp.code)
	assert.Contains(t, resp.body, msgUploadFailed)

	_, err := ts.store.Stat(context.Background(), testDocKey)
	assert.True(t, objectstore.IsNotFound(err), "document must not be written")
	assert.Equal(t, 1, ts.logs.FilterMessage("create post").Len())
}

func TestCreatePostAccessDenied(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)
	ts.store.failOn(testDocKey, fmt.Errorf("objectstore: s3 put: %w", objectstore.ErrAccessDenied))

	resp := ts.postMultipart(t, "/posts/", map[string]string{
		"_csrf":     ts.csrf(t),
		"title":     "Title",
		"introText": "Intro",
		"action":    "create",
	}, nil)
	assert.Equal(t, http.StatusBadGateway, resp.code)
	assert.Contains(t, resp.body, msgAuthFailed)
}

func TestCreatePostWithoutCSRFForbidden(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t)

	resp := ts.postMultipart(t, "/posts/", map[string]string{"title": "T", "introText": "I"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.code)
}

func TestShowPost(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, posts.Post{
		ID: 1, Title: "Trip", Slug: "trip", IntroText: "We went **far**.",
		Sections: []posts.Section{{ID: 1, SubHeading: "Day one", SectionText: "rain"}},
	})
	ts.login(t)

	resp := ts.get(t, "/posts/1/")
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "<strong>far</strong>")
	assert.Contains(t, resp.body, "Day one")

	for _, path := range []string{"/posts/99/", "/posts/abc/"} {
		resp = ts.get(t, path)
		assert.Equal(t, http.StatusNotFound, resp.code, path)
		assert.Contains(t, resp.body, "Page not found.", path)
	}
}

func TestDeletePost(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t,
		posts.Post{ID: 1, Title: "Keep", Slug: "keep", IntroText: "a", Sections: []posts.Section{}},
		posts.Post{ID: 2, Title: "Drop", Slug: "drop", IntroText: "b", Sections: []posts.Section{}},
	)
	ts.login(t)

	resp := ts.get(t, "/posts/2/delete/")
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, "Are you sure?")
	assert.Contains(t, resp.body, "Drop")

	resp = ts.postForm(t, "/posts/2/delete/", url.Values{"_csrf": {ts.csrf(t)}})
	assert.Equal(t, http.StatusSeeOther, resp.code)
	assert.Equal(t, msgPostDeleted, toast(resp.location))

	list := ts.listPosts(t)
	require.Len(t, list, 1)
	assert.Equal(t, "Keep", list[0].Title)
}

func TestDeletePostStorageFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, posts.Post{ID: 1, Title: "Keep", Slug: "keep", IntroText: "a", Sections: []posts.Section{}})
	ts.login(t)
	ts.store.failOn(testDocKey, errBoom)

	resp := ts.postForm(t, "/posts/1/delete/", url.Values{"_csrf": {ts.csrf(t)}})
	assert.Equal(t, http.StatusSeeOther, resp.code)
	assert.Equal(t, msgUploadFailed, toast(resp.location))
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/healthz/")
	assert.Equal(t, http.StatusOK, resp.code)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, resp.body)
}

func TestTrailingSlashRedirect(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/posts/new")
	assert.Equal(t, http.StatusMovedPermanently, resp.code)
	assert.Equal(t, "/posts/new/", resp.location)
}

func TestStaticStylesheet(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/public/style.css")
	assert.Equal(t, http.StatusOK, resp.code)
	assert.Contains(t, resp.body, ".toast")
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/nope/")
	assert.Equal(t, http.StatusNotFound, resp.code)
	assert.Contains(t, resp.body, "Page not found.")
}
