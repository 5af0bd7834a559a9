package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/tinoosan/filmorate/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type filmResp struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ReleaseDate string `json:"releaseDate"`
	Duration    int    `json:"duration"`
	Mpa         struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"mpa"`
	Genres []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
	Likes []int64 `json:"likes"`
}

type userResp struct {
	ID       int64   `json:"id"`
	Email    string  `json:"email"`
	Login    string  `json:"login"`
	Name     string  `json:"name"`
	Birthday *string `json:"birthday"`
	Friends  []int64 `json:"friends"`
}

type errResp struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Errors map[string]string `json:"errors"`
}

func setup(t *testing.T) (*memory.Store, http.Handler) {
	t.Helper()
	store := memory.New()
	h := New(store, store, store, testLogger()).Handler()
	return store, h
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func filmBody() map[string]any {
	return map[string]any{
		"name":        "nisi eiusmod",
		"description": "adipisicing",
		"releaseDate": "1967-03-25",
		"duration":    100,
		"mpa":         map[string]any{"id": 1},
	}
}

func userBody(login string) map[string]any {
	return map[string]any{
		"login":    login,
		"name":     "Nick Name",
		"email":    login + "@mail.ru",
		"birthday": "1946-08-20",
	}
}

func createUser(t *testing.T, h http.Handler, login string) userResp {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/users", userBody(login))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode[userResp](t, rec)
}

func createFilm(t *testing.T, h http.Handler, body map[string]any) filmResp {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/films", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create film: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	return decode[filmResp](t, rec)
}

func TestFilms_CreateGetUpdateDelete(t *testing.T) {
	_, h := setup(t)

	body := filmBody()
	body["genres"] = []map[string]any{{"id": 2}, {"id": 1}, {"id": 2}}
	f := createFilm(t, h, body)
	if f.ID != 1 || f.ReleaseDate != "1967-03-25" || f.Mpa.Name != "G" {
		t.Fatalf("unexpected film: %+v", f)
	}
	if len(f.Genres) != 2 || f.Genres[0].ID != 1 || f.Genres[1].Name != "Drama" {
		t.Fatalf("expected deduplicated sorted genres, got %+v", f.Genres)
	}
	if f.Likes == nil || len(f.Likes) != 0 {
		t.Fatalf("expected empty likes array, got %v", f.Likes)
	}

	rec := do(t, h, http.MethodGet, "/films/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	upd := filmBody()
	upd["id"] = f.ID
	upd["name"] = "Film Updated"
	upd["mpa"] = map[string]any{"id": 5}
	rec = do(t, h, http.MethodPut, "/films", upd)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[filmResp](t, rec)
	if got.Name != "Film Updated" || got.Mpa.Name != "NC-17" || len(got.Genres) != 0 {
		t.Fatalf("unexpected updated film: %+v", got)
	}

	upd["id"] = 9999
	rec = do(t, h, http.MethodPut, "/films", upd)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("update unknown: expected 404, got %d", rec.Code)
	}
	if e := decode[errResp](t, rec); e.Code != "not_found" {
		t.Fatalf("expected not_found code, got %+v", e)
	}

	delete(upd, "id")
	rec = do(t, h, http.MethodPut, "/films", upd)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("update without id: expected 400, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodDelete, "/films/1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/films/1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/films", nil)
	if list := decode[[]filmResp](t, rec); len(list) != 0 {
		t.Fatalf("expected empty list, got %+v", list)
	}
}

func TestFilms_Validation(t *testing.T) {
	_, h := setup(t)

	cases := []struct {
		name  string
		edit  func(b map[string]any)
		field string
	}{
		{"empty name", func(b map[string]any) { b["name"] = "" }, "name"},
		{"blank name", func(b map[string]any) { b["name"] = "   " }, "name"},
		{"long description", func(b map[string]any) { b["description"] = strings.Repeat("d", 201) }, "description"},
		{"early release", func(b map[string]any) { b["releaseDate"] = "1890-03-25" }, "releaseDate"},
		{"future release", func(b map[string]any) { b["releaseDate"] = time.Now().AddDate(2, 0, 0).Format("2006-01-02") }, "releaseDate"},
		{"bad date", func(b map[string]any) { b["releaseDate"] = "25.03.1967" }, "releaseDate"},
		{"negative duration", func(b map[string]any) { b["duration"] = -200 }, "duration"},
		{"missing mpa", func(b map[string]any) { delete(b, "mpa") }, "mpa"},
		{"zero genre id", func(b map[string]any) { b["genres"] = []map[string]any{{"id": 0}} }, "genres[0].id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := filmBody()
			tc.edit(b)
			rec := do(t, h, http.MethodPost, "/films", b)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			e := decode[errResp](t, rec)
			if e.Code != "validation_error" {
				t.Fatalf("expected validation_error, got %+v", e)
			}
			if _, ok := e.Errors[tc.field]; !ok {
				t.Fatalf("expected error on %q, got %+v", tc.field, e.Errors)
			}
		})
	}

	b := filmBody()
	b["releaseDate"] = "1895-12-28"
	b["description"] = strings.Repeat("d", 200)
	createFilm(t, h, b)
}

func TestFilms_UnknownReferences(t *testing.T) {
	_, h := setup(t)

	b := filmBody()
	b["mpa"] = map[string]any{"id": 99}
	if rec := do(t, h, http.MethodPost, "/films", b); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown mpa: expected 404, got %d", rec.Code)
	}
	b = filmBody()
	b["genres"] = []map[string]any{{"id": 99}}
	if rec := do(t, h, http.MethodPost, "/films", b); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown genre: expected 404, got %d", rec.Code)
	}
}

func TestFilms_LikesAndPopular(t *testing.T) {
	_, h := setup(t)

	u1 := createUser(t, h, "first")
	u2 := createUser(t, h, "second")
	f1 := createFilm(t, h, filmBody())
	f2 := createFilm(t, h, filmBody())
	f3 := createFilm(t, h, filmBody())

	like := func(filmID, userID int64) int {
		path := "/films/" + strconv.FormatInt(filmID, 10) + "/like/" + strconv.FormatInt(userID, 10)
		return do(t, h, http.MethodPut, path, nil).Code
	}
	for _, c := range []int{like(f2.ID, u1.ID), like(f2.ID, u2.ID), like(f3.ID, u1.ID), like(f3.ID, u1.ID)} {
		if c != http.StatusNoContent {
			t.Fatalf("like: expected 204, got %d", c)
		}
	}
	if c := like(f1.ID, 999); c != http.StatusNotFound {
		t.Fatalf("like by unknown user: expected 404, got %d", c)
	}
	if c := like(999, u1.ID); c != http.StatusNotFound {
		t.Fatalf("like of unknown film: expected 404, got %d", c)
	}

	rec := do(t, h, http.MethodGet, "/films/popular?count=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("popular: expected 200, got %d", rec.Code)
	}
	pop := decode[[]filmResp](t, rec)
	if len(pop) != 2 || pop[0].ID != f2.ID || pop[1].ID != f3.ID || len(pop[0].Likes) != 2 {
		t.Fatalf("unexpected popular: %+v", pop)
	}

	rec = do(t, h, http.MethodDelete, "/films/"+strconv.FormatInt(f2.ID, 10)+"/like/"+strconv.FormatInt(u1.ID, 10), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unlike: expected 204, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/films/popular", nil)
	pop = decode[[]filmResp](t, rec)
	if len(pop) != 3 || pop[0].ID != f2.ID || pop[1].ID != f3.ID || pop[2].ID != f1.ID {
		t.Fatalf("unexpected popular after unlike: %+v", pop)
	}

	if rec := do(t, h, http.MethodGet, "/films/popular?count=abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad count: expected 400, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/films/abc/like/1", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad path id: expected 400, got %d", rec.Code)
	}
}

func TestUsers_CreateDefaultsAndValidation(t *testing.T) {
	_, h := setup(t)

	b := userBody("common")
	b["name"] = ""
	rec := do(t, h, http.MethodPost, "/users", b)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	u := decode[userResp](t, rec)
	if u.Name != "common" || u.Birthday == nil || *u.Birthday != "1946-08-20" || u.Friends == nil {
		t.Fatalf("unexpected user: %+v", u)
	}

	cases := []struct {
		name  string
		edit  func(b map[string]any)
		field string
	}{
		{"missing email", func(b map[string]any) { delete(b, "email") }, "email"},
		{"bad email", func(b map[string]any) { b["email"] = "mail.ru" }, "email"},
		{"login with space", func(b map[string]any) { b["login"] = "dolore ullamco" }, "login"},
		{"empty login", func(b map[string]any) { b["login"] = "" }, "login"},
		{"future birthday", func(b map[string]any) { b["birthday"] = time.Now().AddDate(1, 0, 0).Format("2006-01-02") }, "birthday"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := userBody("valid")
			tc.edit(b)
			rec := do(t, h, http.MethodPost, "/users", b)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if e := decode[errResp](t, rec); e.Errors[tc.field] == "" {
				t.Fatalf("expected error on %q, got %+v", tc.field, e)
			}
		})
	}

	// every failing field is reported, not only the ones the shape check catches
	rec = do(t, h, http.MethodPost, "/users", map[string]any{"email": "bad", "login": "a b", "birthday": "3000-01-01"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if e := decode[errResp](t, rec); e.Errors["email"] == "" || e.Errors["login"] == "" || e.Errors["birthday"] == "" {
		t.Fatalf("expected email, login and birthday errors, got %+v", e.Errors)
	}

	for _, bday := range []any{"", nil} {
		nb := userBody("nobday")
		nb["birthday"] = bday
		rec := do(t, h, http.MethodPost, "/users", nb)
		if rec.Code != http.StatusCreated {
			t.Fatalf("birthday %v: expected 201, got %d: %s", bday, rec.Code, rec.Body.String())
		}
		if got := decode[userResp](t, rec); got.Birthday != nil {
			t.Fatalf("birthday %v: expected null, got %q", bday, *got.Birthday)
		}
	}

	upd := userBody("updated")
	upd["id"] = u.ID
	rec = do(t, h, http.MethodPut, "/users", upd)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[userResp](t, rec); got.Login != "updated" || got.Name != "Nick Name" {
		t.Fatalf("unexpected updated user: %+v", got)
	}
	upd["id"] = 9999
	if rec := do(t, h, http.MethodPut, "/users", upd); rec.Code != http.StatusNotFound {
		t.Fatalf("update unknown: expected 404, got %d", rec.Code)
	}
}

func TestUsers_Friends(t *testing.T) {
	_, h := setup(t)

	a := createUser(t, h, "a")
	b := createUser(t, h, "b")
	c := createUser(t, h, "c")
	id := func(v int64) string { return strconv.FormatInt(v, 10) }

	for _, p := range [][2]int64{{a.ID, c.ID}, {b.ID, c.ID}, {a.ID, b.ID}} {
		if rec := do(t, h, http.MethodPut, "/users/"+id(p[0])+"/friends/"+id(p[1]), nil); rec.Code != http.StatusNoContent {
			t.Fatalf("add friend %v: expected 204, got %d", p, rec.Code)
		}
	}
	rec := do(t, h, http.MethodGet, "/users/"+id(a.ID)+"/friends", nil)
	friends := decode[[]userResp](t, rec)
	if len(friends) != 2 || friends[0].ID != b.ID || friends[1].ID != c.ID {
		t.Fatalf("unexpected friends: %+v", friends)
	}
	rec = do(t, h, http.MethodGet, "/users/"+id(c.ID)+"/friends", nil)
	if got := decode[[]userResp](t, rec); len(got) != 0 {
		t.Fatalf("friendship should be one-directional, got %+v", got)
	}
	rec = do(t, h, http.MethodGet, "/users/"+id(a.ID)+"/friends/common/"+id(b.ID), nil)
	common := decode[[]userResp](t, rec)
	if len(common) != 1 || common[0].ID != c.ID {
		t.Fatalf("unexpected common friends: %+v", common)
	}

	if rec := do(t, h, http.MethodPut, "/users/"+id(a.ID)+"/friends/"+id(a.ID), nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("self friendship: expected 400, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/users/"+id(a.ID)+"/friends/-1", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown friend: expected 404, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/users/999/friends", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("friends of unknown user: expected 404, got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodDelete, "/users/"+id(a.ID)+"/friends/"+id(c.ID), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("remove friend: expected 204, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/users/"+id(a.ID), nil)
	if got := decode[userResp](t, rec); len(got.Friends) != 1 || got.Friends[0] != b.ID {
		t.Fatalf("unexpected friends after removal: %+v", got)
	}

	if rec := do(t, h, http.MethodDelete, "/users/"+id(b.ID), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete user: expected 204, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/users/"+id(a.ID), nil)
	if got := decode[userResp](t, rec); len(got.Friends) != 0 {
		t.Fatalf("expected friendships removed with the user, got %+v", got.Friends)
	}
}

func TestReferenceEndpoints(t *testing.T) {
	_, h := setup(t)

	rec := do(t, h, http.MethodGet, "/mpa", nil)
	mpa := decode[[]struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}](t, rec)
	if len(mpa) != 5 || mpa[0].Name != "G" || mpa[4].Name != "NC-17" {
		t.Fatalf("unexpected mpa: %+v", mpa)
	}
	rec = do(t, h, http.MethodGet, "/genres/3", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Animation") {
		t.Fatalf("unexpected genre: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/genres/99", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown genre: expected 404, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/mpa/x", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad mpa id: expected 400, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/genres", nil)
	if rec.Code != http.StatusOK || strings.Count(rec.Body.String(), `"id"`) != 6 {
		t.Fatalf("unexpected genres: %s", rec.Body.String())
	}
}

func TestContentTypeAndMalformedJSON(t *testing.T) {
	_, h := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/films", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"login":`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if e := decode[errResp](t, rec); e.Code != "bad_request" {
		t.Fatalf("expected bad_request, got %+v", e)
	}
}

func TestHealthAndRequestID(t *testing.T) {
	_, h := setup(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		if rec := do(t, h, http.MethodGet, path, nil); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	rec := do(t, h, http.MethodGet, "/films", nil)
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
	req := httptest.NewRequest(http.MethodGet, "/films", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "filmorate_http_requests_total") {
		t.Fatalf("expected prometheus metrics, got %d", rec.Code)
	}
}
