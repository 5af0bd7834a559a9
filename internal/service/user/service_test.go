package user_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/filmorate/internal/errs"
	"github.com/tinoosan/filmorate/internal/filmorate"
	"github.com/tinoosan/filmorate/internal/service/user"
	"github.com/tinoosan/filmorate/internal/storage/memory"
)

func setup(t *testing.T) user.Service {
	t.Helper()
	st := memory.New()
	return user.New(st, st, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func validUser(login string) filmorate.User {
	bday := time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)
	return filmorate.User{Email: login + "@example.com", Login: login, Name: "Name " + login, Birthday: &bday}
}

func TestValidate(t *testing.T) {
	svc := setup(t)
	future := time.Now().AddDate(0, 1, 0)

	cases := []struct {
		name  string
		edit  func(u *filmorate.User)
		field string
	}{
		{"missing email", func(u *filmorate.User) { u.Email = "" }, "email"},
		{"bad email", func(u *filmorate.User) { u.Email = "not-an-email" }, "email"},
		{"display name email", func(u *filmorate.User) { u.Email = "Bob <bob@example.com>" }, "email"},
		{"dotless domain", func(u *filmorate.User) { u.Email = "a@b" }, "email"},
		{"localhost domain", func(u *filmorate.User) { u.Email = "user@localhost" }, "email"},
		{"ip literal domain", func(u *filmorate.User) { u.Email = "a@[1.2.3.4]" }, "email"},
		{"hyphen led domain", func(u *filmorate.User) { u.Email = "a@-x.com" }, "email"},
		{"missing login", func(u *filmorate.User) { u.Login = "" }, "login"},
		{"login with space", func(u *filmorate.User) { u.Login = "dolore ullamco" }, "login"},
		{"login with tab", func(u *filmorate.User) { u.Login = "a\tb" }, "login"},
		{"future birthday", func(u *filmorate.User) { u.Birthday = &future }, "birthday"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := validUser("alice")
			tc.edit(&u)
			err := svc.Validate(u)
			require.ErrorIs(t, err, errs.ErrInvalid)
			var ve *errs.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tc.field)
		})
	}

	noBirthday := validUser("bob")
	noBirthday.Birthday = nil
	assert.NoError(t, svc.Validate(noBirthday))

	bornToday := validUser("carol")
	today := filmorate.CalendarDay(time.Now())
	bornToday.Birthday = &today
	assert.NoError(t, svc.Validate(bornToday))
}

func TestCreateDefaultsName(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	in := validUser("common")
	in.Name = "  "
	u, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "common", u.Name)
	assert.Empty(t, u.Friends)

	named, err := svc.Create(ctx, validUser("other"))
	require.NoError(t, err)
	assert.Equal(t, "Name other", named.Name)
}

func TestUpdateKeepsFriends(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validUser("a"))
	require.NoError(t, err)
	b, err := svc.Create(ctx, validUser("b"))
	require.NoError(t, err)
	require.NoError(t, svc.AddFriend(ctx, a.ID, b.ID))

	a.Email = "new@example.com"
	a.Name = ""
	a.Friends = nil
	upd, err := svc.Update(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", upd.Email)
	assert.Equal(t, "a", upd.Name)
	assert.Equal(t, []int64{b.ID}, upd.Friends)

	ghost := validUser("ghost")
	ghost.ID = 404
	_, err = svc.Update(ctx, ghost)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = svc.Update(ctx, validUser("noid"))
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

// friendOnRead stores a friendship right after Update has read the user.
type friendOnRead struct {
	*memory.Store
	userID, friendID int64
}

func (r friendOnRead) GetUser(ctx context.Context, id int64) (filmorate.User, error) {
	u, err := r.Store.GetUser(ctx, id)
	if err == nil && id == r.userID {
		if err := r.Store.AddFriend(ctx, r.userID, r.friendID); err != nil {
			return filmorate.User{}, err
		}
	}
	return u, err
}

func TestUpdateKeepsFriendAddedDuringUpdate(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := user.New(st, st, logger).Create(ctx, validUser("a"))
	require.NoError(t, err)
	b, err := user.New(st, st, logger).Create(ctx, validUser("b"))
	require.NoError(t, err)

	svc := user.New(friendOnRead{Store: st, userID: a.ID, friendID: b.ID}, st, logger)
	a.Name = "Renamed"
	upd, err := svc.Update(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID}, upd.Friends)
}

func TestFriendships(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, validUser("a"))
	b, _ := svc.Create(ctx, validUser("b"))
	c, _ := svc.Create(ctx, validUser("c"))

	require.NoError(t, svc.AddFriend(ctx, a.ID, c.ID))
	require.NoError(t, svc.AddFriend(ctx, b.ID, c.ID))
	require.NoError(t, svc.AddFriend(ctx, a.ID, b.ID))
	require.NoError(t, svc.AddFriend(ctx, a.ID, b.ID))

	friends, err := svc.Friends(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, friends, 2)
	assert.Equal(t, b.ID, friends[0].ID)
	assert.Equal(t, c.ID, friends[1].ID)

	// friendship is one-directional
	bFriends, err := svc.Friends(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, bFriends, 1)
	assert.Equal(t, c.ID, bFriends[0].ID)

	common, err := svc.CommonFriends(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, common, 1)
	assert.Equal(t, c.ID, common[0].ID)

	require.NoError(t, svc.RemoveFriend(ctx, a.ID, c.ID))
	common, err = svc.CommonFriends(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Empty(t, common)

	assert.ErrorIs(t, svc.AddFriend(ctx, a.ID, a.ID), errs.ErrInvalid)
	assert.ErrorIs(t, svc.AddFriend(ctx, a.ID, 999), errs.ErrNotFound)
	assert.ErrorIs(t, svc.RemoveFriend(ctx, 999, a.ID), errs.ErrNotFound)
	_, err = svc.Friends(ctx, 999)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = svc.CommonFriends(ctx, a.ID, 999)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, validUser("a"))
	b, _ := svc.Create(ctx, validUser("b"))
	require.NoError(t, svc.AddFriend(ctx, a.ID, b.ID))

	require.NoError(t, svc.Delete(ctx, b.ID))
	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Friends)
	assert.ErrorIs(t, svc.Delete(ctx, b.ID), errs.ErrNotFound)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
