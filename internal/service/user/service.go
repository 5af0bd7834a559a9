// Package user implements the user rules: display name defaulting, birthday bounds,
// and directional friendships.
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/tinoosan/filmorate/internal/errs"
	"github.com/tinoosan/filmorate/internal/filmorate"
)

// emailCheck applies the same email rule the HTTP layer validates with.
var emailCheck = validator.New()

type Repo interface {
	ListUsers(ctx context.Context) ([]filmorate.User, error)
	GetUser(ctx context.Context, id int64) (filmorate.User, error)
	ListFriends(ctx context.Context, userID int64) ([]filmorate.User, error)
	CommonFriends(ctx context.Context, userID, otherID int64) ([]filmorate.User, error)
}

type Writer interface {
	CreateUser(ctx context.Context, u filmorate.User) (filmorate.User, error)
	UpdateUser(ctx context.Context, u filmorate.User) (filmorate.User, error)
	DeleteUser(ctx context.Context, id int64) error
	AddFriend(ctx context.Context, userID, friendID int64) error
	RemoveFriend(ctx context.Context, userID, friendID int64) error
}

type Service interface {
	Validate(u filmorate.User) error
	List(ctx context.Context) ([]filmorate.User, error)
	Get(ctx context.Context, id int64) (filmorate.User, error)
	Create(ctx context.Context, u filmorate.User) (filmorate.User, error)
	Update(ctx context.Context, u filmorate.User) (filmorate.User, error)
	Delete(ctx context.Context, id int64) error
	AddFriend(ctx context.Context, userID, friendID int64) error
	RemoveFriend(ctx context.Context, userID, friendID int64) error
	Friends(ctx context.Context, userID int64) ([]filmorate.User, error)
	CommonFriends(ctx context.Context, userID, otherID int64) ([]filmorate.User, error)
}

type service struct {
	repo   Repo
	writer Writer
	log    *slog.Logger
	now    func() time.Time
}

func New(repo Repo, writer Writer, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{repo: repo, writer: writer, log: logger, now: time.Now}
}

func (s *service) Validate(u filmorate.User) error {
	fields := map[string]string{}
	if strings.TrimSpace(u.Email) == "" {
		fields["email"] = "is required"
	} else if err := emailCheck.Var(u.Email, "email"); err != nil {
		fields["email"] = "must be a valid email address"
	}
	switch {
	case u.Login == "":
		fields["login"] = "is required"
	case strings.IndexFunc(u.Login, unicode.IsSpace) >= 0:
		fields["login"] = "must not contain whitespace"
	}
	if u.Birthday != nil && filmorate.CalendarDay(*u.Birthday).After(filmorate.CalendarDay(s.now())) {
		fields["birthday"] = "must not be in the future"
	}
	if len(fields) > 0 {
		return &errs.ValidationError{Msg: "validation failed", Fields: fields}
	}
	return nil
}

func (s *service) List(ctx context.Context) ([]filmorate.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *service) Get(ctx context.Context, id int64) (filmorate.User, error) {
	if id <= 0 {
		return filmorate.User{}, fmt.Errorf("user id=%d: %w", id, errs.ErrNotFound)
	}
	return s.repo.GetUser(ctx, id)
}

func (s *service) Create(ctx context.Context, u filmorate.User) (filmorate.User, error) {
	if err := s.Validate(u); err != nil {
		return filmorate.User{}, err
	}
	u.NormalizeName()
	u.ID = 0
	u.Friends = nil
	created, err := s.writer.CreateUser(ctx, u)
	if err != nil {
		return filmorate.User{}, err
	}
	s.log.Info("user created", "user_id", created.ID, "login", created.Login)
	return created, nil
}

// Update replaces the user's profile fields. Friends on u are ignored.
func (s *service) Update(ctx context.Context, u filmorate.User) (filmorate.User, error) {
	if u.ID <= 0 {
		return filmorate.User{}, errs.InvalidField("id", "is required")
	}
	if _, err := s.repo.GetUser(ctx, u.ID); err != nil {
		return filmorate.User{}, err
	}
	if err := s.Validate(u); err != nil {
		return filmorate.User{}, err
	}
	u.NormalizeName()
	u.Friends = nil
	updated, err := s.writer.UpdateUser(ctx, u)
	if err != nil {
		return filmorate.User{}, err
	}
	s.log.Info("user updated", "user_id", updated.ID, "login", updated.Login)
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if err := s.writer.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.Info("user deleted", "user_id", id)
	return nil
}

func (s *service) AddFriend(ctx context.Context, userID, friendID int64) error {
	if err := s.ensurePair(ctx, userID, friendID); err != nil {
		return err
	}
	if err := s.writer.AddFriend(ctx, userID, friendID); err != nil {
		return err
	}
	s.log.Info("friend added", "user_id", userID, "friend_id", friendID)
	return nil
}

func (s *service) RemoveFriend(ctx context.Context, userID, friendID int64) error {
	if err := s.ensurePair(ctx, userID, friendID); err != nil {
		return err
	}
	if err := s.writer.RemoveFriend(ctx, userID, friendID); err != nil {
		return err
	}
	s.log.Info("friend removed", "user_id", userID, "friend_id", friendID)
	return nil
}

func (s *service) Friends(ctx context.Context, userID int64) ([]filmorate.User, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListFriends(ctx, userID)
}

func (s *service) CommonFriends(ctx context.Context, userID, otherID int64) ([]filmorate.User, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, otherID); err != nil {
		return nil, err
	}
	return s.repo.CommonFriends(ctx, userID, otherID)
}

func (s *service) ensurePair(ctx context.Context, userID, friendID int64) error {
	if userID == friendID {
		return errs.InvalidField("friendId", "must differ from the user id")
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	if _, err := s.Get(ctx, friendID); err != nil {
		return err
	}
	return nil
}
