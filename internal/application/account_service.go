package application

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vibely/account-service/internal/domain/entity"
	repo "github.com/vibely/account-service/internal/domain/repository"
	"github.com/vibely/account-service/internal/infrastructure/cache"
	"github.com/vibely/account-service/internal/infrastructure/search"
	"github.com/vibely/account-service/pkg/events"
	"github.com/vibely/account-service/pkg/helpers"
	"github.com/vibely/account-service/pkg/mailer"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUser      = errors.New("email or username already exists")
	ErrUploadFailed       = errors.New("image upload failed")
)

// Uploader pushes image bytes to external blob storage and returns a public URL.
// The implementation owns credential acquisition; any failure in that pipeline
// surfaces to callers as ErrUploadFailed.
type Uploader interface {
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
}

// Service orchestrates the account operations: cache-aside profile reads,
// write-invalidate mutations, credential handling and token issuance.
type Service struct {
	Repo        repo.UserRepository
	Cache       cache.ProfileCache
	JWT         *helpers.JWTManager
	Uploader    Uploader
	Logger      *logrus.Logger
	Events      *events.Publisher // optional, best-effort
	Emails      *events.Publisher // optional, best-effort
	Indexer     *search.Indexer   // optional, best-effort
	MailEnabled bool
}

func NewService(r repo.UserRepository, c cache.ProfileCache, jwt *helpers.JWTManager, up Uploader, logger *logrus.Logger) *Service {
	return &Service{Repo: r, Cache: c, JWT: jwt, Uploader: up, Logger: logger}
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// Profile is the public projection of a user. The password hash never
// appears here, in responses or in cached snapshots.
type Profile struct {
	UserID           string    `json:"user_id"`
	Email            string    `json:"email"`
	Username         string    `json:"username"`
	Name             string    `json:"name"`
	Bio              string    `json:"bio"`
	DOB              string    `json:"dob"`
	ProfileImgURL    string    `json:"profile_img_url"`
	BannerImgURL     string    `json:"banner_img_url"`
	Followers        int       `json:"followers"`
	Following        int       `json:"following"`
	IsVerified       bool      `json:"is_verified"`
	IsContentCreator bool      `json:"is_content_creator"`
	IsDating         bool      `json:"is_dating"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toProfile(u *entity.User) *Profile {
	return &Profile{
		UserID:           u.ID,
		Email:            u.Email,
		Username:         u.Username,
		Name:             u.Name,
		Bio:              u.Bio,
		DOB:              u.DOB,
		ProfileImgURL:    u.ProfileImgURL,
		BannerImgURL:     u.BannerImgURL,
		Followers:        u.Followers,
		Following:        u.Following,
		IsVerified:       u.IsVerified,
		IsContentCreator: u.IsContentCreator,
		IsDating:         u.IsDating,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func (s *Service) issueTokens(userID string) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

type RegisterInput struct {
	Email         string
	Username      string
	Password      string
	Name          string
	Bio           string
	DOB           string
	ProfileImgURL string
}

// Register creates a new account. The existence check is a fast path only;
// the unique constraints in the store are the authoritative guard, and a
// constraint rejection is reported as ErrDuplicateUser.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Profile, TokenPair, error) {
	if in.Email == "" || in.Username == "" || in.Password == "" {
		return nil, TokenPair{}, ErrInvalidInput
	}

	existing, err := s.Repo.GetByEmailOrUsername(ctx, in.Email, in.Username)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, TokenPair{}, err
	}
	if existing != nil {
		return nil, TokenPair{}, ErrDuplicateUser
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, TokenPair{}, err
	}

	u := &entity.User{
		ID:            uuid.NewString(),
		Email:         in.Email,
		Username:      in.Username,
		PasswordHash:  hash,
		Name:          in.Name,
		Bio:           in.Bio,
		DOB:           in.DOB,
		ProfileImgURL: in.ProfileImgURL,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, TokenPair{}, ErrDuplicateUser
		}
		return nil, TokenPair{}, err
	}

	pair, err := s.issueTokens(u.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}

	s.publishEvent(ctx, "account.registered", u)
	s.enqueueWelcome(ctx, u)
	if s.Indexer != nil {
		s.Indexer.IndexUser(ctx, u)
	}
	return toProfile(u), pair, nil
}

// Login verifies credentials and issues a fresh token pair. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Profile, TokenPair, error) {
	if email == "" || password == "" {
		return nil, TokenPair{}, ErrInvalidInput
	}
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		// Only an unknown email maps to the credentials error; a store
		// failure is not an authentication outcome.
		if errors.Is(err, repo.ErrNotFound) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}
	if !helpers.CompareHashAndPassword(u.PasswordHash, password) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.issueTokens(u.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return toProfile(u), pair, nil
}

// GetProfile reads cache-aside: a cached snapshot short-circuits the store,
// a miss falls through to Postgres and repopulates the entry. Cache failures
// are logged and degrade to a miss so the read path survives a dead cache.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}

	var cached Profile
	hit, err := s.Cache.Get(ctx, userID, &cached)
	if err != nil {
		s.warn(err, userID, "profile cache read failed")
	} else if hit {
		return &cached, nil
	}

	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	p := toProfile(u)

	if err := s.Cache.Set(ctx, userID, p); err != nil {
		s.warn(err, userID, "profile cache write failed")
	}
	return p, nil
}

// ImagePayload carries a base64-encoded image upload with its declared type.
type ImagePayload struct {
	Blob string `json:"blob"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type UpdateProfileInput struct {
	Email         *string
	Username      *string
	Name          *string
	Bio           *string
	ProfileImgURL *string
	BannerImgURL  *string
	ProfileImg    *ImagePayload
	BannerImg     *ImagePayload
	Followers     *int // delta, added to the stored count
	Following     *int // delta, added to the stored count
}

func (in UpdateProfileInput) empty() bool {
	return in.Email == nil && in.Username == nil && in.Name == nil && in.Bio == nil &&
		in.ProfileImgURL == nil && in.BannerImgURL == nil &&
		in.ProfileImg == nil && in.BannerImg == nil &&
		in.Followers == nil && in.Following == nil
}

var bannerImageTypes = []string{"image/jpeg", "image/png", "image/gif"}
var profileImageTypes = append([]string{"image/ico"}, bannerImageTypes...)

func allowedImageType(t string, allowed []string) bool {
	for _, a := range allowed {
		if t == a {
			return true
		}
	}
	return false
}

// UpdateProfile merges the supplied fields into the stored record. Scalars
// replace, follower/following values are deltas applied server-side, and
// uploaded images override a same-request plain URL for that field. On
// success the cache entry is invalidated best-effort.
func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*Profile, error) {
	if userID == "" || in.empty() {
		return nil, ErrInvalidInput
	}
	// Reject bad MIME types before any credential fetch or upload happens.
	if in.ProfileImg != nil && !allowedImageType(in.ProfileImg.Type, profileImageTypes) {
		return nil, ErrInvalidInput
	}
	if in.BannerImg != nil && !allowedImageType(in.BannerImg.Type, bannerImageTypes) {
		return nil, ErrInvalidInput
	}

	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Bio != nil {
		u.Bio = *in.Bio
	}
	if in.ProfileImgURL != nil {
		u.ProfileImgURL = *in.ProfileImgURL
	}
	if in.BannerImgURL != nil {
		u.BannerImgURL = *in.BannerImgURL
	}

	if in.ProfileImg != nil {
		url, err := s.uploadImage(ctx, "avatars", userID, in.ProfileImg)
		if err != nil {
			return nil, err
		}
		u.ProfileImgURL = url
	}
	if in.BannerImg != nil {
		url, err := s.uploadImage(ctx, "banners", userID, in.BannerImg)
		if err != nil {
			return nil, err
		}
		u.BannerImgURL = url
	}

	if err := s.Repo.Update(ctx, u); err != nil {
		switch {
		case errors.Is(err, repo.ErrDuplicate):
			return nil, ErrDuplicateUser
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if in.Followers != nil || in.Following != nil {
		df, dg := 0, 0
		if in.Followers != nil {
			df = *in.Followers
		}
		if in.Following != nil {
			dg = *in.Following
		}
		u, err = s.Repo.AddFollowCounts(ctx, userID, df, dg)
		if err != nil {
			return nil, err
		}
	}

	s.invalidate(ctx, userID)
	s.publishEvent(ctx, "account.updated", u)
	if s.Indexer != nil {
		s.Indexer.IndexUser(ctx, u)
	}
	return toProfile(u), nil
}

func (s *Service) uploadImage(ctx context.Context, prefix, userID string, img *ImagePayload) (string, error) {
	if s.Uploader == nil {
		return "", ErrUploadFailed
	}
	data, err := base64.StdEncoding.DecodeString(img.Blob)
	if err != nil {
		return "", ErrInvalidInput
	}
	ext := strings.ToLower(filepath.Ext(img.Name))
	objectPath := filepath.ToSlash(filepath.Join(prefix, userID, uuid.NewString()+ext))
	url, err := s.Uploader.Upload(ctx, objectPath, img.Type, bytes.NewReader(data))
	if err != nil || url == "" {
		s.warn(err, userID, "blob upload failed")
		return "", ErrUploadFailed
	}
	return url, nil
}

// ChangePassword swaps the stored hash after verifying the current password.
// Previously issued tokens remain valid; there is no revocation.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if userID == "" || current == "" || next == "" {
		return ErrInvalidInput
	}
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !helpers.CompareHashAndPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	hash, err := helpers.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

type UpdateFlagsInput struct {
	IsDating         *bool
	IsContentCreator *bool
}

// UpdateFlags updates only the supplied account flags and invalidates the
// cached profile.
func (s *Service) UpdateFlags(ctx context.Context, userID string, in UpdateFlagsInput) (*Profile, error) {
	if userID == "" || (in.IsDating == nil && in.IsContentCreator == nil) {
		return nil, ErrInvalidInput
	}
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if in.IsDating != nil {
		u.IsDating = *in.IsDating
	}
	if in.IsContentCreator != nil {
		u.IsContentCreator = *in.IsContentCreator
	}
	if err := s.Repo.Update(ctx, u); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.invalidate(ctx, userID)
	s.publishEvent(ctx, "account.updated", u)
	if s.Indexer != nil {
		s.Indexer.IndexUser(ctx, u)
	}
	return toProfile(u), nil
}

// MatchAllQuery is the sentinel that bypasses the text filter for listing.
const MatchAllQuery = "~"

type SearchResult struct {
	Users      []*Profile `json:"users"`
	Total      int        `json:"total"`
	TotalPages int        `json:"totalPages"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
}

// SearchUsers runs an uncached substring search over username, name and
// email, ranked by follower count descending.
func (s *Service) SearchUsers(ctx context.Context, q string, page, limit int) (*SearchResult, error) {
	if q == "" {
		return nil, ErrInvalidInput
	}
	if q == MatchAllQuery {
		q = ""
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit

	users, total, err := s.Repo.Search(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	profiles := make([]*Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, toProfile(u))
	}
	return &SearchResult{
		Users:      profiles,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
		Page:       page,
		Limit:      limit,
	}, nil
}

// invalidate drops the cached profile. A failed delete is logged only; the
// entry then goes stale for at most the cache TTL.
func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.Cache.Delete(ctx, userID); err != nil {
		s.warn(err, userID, "profile cache invalidation failed")
	}
}

func (s *Service) publishEvent(ctx context.Context, typ string, u *entity.User) {
	if s.Events == nil {
		return
	}
	evt := events.AccountEvent{Type: typ, UserID: u.ID, Username: u.Username, OccurredAt: time.Now().UTC()}
	if err := s.Events.PublishJSON(ctx, evt); err != nil {
		s.warn(err, u.ID, "event publish failed")
	}
}

func (s *Service) enqueueWelcome(ctx context.Context, u *entity.User) {
	if s.Emails == nil || !s.MailEnabled {
		return
	}
	job := mailer.EmailJob{To: u.Email, Template: "welcome", Name: u.Name, Username: u.Username}
	if err := s.Emails.PublishJSON(ctx, job); err != nil {
		s.warn(err, u.ID, "welcome email enqueue failed")
	}
}

func (s *Service) warn(err error, userID, msg string) {
	if s.Logger == nil {
		return
	}
	s.Logger.WithError(err).WithField("user_id", userID).Warn(msg)
}
