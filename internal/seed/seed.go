// Package seed populates a database with demo users, threads, replies and likes.
// Everything goes through the service layer, so seeded data obeys the same
// validation and counter rules as API traffic.
package seed

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math/rand"
	"strings"
	"unicode/utf8"

	"circle/internal/featureflags"
	"circle/internal/middleware"
	"circle/internal/models"
	"circle/internal/repository"
	"circle/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options configures a seeding run.
type Options struct {
	NumUsers   int
	NumThreads int
	// MaxReplies bounds the replies per thread.
	MaxReplies int
	// LikeRatio is the probability that a given user likes a given thread.
	LikeRatio   float64
	ShouldClean bool
	// RandSeed makes content deterministic when non-zero.
	RandSeed int64
}

// Summary reports what a run created.
type Summary struct {
	Users   int
	Threads int
	Replies int
	Likes   int
}

// Seeder drives the services that create seed data.
type Seeder struct {
	db      *gorm.DB
	users   *service.UserService
	threads *service.ThreadService
	replies *service.ReplyService
	likes   *service.LikeService
	uploads *service.UploadService
	faker   *gofakeit.Faker
	rng     *rand.Rand
}

// quiet drops realtime events; nobody is subscribed while seeding.
type quiet struct{}

func (quiet) PublishNewThread(context.Context, models.ThreadView)            {}
func (quiet) PublishLikeUpdate(context.Context, uint, int64)                 {}
func (quiet) PublishNewReply(context.Context, uint, models.ReplyView, int64) {}

// NewSeeder builds a seeder over db. uploads stores generated avatars and may
// be nil, in which case users are created without a photo.
func NewSeeder(db *gorm.DB, uploads *service.UploadService, randSeed int64) *Seeder {
	gw := repository.NewGateway(db, nil)
	if randSeed == 0 {
		randSeed = rand.Int63()
	}

	return &Seeder{
		db:      db,
		users:   service.NewUserService(gw).WithBcryptCost(bcrypt.MinCost),
		threads: service.NewThreadService(gw, quiet{}),
		replies: service.NewReplyService(gw, quiet{}, featureflags.NewManager("")),
		likes:   service.NewLikeService(gw, quiet{}),
		uploads: uploads,
		faker:   gofakeit.New(randSeed),
		rng:     rand.New(rand.NewSource(randSeed)),
	}
}

// Run seeds according to opts.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	users, err := s.SeedUsers(ctx, opts.NumUsers)
	if err != nil {
		return nil, err
	}
	summary := &Summary{Users: len(users)}

	threads, err := s.SeedThreads(ctx, users, opts.NumThreads)
	if err != nil {
		return summary, err
	}
	summary.Threads = len(threads)

	summary.Replies, err = s.SeedReplies(ctx, users, threads, opts.MaxReplies)
	if err != nil {
		return summary, err
	}

	summary.Likes, err = s.SeedLikes(ctx, users, threads, opts.LikeRatio)
	if err != nil {
		return summary, err
	}

	middleware.Logger.Info("seeding completed",
		slog.Int("users", summary.Users),
		slog.Int("threads", summary.Threads),
		slog.Int("replies", summary.Replies),
		slog.Int("likes", summary.Likes),
	)
	return summary, nil
}

// ClearAll removes every user and, through the foreign keys, their content.
func (s *Seeder) ClearAll(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec(`TRUNCATE TABLE likes, replies, threads, users RESTART IDENTITY CASCADE`).Error; err != nil {
			return fmt.Errorf("truncate tables: %w", err)
		}
		return nil
	}

	for _, table := range []string{"likes", "replies", "threads", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// SeedUsers registers n users, all with DefaultPassword.
func (s *Seeder) SeedUsers(ctx context.Context, n int) ([]*models.User, error) {
	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		first, last := s.faker.FirstName(), s.faker.LastName()
		username := fmt.Sprintf("%s%s%d", strings.ToLower(first), strings.ToLower(last[:1]), i+1)
		username = truncateRunes(username, 50)

		photo, err := s.avatar(ctx)
		if err != nil {
			return users, err
		}

		user, err := s.users.Register(ctx, service.RegisterInput{
			Username:     username,
			Email:        username + "@example.com",
			Password:     DefaultPassword,
			FullName:     first + " " + last,
			Bio:          truncateRunes(s.faker.HipsterSentence(8), 500),
			PhotoProfile: photo,
		})
		if err != nil {
			return users, fmt.Errorf("register %s: %w", username, err)
		}
		users = append(users, user)
	}
	return users, nil
}

// SeedThreads creates n threads by random authors.
func (s *Seeder) SeedThreads(ctx context.Context, users []*models.User, n int) ([]*models.ThreadView, error) {
	if len(users) == 0 {
		return nil, nil
	}

	threads := make([]*models.ThreadView, 0, n)
	for i := 0; i < n; i++ {
		author := users[s.rng.Intn(len(users))]
		thread, err := s.threads.CreateThread(ctx, service.CreateThreadInput{
			AuthorID: author.ID,
			Content:  s.content(),
		})
		if err != nil {
			return threads, fmt.Errorf("create thread: %w", err)
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

// SeedReplies adds up to maxPerThread replies to every thread.
func (s *Seeder) SeedReplies(ctx context.Context, users []*models.User, threads []*models.ThreadView, maxPerThread int) (int, error) {
	if len(users) == 0 || maxPerThread <= 0 {
		return 0, nil
	}

	created := 0
	for _, thread := range threads {
		for i := s.rng.Intn(maxPerThread + 1); i > 0; i-- {
			author := users[s.rng.Intn(len(users))]
			if _, err := s.replies.CreateReply(ctx, service.CreateReplyInput{
				ThreadID: thread.ID,
				UserID:   author.ID,
				Content:  s.content(),
			}); err != nil {
				return created, fmt.Errorf("reply to thread %d: %w", thread.ID, err)
			}
			created++
		}
	}
	return created, nil
}

// SeedLikes has each user like each thread with probability ratio.
func (s *Seeder) SeedLikes(ctx context.Context, users []*models.User, threads []*models.ThreadView, ratio float64) (int, error) {
	created := 0
	for _, thread := range threads {
		for _, user := range users {
			if s.rng.Float64() >= ratio {
				continue
			}
			res, err := s.likes.Toggle(ctx, user.ID, thread.ID)
			if err != nil {
				return created, fmt.Errorf("like thread %d: %w", thread.ID, err)
			}
			if res.IsLiked {
				created++
			}
		}
	}
	return created, nil
}

func (s *Seeder) content() string {
	var text string
	switch s.rng.Intn(3) {
	case 0:
		text = s.faker.Sentence(6 + s.rng.Intn(10))
	case 1:
		text = s.faker.Question()
	default:
		text = s.faker.Paragraph(1, 2+s.rng.Intn(3), 10, " ")
	}
	return truncateRunes(text, models.MaxContentLength)
}

// avatar writes a small solid-color PNG and returns its stored name.
func (s *Seeder) avatar(ctx context.Context) (string, error) {
	if s.uploads == nil {
		return "", nil
	}

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	fill := color.RGBA{
		R: uint8(s.rng.Intn(256)),
		G: uint8(s.rng.Intn(256)),
		B: uint8(s.rng.Intn(256)),
		A: 255,
	}
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode avatar: %w", err)
	}
	return s.uploads.Save(ctx, service.UploadInput{
		Filename:    "avatar.png",
		ContentType: "image/png",
		Content:     buf.Bytes(),
	})
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}
