// Command seed fills the database with demo users, threads, replies and likes.
package main

import (
	"context"
	"flag"
	"log"

	"circle/internal/config"
	"circle/internal/database"
	"circle/internal/seed"
	"circle/internal/service"
)

func main() {
	numUsers := flag.Int("users", 50, "Number of users to create")
	numThreads := flag.Int("threads", 200, "Number of threads to create")
	maxReplies := flag.Int("replies", 5, "Maximum replies per thread")
	likeRatio := flag.Float64("likes", 0.2, "Probability that a user likes a thread")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible content (0 picks one)")
	flag.Parse()

	log.Printf("Target: %d users, %d threads, clean=%v", *numUsers, *numThreads, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, service.NewUploadService(cfg), *randSeed)
	summary, err := s.Run(context.Background(), seed.Options{
		NumUsers:    *numUsers,
		NumThreads:  *numThreads,
		MaxReplies:  *maxReplies,
		LikeRatio:   *likeRatio,
		ShouldClean: *shouldClean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d threads, %d replies, %d likes",
		summary.Users, summary.Threads, summary.Replies, summary.Likes)
	log.Printf("All seeded users have the password: %s", seed.DefaultPassword)
}
