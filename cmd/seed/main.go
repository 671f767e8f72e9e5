// Command main runs the database seeder for SKRBL.
package main

import (
	"flag"
	"log"

	"skrbl/internal/config"
	"skrbl/internal/database"
	"skrbl/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of random users to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Build data without writing to the database")
	fast := flag.Bool("fast", false, "Skip bcrypt hashing (development only)")
	randSeed := flag.Int64("seed", 0, "Random seed (0 = time based)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Printf("Target: %d users, clean=%v, dry-run=%v\n", *numUsers, *shouldClean, *dryRun)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	res, err := seed.Seed(db, seed.Options{
		NumUsers:    *numUsers,
		ShouldClean: *shouldClean,
		DryRun:      *dryRun,
		SkipBcrypt:  *fast,
		Seed:        *randSeed,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ Created %d users with %d role memberships.", len(res.Users), res.Memberships)
	for _, acct := range seed.DemoAccounts {
		log.Printf("   %-8s %s", acct.Role, acct.Email)
	}
	log.Printf("🔑 All seeded users have the password: %s", seed.DefaultPassword)
}
