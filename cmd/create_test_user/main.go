package main

import (
	"context"
	"flag"
	"log"
	"os"

	"chifoumi/internal/db"
	"chifoumi/internal/domain"
	"chifoumi/internal/repository"
	"chifoumi/internal/service"
)

// Dev tool: ensures a user exists and prints a token for it.
func main() {
	username := flag.String("username", "testuser", "username to create or look up")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	repo := repository.NewUserRepository(pool)
	ctx := context.Background()

	u, err := repo.GetByUsername(ctx, *username)
	if err != nil {
		log.Fatalf("get user failed: %v", err)
	}
	if u != nil {
		log.Printf("user already exists id=%d", u.ID)
	} else {
		u = &domain.User{Username: *username}
		if err := repo.Create(ctx, u); err != nil {
			log.Fatalf("create user failed: %v", err)
		}
		log.Printf("user created id=%d", u.ID)
	}

	service.InitJWT(secret)
	token, err := service.GenerateJWT(u.ID)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}
	log.Printf("token=%s", token)
}
