// Package main seeds a development database with active demo sellers and
// their listings. Accounts that already exist are left untouched, so the
// command can be run repeatedly.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/marketplace/internal/config"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository/postgres"
	"github.com/utafrali/marketplace/migrations"
	pkgconfig "github.com/utafrali/marketplace/pkg/config"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/logger"
)

type sellerDef struct {
	username string
	email    string
	state    string
	zip      string
}

type listingDef struct {
	name     string
	price    float64
	category string
	options  []domain.Option
}

var sellers = []sellerDef{
	{"ada", "ada@marketplace.test", "CA", "94105"},
	{"grace", "grace@marketplace.test", "NY", "10001"},
	{"linus", "linus@marketplace.test", "OR", "97201"},
}

var catalog = [][]listingDef{
	{
		{"Mechanical Keyboard", 89.99, domain.CategoryElectronics, []domain.Option{{Key: "switch", Value: "blue"}}},
		{"USB-C Hub", 34.99, domain.CategoryElectronics, nil},
		{"4K Webcam", 129.99, domain.CategoryElectronics, []domain.Option{{Key: "mount", Value: "clip"}}},
	},
	{
		{"Classic Cotton T-Shirt", 24.99, domain.CategoryClothing, []domain.Option{{Key: "size", Value: "M"}, {Key: "color", Value: "navy"}}},
		{"Rain Jacket", 79.99, domain.CategoryClothing, []domain.Option{{Key: "size", Value: "L"}}},
		{"Wool Sweater", 59.99, domain.CategoryClothing, nil},
	},
	{
		{"Leather Wallet", 39.99, domain.CategoryAccessories, []domain.Option{{Key: "color", Value: "brown"}}},
		{"Steel Watch Strap", 19.99, domain.CategoryAccessories, nil},
		{"Canvas Tote", 14.99, domain.CategoryAccessories, []domain.Option{{Key: "color", Value: "sand"}}},
	},
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := run(); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New("marketplace-seed", cfg.LogLevel)
	password := getEnv("SEED_PASSWORD", "marketplace")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
		MaxConns: 2,
		MinConns: 1,
	}, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	accounts := postgres.NewAccountRepository(pool)
	listings := postgres.NewListingRepository(pool)

	var createdAccounts, createdListings int
	for i, s := range sellers {
		_, err := accounts.GetByEmail(ctx, s.email)
		switch {
		case err == nil:
			log.Info("account exists, skipping", slog.String("email", s.email))
			continue
		case !errors.Is(err, apperrors.ErrNotFound):
			return fmt.Errorf("look up %s: %w", s.email, err)
		}

		now := time.Now().UTC()
		account := &domain.Account{
			ID:           uuid.New().String(),
			Email:        s.email,
			Username:     s.username,
			PasswordHash: string(hash),
			Address:      fmt.Sprintf("%d Market St", 100+i),
			State:        s.state,
			ZipCode:      s.zip,
			Phone:        fmt.Sprintf("555-01%02d", i),
			ProfileImage: cfg.AssetPlaceholder,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := accounts.Create(ctx, account); err != nil {
			return fmt.Errorf("create %s: %w", s.email, err)
		}
		createdAccounts++

		for j, def := range catalog[i%len(catalog)] {
			// Spread creation times so the public feed has a stable order.
			at := now.Add(-time.Duration(j) * time.Minute)
			listing := &domain.Listing{
				ID:          uuid.New().String(),
				OwnerID:     account.ID,
				Name:        def.name,
				Price:       def.price,
				Category:    def.category,
				MainImage:   fmt.Sprintf("https://picsum.photos/seed/%s-%d/800/800", s.username, j),
				OtherImages: []string{cfg.AssetPlaceholder},
				Options:     def.options,
				CreatedAt:   at,
				UpdatedAt:   at,
			}
			if listing.Options == nil {
				listing.Options = []domain.Option{}
			}
			if err := listings.Create(ctx, listing); err != nil {
				log.Warn("create listing failed",
					slog.String("name", def.name),
					slog.String("error", err.Error()),
				)
				continue
			}
			createdListings++
		}
		log.Info("seeded seller", slog.String("email", s.email), slog.String("id", account.ID))
	}

	log.Info("seed complete",
		slog.Int("accounts", createdAccounts),
		slog.Int("listings", createdListings),
	)
	return nil
}
