package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"builderhub/internal/config"
	"builderhub/internal/database"
	"builderhub/internal/domain"
	"builderhub/internal/identity"
	"builderhub/internal/pkg/logger"
	"builderhub/internal/repository"

	"go.uber.org/zap"
)

func main() {
	builderID := flag.String("builder", "demo-builder", "builder the session types belong to")
	clientID := flag.String("client", "demo-client", "user id embedded in the printed dev token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	db, err := database.Connect(cfg.DatabaseURL, zl)
	if err != nil {
		zl.Fatal("database connect failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zl.Fatal("database migrate failed", zap.Error(err))
	}

	repo := repository.NewSessionTypeRepository(db)
	ctx := context.Background()
	for _, st := range sessionTypes(cfg, *builderID) {
		if err := repo.Upsert(ctx, &st); err != nil {
			zl.Fatal("upsert session type failed", zap.String("id", st.ID), zap.Error(err))
		}
		zl.Info("session type seeded",
			zap.String("id", st.ID),
			zap.String("category", string(st.Category)),
			zap.Float64("price", st.Price),
		)
	}

	if cfg.IsProdLike() {
		return
	}
	token, err := identity.NewJWTProvider(cfg.JWTSecret, cfg.JWTTTL).GenerateToken(*clientID, identity.RoleClient)
	if err != nil {
		zl.Fatal("token generation failed", zap.Error(err))
	}
	fmt.Printf("dev token for %s:\n%s\n", *clientID, token)
}

func sessionTypes(cfg *config.Config, builderID string) []domain.SessionType {
	ref := func(slug string, minutes int) string {
		if cfg.CalendarProvider == "google" {
			return fmt.Sprintf("gcal:%s?duration=%d", cfg.GoogleCalendarID, minutes)
		}
		return cfg.CalendlyBaseURL + "/event_types/" + slug
	}

	return []domain.SessionType{
		{
			ID:              builderID + "-intro",
			BuilderID:       builderID,
			Title:           "Intro call",
			Description:     "A free 20 minute call to get to know each other.",
			DurationMinutes: 20,
			Category:        domain.CategoryFree,
			CalendarRef:     ref("intro", 20),
		},
		{
			ID:              builderID + "-pathway",
			BuilderID:       builderID,
			Title:           "Pathway session",
			Description:     "Pick a pathway and work through it together.",
			DurationMinutes: 45,
			Price:           60,
			Currency:        cfg.StripeCurrency,
			Category:        domain.CategoryPathway,
			CalendarRef:     ref("pathway", 45),
		},
		{
			ID:              builderID + "-review",
			BuilderID:       builderID,
			Title:           "Portfolio review",
			Description:     "Members only deep dive on your work.",
			DurationMinutes: 60,
			Price:           120,
			Currency:        cfg.StripeCurrency,
			Category:        domain.CategorySpecialized,
			RequiresAuth:    true,
			CalendarRef:     ref("review", 60),
		},
	}
}
