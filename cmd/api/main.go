package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/school-system/reportgen/internal/config"
	"github.com/school-system/reportgen/internal/database"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/models"
	"github.com/school-system/reportgen/internal/server"
	"github.com/school-system/reportgen/internal/services"
	"github.com/school-system/reportgen/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Server.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	if len(os.Args) > 1 {
		handleCommand(os.Args[1], db, cfg, log)
		return
	}

	if cfg.Server.Env == "development" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store, db, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer st.Close(context.Background())

	svc := server.NewServices(cfg, db, st, nil, log)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: server.NewRouter(cfg, svc, log),
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown failed", zap.Error(err))
	}
}

func handleCommand(cmd string, db *gorm.DB, cfg *config.Config, log *zap.Logger) {
	switch cmd {
	case "migrate":
		if err := database.Migrate(db, log); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
		log.Info("Migration completed successfully")

	case "seed-admin":
		seedAdmin(db, cfg, log)

	default:
		log.Error("Unknown command", zap.String("command", cmd))
	}
}

func seedAdmin(db *gorm.DB, cfg *config.Config, log *zap.Logger) {
	authService := services.NewAuthService(db, cfg)
	ctx := context.Background()

	var count int64
	db.Model(&models.User{}).Where("role = ?", services.RoleAdmin).Count(&count)
	if count > 0 {
		log.Info("Admin already exists")
		return
	}

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@school.local"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "Admin@123"
	}

	admin := &models.User{
		Email:    email,
		FullName: "Administrator",
		Role:     services.RoleAdmin,
		IsActive: true,
	}
	if err := authService.CreateUser(ctx, admin, password); err != nil {
		log.Fatal("Failed to create admin", zap.Error(err))
	}
	log.Info("Admin created", zap.String("email", admin.Email))

	teacher := &models.User{
		Email:    "teacher@school.local",
		FullName: "Teacher",
		Role:     services.RoleTeacher,
		IsActive: true,
	}
	if err := authService.CreateUser(ctx, teacher, "Teacher@123"); err != nil {
		log.Fatal("Failed to create teacher", zap.Error(err))
	}
	log.Info("Teacher created", zap.String("email", teacher.Email))
}
