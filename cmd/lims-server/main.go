package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lims/lims/internal/config"
	"github.com/lims/lims/internal/domain/audit"
	"github.com/lims/lims/internal/domain/blocker"
	"github.com/lims/lims/internal/domain/client"
	"github.com/lims/lims/internal/domain/employee"
	"github.com/lims/lims/internal/domain/identity"
	"github.com/lims/lims/internal/domain/plate"
	"github.com/lims/lims/internal/domain/product"
	"github.com/lims/lims/internal/domain/project"
	"github.com/lims/lims/internal/domain/sample"
	"github.com/lims/lims/internal/domain/sampletype"
	"github.com/lims/lims/internal/domain/storage"
	"github.com/lims/lims/internal/platform/auth"
	"github.com/lims/lims/internal/platform/blobstore"
	"github.com/lims/lims/internal/platform/db"
	"github.com/lims/lims/internal/platform/metrics"
	"github.com/lims/lims/internal/platform/middleware"
	"github.com/lims/lims/internal/platform/reporting"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lims-server",
		Short: "Genomics LIMS API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the LIMS API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createAdminCmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the initial super admin account if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			issuer := auth.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.TokenTTLMinutes)*time.Minute)
			svc := identity.NewService(identity.NewRepoPG(pool), issuer)

			user, created, err := svc.EnsureAdmin(ctx, email, username, password)
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("Created admin account %q (id %d).\n", user.Username, user.ID)
			} else {
				fmt.Printf("Admin account %q already exists (id %d).\n", user.Username, user.ID)
			}
			return nil
		},
	}
	createAdminCmd.Flags().String("email", "admin@lims.local", "Admin email address")
	createAdminCmd.Flags().String("username", "admin", "Admin username")
	createAdminCmd.Flags().String("password", "Admin123!", "Admin password")
	cmd.AddCommand(createAdminCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Attachment storage
	files, err := blobstore.NewDiskStore(cfg.AttachmentDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.AttachmentDir).Msg("failed to open attachment store")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.BodyLimit(1<<20, cfg.MaxUploadMB<<20))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Metrics
	collector := metrics.NewCollector("lims")
	e.Use(collector.Middleware())
	e.GET("/metrics", echo.WrapHandler(collector.Handler()))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Auth
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.TokenTTLMinutes)*time.Minute)
	policy := auth.DefaultPolicy()

	// Shared services
	auditRepo := audit.NewRepoPG(pool)
	auditSvc := audit.NewService(auditRepo)

	identityRepo := identity.NewRepoPG(pool)
	identitySvc := identity.NewService(identityRepo, issuer)
	identityHandler := identity.NewHandler(identitySvc)

	// Public routes (no JWT)
	identityHandler.RegisterPublicRoutes(e.Group("/api/v1"))

	// Authenticated API
	api := e.Group("/api/v1", auth.JWTMiddleware(issuer))

	identityHandler.RegisterRoutes(api, policy)

	auditHandler := audit.NewHandler(auditSvc)
	auditHandler.RegisterRoutes(api, policy)

	clientSvc := client.NewService(client.NewRepoPG(pool))
	client.NewHandler(clientSvc).RegisterRoutes(api, policy)

	projectSvc := project.NewService(project.NewRepoPG(pool), auditSvc, files, collector)
	project.NewHandler(projectSvc).RegisterRoutes(api, policy)

	sampleTypeSvc := sampletype.NewService(sampletype.NewRepoPG(pool))
	sampletype.NewHandler(sampleTypeSvc).RegisterRoutes(api, policy)

	storageSvc := storage.NewService(storage.NewRepoPG(pool))
	storage.NewHandler(storageSvc).RegisterRoutes(api, policy)

	employeeSvc := employee.NewService(employee.NewRepoPG(pool))
	employee.NewHandler(employeeSvc).RegisterRoutes(api, policy)

	blockerSvc := blocker.NewService(blocker.NewRepoPG(pool))
	blocker.NewHandler(blockerSvc).RegisterRoutes(api, policy)

	productSvc := product.NewService(product.NewRepoPG(pool))
	product.NewHandler(productSvc).RegisterRoutes(api, policy)

	sampleRepo := sample.NewRepoPG(pool)
	sampleSvc := sample.NewService(sampleRepo, auditSvc, files, identitySvc, collector)
	sample.NewHandler(sampleSvc, policy).RegisterRoutes(api, policy)

	plateSvc := plate.NewService(plate.NewRepoPG(pool), sampleRepo, identitySvc, collector)
	plate.NewHandler(plateSvc).RegisterRoutes(api, policy)

	reporting.NewHandler(pool).RegisterRoutes(api, policy)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
