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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/careslot/careslot/internal/config"
	"github.com/careslot/careslot/internal/domain/appointment"
	"github.com/careslot/careslot/internal/domain/doctor"
	"github.com/careslot/careslot/internal/domain/doctorschedule"
	"github.com/careslot/careslot/internal/domain/patient"
	"github.com/careslot/careslot/internal/domain/payment"
	"github.com/careslot/careslot/internal/domain/prescription"
	"github.com/careslot/careslot/internal/domain/review"
	"github.com/careslot/careslot/internal/domain/schedule"
	"github.com/careslot/careslot/internal/domain/stats"
	"github.com/careslot/careslot/internal/domain/user"
	"github.com/careslot/careslot/internal/platform/auth"
	"github.com/careslot/careslot/internal/platform/db"
	"github.com/careslot/careslot/internal/platform/middleware"
	"github.com/careslot/careslot/internal/platform/payments"
	"github.com/careslot/careslot/internal/platform/redislock"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "careslot-server",
		Short: "CareSlot appointment booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the CareSlot API server",
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

// sweepCmd runs one unpaid-appointment reclamation pass and exits. The serve
// command runs the same sweep on a ticker; this exists for cron-style setups.
func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Cancel unpaid appointments past the grace window",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			reclaimer := appointment.NewReclaimer(
				pool,
				appointment.NewRepo(pool),
				payment.NewRepo(pool),
				doctorschedule.NewRepo(pool),
				cfg.ReclaimGrace,
				logger,
			)
			n, err := reclaimer.SweepOnce(ctx)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}
			fmt.Printf("Reclaimed %d appointment(s).\n", n)
			return nil
		},
	}
}

// userCmd provisions account rows. Users normally arrive through the
// identity provider sync; this covers local setups and the first admin.
func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			role, _ := cmd.Flags().GetString("role")
			phone, _ := cmd.Flags().GetString("phone")
			if name == "" || email == "" {
				return fmt.Errorf("--name and --email are required")
			}
			switch role {
			case auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin, auth.RoleSuperAdmin:
			default:
				return fmt.Errorf("--role must be one of %s, %s, %s, %s",
					auth.RolePatient, auth.RoleDoctor, auth.RoleAdmin, auth.RoleSuperAdmin)
			}

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

			users := user.NewRepo(pool)
			if existing, err := users.GetByEmail(ctx, email); err == nil {
				return fmt.Errorf("user %s already exists with id %s", email, existing.ID)
			}

			u := &user.User{Name: name, Email: email, Role: role}
			if phone != "" {
				u.Phone = &phone
			}
			if err := users.Create(ctx, u); err != nil {
				return err
			}
			fmt.Printf("Created %s user %s (%s)\n", u.Role, u.Email, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("email", "", "Login email, must match token claims")
	createCmd.Flags().String("role", auth.RolePatient, "PATIENT, DOCTOR or ADMIN")
	createCmd.Flags().String("phone", "", "Contact phone")
	cmd.AddCommand(createCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Slot lock. Without Redis each booking still holds the row lock inside
	// its transaction; the distributed lock just fails contenders faster.
	var locker redislock.Locker = redislock.NoopLocker{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		locker = redislock.New(client, cfg.SlotLockTTL)
		logger.Info().Msg("connected to redis")
	}

	// Payment gateway
	checkout := payments.NewStripeClient(cfg.StripeSecretKey, cfg.PaymentSuccessURL, cfg.PaymentCancelURL, logger)
	if cfg.StripeSecretKey == "" {
		checkout = checkout.WithDryRun(true)
		logger.Warn().Msg("STRIPE_SECRET_KEY not set, checkout sessions run in dry-run mode")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health check
	e.GET("/health", db.HealthHandler(pool))

	// The webhook group skips bearer auth; Stripe authenticates with its
	// signature header instead.
	public := e.Group("/api/v1")

	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware([]byte(cfg.JWTSecret)))
	}

	// Repositories
	scheduleRepo := schedule.NewRepo(pool)
	doctorRepo := doctor.NewRepo(pool)
	patientRepo := patient.NewRepo(pool)
	slotRepo := doctorschedule.NewRepo(pool)
	appointmentRepo := appointment.NewRepo(pool)
	paymentRepo := payment.NewRepo(pool)
	reviewRepo := review.NewRepo(pool)
	prescriptionRepo := prescription.NewRepo(pool)
	statsRepo := stats.NewRepo(pool)

	// Services
	scheduleSvc := schedule.NewService(scheduleRepo, logger)
	doctorSvc := doctor.NewService(doctorRepo, logger)
	patientSvc := patient.NewService(patientRepo, logger)
	slotSvc := doctorschedule.NewService(pool, slotRepo, doctorRepo, logger)
	appointmentSvc := appointment.NewService(
		pool, appointmentRepo, patientRepo, doctorRepo, scheduleRepo, slotRepo,
		paymentRepo, checkout, locker, logger,
	)
	paymentSvc := payment.NewService(pool, paymentRepo, appointmentRepo, logger)
	reviewSvc := review.NewService(pool, reviewRepo, patientRepo, doctorRepo, appointmentRepo, logger)
	prescriptionSvc := prescription.NewService(prescriptionRepo, patientRepo, doctorRepo, appointmentRepo, logger)
	statsSvc := stats.NewService(statsRepo, patientRepo, doctorRepo, logger)

	// Routes
	schedule.NewHandler(scheduleSvc).RegisterRoutes(apiV1)
	doctor.NewHandler(doctorSvc).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	doctorschedule.NewHandler(slotSvc).RegisterRoutes(apiV1)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(apiV1)
	payment.NewHandler(paymentSvc, cfg.StripeWebhookSecret).RegisterRoutes(public)
	review.NewHandler(reviewSvc).RegisterRoutes(apiV1)
	prescription.NewHandler(prescriptionSvc).RegisterRoutes(apiV1)
	stats.NewHandler(statsSvc).RegisterRoutes(apiV1)

	// Background reclaim of unpaid bookings
	reclaimCtx, stopReclaim := context.WithCancel(ctx)
	defer stopReclaim()
	reclaimer := appointment.NewReclaimer(pool, appointmentRepo, paymentRepo, slotRepo, cfg.ReclaimGrace, logger)
	go reclaimer.Run(reclaimCtx, cfg.ReclaimInterval)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	stopReclaim()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	return nil
}
