package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/amaftei/rsvpd/internal/access"
	"github.com/amaftei/rsvpd/internal/api"
	"github.com/amaftei/rsvpd/internal/config"
	"github.com/amaftei/rsvpd/internal/guard"
	"github.com/amaftei/rsvpd/internal/models"
	"github.com/amaftei/rsvpd/internal/notify"
	"github.com/amaftei/rsvpd/internal/rsvp"
	"github.com/amaftei/rsvpd/internal/storage"
	"github.com/amaftei/rsvpd/internal/utils"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "rsvpd",
		Short: "rsvpd — token-gated RSVP service with confirmation delivery",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(guestCmd(&configPath))
	rootCmd.AddCommand(statsCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the rsvpd server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("database migrations completed")

			tokenGuard := guard.New(cfg.Auth.TokenGuard.MaxAttempts, cfg.Auth.TokenGuard.Window, cfg.Auth.TokenGuard.Lockout)
			adminGuard := guard.New(cfg.Auth.AdminGuard.MaxAttempts, cfg.Auth.AdminGuard.Window, cfg.Auth.AdminGuard.Lockout)

			validator := access.NewValidator(tokenGuard, store, log)
			engine := notify.NewEngine(cfg.Notify, setupProvider(cfg.Notify, log), store, log)
			pipeline := rsvp.NewPipeline(store, validator, engine, log)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			engine.Start(ctx)

			go sweepGuards(ctx, tokenGuard, adminGuard)

			server := api.NewServer(cfg.Server, api.Deps{
				Store:       store,
				Pipeline:    pipeline,
				Validator:   validator,
				Engine:      engine,
				AdminGuard:  adminGuard,
				AdminPass:   cfg.Auth.AdminPassword,
				PhoneRegion: cfg.Guests.PhoneRegion,
			}, log)

			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			log.Info().
				Str("version", version).
				Int("port", cfg.Server.Port).
				Str("provider", cfg.Notify.Provider).
				Str("storage", cfg.Storage.Driver).
				Msg("rsvpd is running")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down...")

			if err := server.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("server shutdown error")
			}

			engine.Stop()

			log.Info().Msg("rsvpd stopped")
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Println("migrations completed successfully")
			return nil
		},
	}
}

func guestCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Manage guests",
	}

	// guest add
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a guest and print their access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			phone, _ := cmd.Flags().GetString("phone")
			note, _ := cmd.Flags().GetString("note")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			g, err := createGuest(store, name, phone, note, cfg.Guests.PhoneRegion)
			if err != nil {
				return err
			}

			out, _ := json.MarshalIndent(g, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	addCmd.Flags().String("name", "", "guest name")
	addCmd.Flags().String("phone", "", "guest phone number")
	addCmd.Flags().String("note", "", "free-form note")

	// guest list
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all guests with their response status",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			guests, err := store.ListGuestsWithResponses(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list guests: %w", err)
			}

			if len(guests) == 0 {
				fmt.Println("No guests found.")
				return nil
			}

			for _, gwr := range guests {
				status := "no response"
				if gwr.Response != nil {
					if gwr.Response.Attending {
						status = "attending (" + gwr.Response.MealChoice + ")"
					} else {
						status = "declined"
					}
				}
				fmt.Printf("  %s  %-30s  %s  token=%s\n", gwr.Guest.ID, gwr.Guest.Name, status, gwr.Guest.AccessToken)
			}
			return nil
		},
	}

	// guest import
	importCmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import guests from a CSV file (name,phone[,note] per row)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: rsvpd guest import <file.csv>")
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open csv: %w", err)
			}
			defer f.Close()

			reader := csv.NewReader(f)
			reader.FieldsPerRecord = -1
			rows, err := reader.ReadAll()
			if err != nil {
				return fmt.Errorf("failed to read csv: %w", err)
			}

			imported := 0
			for i, row := range rows {
				if len(row) == 0 || row[0] == "" || (i == 0 && row[0] == "name") {
					continue
				}
				phone, note := "", ""
				if len(row) > 1 {
					phone = row[1]
				}
				if len(row) > 2 {
					note = row[2]
				}

				g, err := createGuest(store, row[0], phone, note, cfg.Guests.PhoneRegion)
				if err != nil {
					fmt.Printf("  row %d (%s): %v\n", i+1, row[0], err)
					continue
				}
				fmt.Printf("  %s  %s  token=%s\n", g.ID, g.Name, g.AccessToken)
				imported++
			}

			fmt.Printf("Imported %d guests.\n", imported)
			return nil
		},
	}

	cmd.AddCommand(addCmd, listCmd, importCmd)
	return cmd
}

func statsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show guest and response stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := store.GetStats(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			out, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rsvpd v%s\n", version)
		},
	}
}

func createGuest(store storage.Storage, name, phone, note, phoneRegion string) (*models.Guest, error) {
	normalized := ""
	if phone != "" {
		p, err := utils.NormalizePhoneNumber(phone, phoneRegion)
		if err != nil {
			return nil, fmt.Errorf("invalid phone number %q: %w", phone, err)
		}
		normalized = p
	}

	token, err := models.NewAccessToken()
	if err != nil {
		return nil, err
	}

	g := &models.Guest{
		ID:          models.NewID("gst"),
		Name:        name,
		Phone:       normalized,
		AccessToken: token,
		Note:        note,
		CreatedAt:   time.Now().UTC(),
	}

	if err := store.CreateGuest(context.Background(), g); err != nil {
		return nil, fmt.Errorf("failed to create guest: %w", err)
	}
	return g, nil
}

func sweepGuards(ctx context.Context, guards ...*guard.Guard) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, g := range guards {
				g.Sweep()
			}
		}
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func setupStorage(cfg config.StorageConfig, log zerolog.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "sqlite":
		log.Info().Str("path", cfg.SQLite.Path).Msg("using SQLite storage")
		return storage.NewSQLite(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func setupProvider(cfg config.NotifyConfig, log zerolog.Logger) notify.Provider {
	switch cfg.Provider {
	case "smtp":
		if cfg.SMTP.Host == "" {
			log.Warn().Msg("smtp provider selected but no host configured, falling back to noop")
			return &notify.NoopProvider{Log: log}
		}
		return notify.NewSMTPProvider(cfg.SMTP)
	default:
		return &notify.NoopProvider{Log: log}
	}
}

func storeFromConfig(configPath string) (storage.Storage, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg.Logging)
	store, err := setupStorage(cfg.Storage, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, func() { store.Close() }, nil
}
