// aide is a conversational assistant for calendar and email.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aidehq/aide/internal/api"
	"github.com/aidehq/aide/internal/config"
	"github.com/aidehq/aide/internal/dialog"
	"github.com/aidehq/aide/internal/gcal"
	"github.com/aidehq/aide/internal/gmail"
	"github.com/aidehq/aide/internal/llm"
	"github.com/aidehq/aide/internal/logging"
	"github.com/aidehq/aide/internal/store"
)

var (
	configPath string

	version = "0.1.0"
)

func main() {
	// A local .env is optional
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "aide",
		Short: "aide - a conversational calendar and email assistant",
		Long: `aide manages your calendar and email through conversation.

Ask it to schedule meetings, it finds the open slots. Ask it to write an
email, it drafts one in the voice you use with that person. Everything
stays in a local sqlite database.`,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// serveCmd runs the HTTP API server.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the aide HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

			orch, db, oauth, err := buildOrchestrator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			defer orch.Close()

			server := api.New(api.Config{
				Host:         cfg.Server.Host,
				Port:         cfg.Server.Port,
				Orchestrator: orch,
				OAuth:        oauth,
				TokenPath:    cfg.Google.TokenPath,
			})

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-stop:
				logging.Info("shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Stop(ctx)
			}
		},
	}
}

// chatCmd runs an interactive terminal session.
func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with aide in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

			orch, db, _, err := buildOrchestrator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			defer orch.Close()

			sessionID := uuid.NewString()
			fmt.Println("aide is ready. Type 'exit' to leave.")

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				input := strings.TrimSpace(scanner.Text())
				if input == "" {
					continue
				}

				answer, err := orch.HandleTurn(cmd.Context(), sessionID, "", input)
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				fmt.Println(answer)

				if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
					return nil
				}
			}
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show aide version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("aide %s\n", version)
		},
	}
}

// buildOrchestrator wires the gateway, Google services, and store into an
// orchestrator. Google services come up offline when no token is on disk;
// the flows then degrade to their deterministic paths.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*dialog.Orchestrator, *store.DB, *gcal.OAuthClient, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := store.Open(store.Config{Path: filepath.Join(cfg.DataDir, "aide.db")})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}

	gateway := llm.NewClient(llm.Config{
		APIKey:  cfg.Claude.APIKey,
		BaseURL: cfg.Claude.BaseURL,
		Model:   cfg.Claude.Model,
	})
	if !gateway.IsConfigured() {
		logging.Warn("ANTHROPIC_API_KEY not set; falling back to pattern matching")
	}

	oauth := gcal.NewOAuthClient(gcal.OAuthConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
	})

	var calendarSvc gcal.Service
	var mailSvc gmail.Service
	if token, err := gcal.LoadToken(cfg.Google.TokenPath); err == nil {
		if svc, err := oauth.CalendarService(ctx, token); err == nil {
			calendarSvc = gcal.NewClient(svc)
		} else {
			logging.Warn("calendar service unavailable: %v", err)
		}
		if svc, err := oauth.GmailService(ctx, token); err == nil {
			mailSvc = gmail.NewClient(svc)
		} else {
			logging.Warn("gmail service unavailable: %v", err)
		}
	} else {
		logging.Info("no Google token at %s; calendar and mail are offline", cfg.Google.TokenPath)
	}
	if calendarSvc == nil {
		calendarSvc = gcal.Offline{}
	}
	if mailSvc == nil {
		mailSvc = gmail.Offline{}
	}

	orch := dialog.New(dialog.Options{
		Gateway:         gateway,
		Calendar:        calendarSvc,
		Mail:            mailSvc,
		Store:           store.NewConversationStore(db),
		HistoryWindow:   cfg.Dialogue.HistoryWindow,
		MailTimeout:     cfg.Dialogue.MailFlowTimeout,
		ScheduleTimeout: cfg.Dialogue.ScheduleTimeout,
		IdleExpiry:      cfg.Dialogue.SessionIdleExpiry,
	})

	return orch, db, oauth, nil
}
