package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"smartcal/internal/assistant"
	"smartcal/internal/config"
	"smartcal/internal/google"
	"smartcal/internal/ics"
	"smartcal/internal/models"
	"smartcal/internal/openrouter"
	"smartcal/internal/present"
	"smartcal/internal/session"
	"smartcal/internal/web"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	cliApp := &cli.App{
		Name:  "smartcal",
		Usage: "Create Google Calendar events from natural language.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", EnvVars: []string{"SMARTCAL_CONFIG"}, Value: "smartcal.yaml", Usage: "Path to the YAML config file."},
		},
		Commands: []*cli.Command{
			authCommand(),
			logoutCommand(),
			whoamiCommand(),
			addCommand(),
			listCommand(),
			serveCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// app bundles everything a command needs.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *session.Store
	assistant *assistant.Assistant
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("Failed to close session store", "error", err)
	}
}

func newApp(c *cli.Context) (*app, error) {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := setupLogger(logLevel)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := session.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	extractor := openrouter.NewClient(logger, openrouter.Config{
		APIKey:  cfg.OpenRouter.APIKey,
		BaseURL: cfg.OpenRouter.BaseURL,
		Model:   cfg.OpenRouter.Model,
		Referer: cfg.OpenRouter.Referer,
		Title:   cfg.OpenRouter.Title,
	})
	calendar := google.NewClient(logger, store)

	a := assistant.New(logger, extractor, calendar, store, assistant.WithLocation(cfg.Location))
	return &app{cfg: cfg, logger: logger, store: store, assistant: a}, nil
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account and store the session.",
		Action: func(c *cli.Context) error {
			a, err := newApp(c)
			if err != nil {
				return err
			}
			defer a.Close()
			a.logger.Info("Starting Google authentication flow.")

			oauthCfg, err := google.GetOAuthConfig(a.cfg.Google.ClientID, a.cfg.Google.ClientSecret, a.cfg.CallbackURL())
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOnline)
			fmt.Printf("Go to the following link in your browser, then paste the "+
				"\"code\" parameter of the page you are redirected to: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthCfg, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			email, err := a.assistant.Login(c.Context, token.AccessToken)
			if err != nil {
				return err
			}
			a.logger.Info("Successfully authenticated and saved session.", "email", email)
			fmt.Println(a.assistant.Message().Text)
			return nil
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored Google session.",
		Action: func(c *cli.Context) error {
			a, err := newApp(c)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.assistant.Logout()
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the connected Google account.",
		Action: func(c *cli.Context) error {
			a, err := newApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			ok, err := a.assistant.Restore()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Not connected. Run the 'auth' command first.")
				return nil
			}
			sess, err := a.assistant.Session()
			if err != nil {
				return err
			}
			fmt.Printf("Conectado como %s\n", sess.Email)
			return nil
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Create an event from a free-text description.",
		ArgsUsage: "<description>",
		Action: func(c *cli.Context) error {
			a, err := newApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			text := strings.Join(c.Args().Slice(), " ")
			err = a.assistant.Submit(c.Context, text)
			if msg := a.assistant.Message(); msg.Text != "" {
				fmt.Println(msg.Text)
			}
			if errors.Is(err, models.ErrNotAuthenticated) {
				return fmt.Errorf("no Google session, run the 'auth' command first: %w", err)
			}
			if err != nil {
				return err
			}

			if p := a.assistant.Preview(); p != nil {
				fmt.Printf("  Título: %s\n  Fecha:  %s\n  Hora:   %s\n", p.Title, p.Date, p.Time)
			}
			printEvents(a.assistant.Upcoming())
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List upcoming events.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "ics", Usage: "Also write the events to this .ics file."},
		},
		Action: func(c *cli.Context) error {
			a, err := newApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.assistant.Refresh(c.Context); err != nil {
				if errors.Is(err, models.ErrAuthExpired) {
					return fmt.Errorf("the Google session expired and was removed, run 'auth' again: %w", err)
				}
				return err
			}
			events := a.assistant.Upcoming()
			printEvents(events)

			if path := c.String("ics"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("unable to create ics file: %w", err)
				}
				defer f.Close()
				if err := ics.Encode(f, events); err != nil {
					return err
				}
				a.logger.Info("Exported events.", "file", path, "count", len(events))
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the browser UI.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address. Overrides the config."},
		},
		Action: func(c *cli.Context) error {
			a, err := newApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			if c.IsSet("listen") {
				a.cfg.Listen = c.String("listen")
			}

			oauthCfg, err := google.GetOAuthConfig(a.cfg.Google.ClientID, a.cfg.Google.ClientSecret, a.cfg.CallbackURL())
			if err != nil {
				a.logger.Warn("Google login disabled", "error", err)
			}

			if ok, err := a.assistant.Restore(); err != nil {
				return err
			} else if ok {
				if err := a.assistant.Refresh(c.Context); err != nil {
					a.logger.Warn("Initial refresh failed", "error", err)
				}
			}

			refresher, err := web.NewRefresher(a.logger, a.assistant, a.cfg.Refresh, a.cfg.Location())
			if err != nil {
				return err
			}
			refresher.Start()
			defer refresher.Stop()

			srv := &http.Server{
				Addr:              a.cfg.Listen,
				Handler:           web.NewServer(a.logger, a.assistant, oauthCfg).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("Listening", "url", "http://"+a.cfg.Listen)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
}

func printEvents(events []*models.Event) {
	if len(events) == 0 {
		fmt.Println("Sin eventos próximos.")
		return
	}
	fmt.Println("Próximos eventos:")
	for _, ev := range events {
		when := ev.Start.Format("Mon 02 Jan 15:04")
		if ev.AllDay {
			when = ev.Start.Format("Mon 02 Jan")
		}
		fmt.Printf("  [%-8s] %s  %s\n", present.ColorOf(ev.Title), when, ev.Title)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
