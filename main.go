package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveFlags struct {
	port        string
	contentFile string
}

var rootCmd = &cobra.Command{
	Use:           "portfolio",
	Short:         "Personal portfolio site with an embedded chat assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the portfolio web server",
	Long: `Start the portfolio web server.

Configuration is read from the environment and from a .env file in the
working directory. Flags override the matching variables.

Examples:
  portfolio serve
  portfolio serve --port 3000 --content ./portfolio.yaml`,
	RunE: runServe,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Send a one-off question to the assistant and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVarP(&serveFlags.port, "port", "p", "", "override PORT")
		cmd.Flags().StringVar(&serveFlags.contentFile, "content", "", "override CONTENT_FILE")
	}
	askCmd.Flags().StringVar(&serveFlags.contentFile, "content", "", "override CONTENT_FILE")
	rootCmd.AddCommand(serveCmd, askCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfigWithFlags() (*Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if serveFlags.port != "" {
		cfg.Port = serveFlags.port
	}
	if serveFlags.contentFile != "" {
		cfg.ContentFile = serveFlags.contentFile
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigWithFlags()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := buildServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer srv.store.Close()

	go func() {
		if err := srv.content.Watch(ctx, 200*time.Millisecond); err != nil {
			log.Errorw("content watcher stopped", "error", err)
		}
	}()

	router, err := srv.Router()
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Chat.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("portfolio listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildServer wires every dependency. Missing API keys or mail settings
// degrade the matching feature instead of failing startup.
func buildServer(ctx context.Context, cfg *Config, log *zap.SugaredLogger) (*Server, error) {
	content, err := NewContentStore(cfg.ContentFile, log)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}

	metrics := NewMetrics()

	if cfg.Chat.APIKey == "" {
		log.Warn("GROQ_API_KEY not set, the assistant will answer with a configuration error")
	}
	assistant := NewAssistant(cfg.Chat, content, metrics)

	var mailer Mailer
	if m, err := NewMailer(cfg.Contact, content.Current().Owner.Name); err != nil {
		log.Warnw("contact form disabled", "error", err)
	} else {
		mailer = m
	}

	store, err := OpenStore(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	log.Info("privacy: visitor tracking enabled with hashed IP addresses")

	retention := NewRetentionScheduler(store, cfg.RetentionDays, cfg.RetentionSchedule, log)
	if err := retention.Start(ctx); err != nil {
		store.Close()
		return nil, err
	}

	return &Server{
		cfg:       cfg,
		log:       log,
		content:   content,
		assistant: assistant,
		mailer:    mailer,
		store:     store,
		metrics:   metrics,
		admin:     NewAdminAuth(cfg.Admin, log),
		retention: retention,
	}, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigWithFlags()
	if err != nil {
		return err
	}
	content, err := NewContentStore(cfg.ContentFile, zap.NewNop().Sugar())
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Chat.Timeout)
	defer cancel()

	reply, err := NewAssistant(cfg.Chat, content, nil).Ask(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
	return nil
}
