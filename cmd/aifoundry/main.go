// aifoundry serves the agent assignment platform API: template and
// pattern catalog, specification workflow, GitHub integration, and
// coding-agent dispatch with SSE progress.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/term"

	"aifoundry/pkg/catalog"
	"aifoundry/pkg/config"
	"aifoundry/pkg/dispatch"
	"aifoundry/pkg/logx"
	"aifoundry/pkg/metrics"
	"aifoundry/pkg/persistence"
	"aifoundry/pkg/planner"
	"aifoundry/pkg/progress"
	"aifoundry/pkg/specstore"
	"aifoundry/pkg/version"
	"aifoundry/pkg/webui"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("aifoundry: %v", err)
	}
}

func run() error {
	var (
		dataDir     string
		host        string
		port        int
		showVersion bool
	)
	flag.StringVar(&dataDir, "data", "", "Data directory (default: config or ~/.aifoundry)")
	flag.StringVar(&host, "host", "", "Listen host (overrides config)")
	flag.IntVar(&port, "port", 0, "Listen port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.Version)
		return nil
	}

	logger := logx.NewLogger("main")

	cfg, err := config.Load(dataDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	if err := loadSecrets(cfg.DataDir, logger); err != nil {
		return err
	}

	cat, err := catalog.Load(
		filepath.Join(cfg.DataDir, "catalog.json"),
		filepath.Join(cfg.DataDir, "featured.json"),
	)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	specs, err := specstore.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open spec store: %w", err)
	}

	history, err := persistence.Open(filepath.Join(cfg.DataDir, "assignments.db"))
	if err != nil {
		return fmt.Errorf("failed to open assignment history: %w", err)
	}
	defer history.Close()

	var pln *planner.Planner
	if key := config.GetSecret(config.SecretAzureOpenAIKey); key != "" && cfg.AzureOpenAI.Endpoint != "" {
		pln, err = planner.New(cfg.AzureOpenAI, key)
		if err != nil {
			return fmt.Errorf("failed to build planner: %w", err)
		}
	} else {
		logger.Warn("Azure OpenAI not configured; AI planning endpoints degrade to fallbacks")
	}

	broker := progress.NewBroker()
	recorder := metrics.NewRecorder()

	disp, err := dispatch.NewDispatcher(cfg.DevinAPIBase, cat, specs, broker, history, recorder)
	if err != nil {
		return fmt.Errorf("failed to build dispatcher: %w", err)
	}

	server := webui.NewServer(cfg, cat, specs, pln, disp, broker, history, recorder)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("aifoundry %s listening on %s (data: %s)", version.Version, addr, cfg.DataDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// loadSecrets decrypts the secrets file when one exists, prompting for
// the passphrase on a terminal unless AIFOUNDRY_PASSPHRASE is set.
// Without a passphrase, secrets fall through to environment variables.
func loadSecrets(dataDir string, logger *logx.Logger) error {
	secretsPath := filepath.Join(dataDir, config.SecretsFilename)
	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return nil
	}

	passphrase := os.Getenv("AIFOUNDRY_PASSPHRASE")
	if passphrase == "" && term.IsTerminal(syscall.Stdin) {
		fmt.Fprint(os.Stderr, "Secrets passphrase: ")
		raw, err := term.ReadPassword(syscall.Stdin)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read passphrase: %w", err)
		}
		passphrase = string(raw)
	}
	if passphrase == "" {
		logger.Warn("secrets file present but no passphrase provided; using environment variables only")
		return nil
	}
	if err := config.LoadSecrets(dataDir, passphrase); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	return nil
}
