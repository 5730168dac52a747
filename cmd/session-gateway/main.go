// ABOUTME: Entry point for the session-gateway server.
// ABOUTME: Routes tenant messaging sessions and keeps them alive.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/relaywell/session-gateway/internal/auth"
	"github.com/relaywell/session-gateway/internal/config"
	"github.com/relaywell/session-gateway/internal/gateway"
	"github.com/relaywell/session-gateway/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                        _                              _
 ___  ___  ___ ___ ___ (_) ___  _ __       __ _ _ __ _| |_ _____      ____ _ _   _
/ __|/ _ \/ __/ __|/ _ \| |/ _ \| '_ \ ____ / _' | '_ (_) __/ _ \ \ /\ / / _' | | | |
\__ \  __/\__ \__ \  __/| | (_) | | | |____| (_| | | | | ||  __/\ V  V / (_| | |_| |
|___/\___||___/___/\___||_|\___/|_| |_|     \__, |_| |_|\__\___| \_/\_/ \__,_|\__, |
                                            |___/                             |___/
`

// getConfigPath returns the path to the config file.
// Priority: SESSION_GATEWAY_CONFIG env var > XDG_CONFIG_HOME > ~/.config.
func getConfigPath() string {
	if envPath := os.Getenv("SESSION_GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "session-gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "session-gateway", "config.yaml")
}

// getDataPath returns the path to the data directory.
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "session-gateway")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: session-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve              Start the gateway server")
		fmt.Println("  init               Create a new config file interactively")
		fmt.Println("  token --name NAME  Mint an API token for the ops API")
		fmt.Println("  health             Check gateway health")
		fmt.Println("  version            Print version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken(ctx)
	case "health":
		err = runHealth(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Gateway:  %s\n", cfg.Gateway.BaseURL)
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	}
	fmt.Println()

	logger.Info("starting session-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"gateway", cfg.Gateway.BaseURL,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println("healthy")
	return nil
}

// runToken mints an ops API token directly against the database. The
// plaintext is printed exactly once.
func runToken(ctx context.Context) error {
	var name string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--name" || arg == "-n":
			if i+1 >= len(args) {
				return fmt.Errorf("--name requires a value")
			}
			name = args[i+1]
			i++
		case strings.HasPrefix(arg, "--name="):
			name = strings.TrimPrefix(arg, "--name=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("--name flag is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	record, presented, err := auth.NewAPIToken(uuid.NewString(), name)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}
	record.CreatedAt = time.Now().UTC()

	if err := s.CreateAPIToken(ctx, record); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created API token: %s\n", name)
	fmt.Println()
	fmt.Printf("  ID:    %s\n", record.ID)
	fmt.Printf("  Token: %s\n", presented)
	fmt.Println()
	color.New(color.FgYellow).Println("  Save the token now - it cannot be shown again.")

	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("session-gateway configuration setup")
	fmt.Println("===================================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDbPath := filepath.Join(getDataPath(), "session-gateway.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- Session Gateway ---")
	gatewayURL := prompt(reader, "Gateway base URL", "http://localhost:21465")
	gatewayKey := prompt(reader, "Gateway API key (leave empty to use ${GATEWAY_API_KEY})", "")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Tailscale Configuration ---")
	enableTailscale := prompt(reader, "Enable Tailscale?", "no")
	tailscaleEnabled := strings.ToLower(enableTailscale) == "yes" || strings.ToLower(enableTailscale) == "y"

	var tsHostname, tsAuthKey string
	var tsEphemeral bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", "session-gateway")
		tsAuthKey = prompt(reader, "Tailscale auth key (leave empty for TS_AUTHKEY)", "")
		ephemeralStr := prompt(reader, "Ephemeral node?", "no")
		tsEphemeral = strings.ToLower(ephemeralStr) == "yes" || strings.ToLower(ephemeralStr) == "y"
	}

	fmt.Println("\n--- Alerting ---")
	webhookURL := prompt(reader, "Alert webhook URL (leave empty to disable)", "")
	alertEnv := prompt(reader, "Alert environment label", "production")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# session-gateway configuration\n")
	cfg.WriteString("# Generated by session-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n\n", httpAddr))

	cfg.WriteString("gateway:\n")
	cfg.WriteString(fmt.Sprintf("  base_url: %q\n", gatewayURL))
	if gatewayKey != "" {
		cfg.WriteString(fmt.Sprintf("  api_key: %q\n", gatewayKey))
	} else {
		cfg.WriteString("  api_key: \"${GATEWAY_API_KEY}\"\n")
	}
	cfg.WriteString("  timeout: \"30s\"\n\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n\n", dbPath))

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", tailscaleEnabled))
	if tailscaleEnabled {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", tsHostname))
		if tsAuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: %q\n", tsAuthKey))
		}
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", tsEphemeral))
	}
	cfg.WriteString("\n")

	cfg.WriteString("watchdog:\n")
	cfg.WriteString("  interval: \"1m\"\n")
	cfg.WriteString("  reconnect_cooldown: \"60s\"\n")
	cfg.WriteString("  max_failures: 5\n")
	cfg.WriteString("  alert_threshold: 3\n\n")

	cfg.WriteString("alerts:\n")
	if webhookURL != "" {
		cfg.WriteString(fmt.Sprintf("  webhook_url: %q\n", webhookURL))
	}
	cfg.WriteString(fmt.Sprintf("  env: %q\n\n", alertEnv))

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n\n", logFormat))

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: true\n")
	cfg.WriteString("  path: \"/metrics\"\n")

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  session-gateway serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
