// ABOUTME: Admin CLI for arjod user and maintenance management
// ABOUTME: Talks to the database directly and to the maintenance HTTP endpoint

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/banrovegrie/makearjowork/internal/auth"
	"github.com/banrovegrie/makearjowork/internal/config"
	"github.com/banrovegrie/makearjowork/internal/store"
)

const banner = `
                   _            _   _
   __ _ _ __      (_) ___   ___| |_| |
  / _' | '__|     | |/ _ \ / __| __| |
 | (_| | |    _   | | (_) | (__| |_| |
  \__,_|_|   | |__/ |\___/ \___|\__|_|
              \___/
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "users":
		err = cmdUsers(ctx)
	case "promote":
		err = cmdPromote(ctx, args)
	case "link":
		err = cmdLink(ctx, args)
	case "clear-chats":
		err = cmdClearChats(ctx)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: arjoctl <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  users                 List registered users")
	fmt.Println("  promote <email>       Grant admin to a user")
	fmt.Println("  link <email>          Mint a magic login link (local development)")
	fmt.Println("  clear-chats           Wipe all chat history via the maintenance endpoint")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  ARJO_CONFIG           Config file path (default: ~/.config/arjo/arjo.yaml)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  arjoctl users")
	fmt.Println("  arjoctl promote arjo@fydy.ai")
	fmt.Println("  arjoctl link arjo@fydy.ai")
	fmt.Println()
}

// getConfigPath mirrors the arjod lookup so both binaries share one file.
func getConfigPath() string {
	if envPath := os.Getenv("ARJO_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "arjo.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "arjo", "arjo.yaml")
}

func loadConfig() (*config.Config, error) {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		return config.Load(configPath)
	}
	return config.FromEnv()
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return store.NewPostgresStore(cfg.Database.DSN)
	default:
		return store.NewSQLiteStore(cfg.Database.Path)
	}
}

func cmdUsers(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	users, err := st.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tADMIN\tCREATED")
	for _, u := range users {
		admin := ""
		if u.IsAdmin {
			admin = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Email, admin, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func cmdPromote(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: arjoctl promote <email>")
	}
	email := strings.ToLower(strings.TrimSpace(args[0]))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	if err := st.SetAdmin(ctx, email, true); err != nil {
		return fmt.Errorf("promoting %s: %w", email, err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ %s is now an admin\n", email)
	return nil
}

// cmdLink mints a single-use login link without sending mail. Handy when
// developing locally without SMTP.
func cmdLink(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: arjoctl link <email>")
	}
	email := strings.ToLower(strings.TrimSpace(args[0]))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	token, err := auth.NewLinkToken()
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	expiresAt := time.Now().UTC().Add(cfg.Auth.LinkTTL)
	link := &store.MagicLink{
		Email:     email,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	if err := st.CreateMagicLink(ctx, link); err != nil {
		return fmt.Errorf("storing link: %w", err)
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Printf("  %s/auth/%s\n", strings.TrimSuffix(cfg.Server.BaseURL, "/"), token)
	fmt.Printf("  expires %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println()
	return nil
}

func cmdClearChats(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Server.MaintenanceToken == "" {
		return fmt.Errorf("maintenance_token is not configured")
	}

	url := fmt.Sprintf("http://%s/api/internal/clear-all-chats/%s",
		cfg.Server.HTTPAddr, cfg.Server.MaintenanceToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("clear-chats failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clear-chats failed: status %d", resp.StatusCode)
	}

	green := color.New(color.FgGreen)
	green.Println("  ✓ All chat history cleared")
	return nil
}
