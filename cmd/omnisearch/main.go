// Package main is the omnisearch CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pingline/omnisearch/internal/cli"
	"github.com/pingline/omnisearch/internal/config"
	"github.com/pingline/omnisearch/internal/index"
	"github.com/pingline/omnisearch/internal/models"
	"github.com/pingline/omnisearch/internal/search"
	"github.com/pingline/omnisearch/internal/server"
	"github.com/pingline/omnisearch/internal/storage"
	"github.com/pingline/omnisearch/internal/watcher"
	"github.com/pingline/omnisearch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/omnisearch/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "suggest":
		runSuggest()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("omnisearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store        *storage.SQLiteStore
	MessageIndex *index.Messages
	Engine       *search.Engine
	Suggester    *search.Suggester
}

func (c *Components) Close() {
	if c.MessageIndex != nil {
		_ = c.MessageIndex.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

// UpdateSearchConfig propagates reloaded tunables to the search services.
func (c *Components) UpdateSearchConfig(cfg config.SearchConfig) {
	c.Engine.UpdateSearchConfig(cfg)
	c.Suggester.UpdateSearchConfig(cfg)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Message bodies are matched either by SQLite substring search or by a
	// Bleve index, per config.
	var messages search.MessageSearcher = store
	var messageIndex *index.Messages
	if cfg.Storage.MessageIndex == config.MessageIndexBleve {
		messageIndex, err = index.NewMessages(cfg.Storage.BleveIndexPath, store)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize message index: %w", err)
		}
		messages = messageIndex
	}
	logger.Info("message index initialized", zap.String("backend", cfg.Storage.MessageIndex))

	deps := search.Deps{
		Contacts:      store,
		Users:         store,
		Groups:        store,
		Conversations: store,
		Messages:      messages,
	}
	engine := search.NewEngine(deps, cfg.Search, logger)
	suggester := search.NewSuggester(store, store, store, cfg.Search, logger)

	return &Components{
		Store:        store,
		MessageIndex: messageIndex,
		Engine:       engine,
		Suggester:    suggester,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// Search tunables follow the config file without a restart.
	watch := watcher.NewConfigWatcher(resolvedConfigPath, func(reloaded *config.Config) {
		components.UpdateSearchConfig(reloaded.Search)
	}, logger)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watch.Start(watchCtx); err != nil {
		logger.Warn("config watcher disabled", zap.Error(err))
	}

	srv := server.NewServer(components.Engine, components.Suggester, components.Store, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watch.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildSearchQuery joins all positional args with spaces so multi-word
// queries work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// parseFilters splits a comma-separated filter flag into tokens.
func parseFilters(raw string) []string {
	if raw == "" {
		return nil
	}
	var filters []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			filters = append(filters, f)
		}
	}
	return filters
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct storage mode)")
	serverURL := fs.String("server", "http://localhost:8090", "server URL (empty = use direct storage)")
	requesterID := fs.String("requester", "", "user id the search runs as (required)")
	limit := fs.Int("limit", 0, "number of results (0 = server default)")
	filtersFlag := fs.String("filters", "", "comma-separated: contacts,users,groups,messages,unread")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	if *requesterID == "" {
		fmt.Fprintln(os.Stderr, "--requester is required")
		printSearchUsage(fs)
		os.Exit(1)
	}
	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	req := &models.SearchRequest{
		RequesterID: *requesterID,
		Query:       queryStr,
		Filters:     parseFilters(*filtersFlag),
		Limit:       *limit,
	}

	var response *models.SearchResponse
	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids an SQLite
		// lock conflict with the server process).
		response, err = searchViaHTTP(*serverURL, req)
	} else {
		response, err = searchDirect(*configPath, req)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, req *models.SearchRequest) (*models.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func searchDirect(configPath string, req *models.SearchRequest) (*models.SearchResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	return components.Engine.Search(context.Background(), req)
}

func runSuggest() {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct storage mode)")
	serverURL := fs.String("server", "http://localhost:8090", "server URL (empty = use direct storage)")
	requesterID := fs.String("requester", "", "user id the suggestions are for (required)")
	limit := fs.Int("limit", 0, "results per bucket (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *requesterID == "" {
		fmt.Fprintln(os.Stderr, "--requester is required")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var response *models.SuggestionResponse
	if *serverURL != "" {
		response, err = suggestViaHTTP(*serverURL, *requesterID, *limit)
	} else {
		response, err = suggestDirect(*configPath, *requesterID, *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Suggestions failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSuggestions(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func suggestViaHTTP(serverURL, requesterID string, limit int) (*models.SuggestionResponse, error) {
	u := serverURL + "/api/v1/suggestions?requester_id=" + url.QueryEscape(requesterID)
	if limit > 0 {
		u += "&limit=" + strconv.Itoa(limit)
	}
	resp, err := http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SuggestionResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func suggestDirect(configPath, requesterID string, limit int) (*models.SuggestionResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	return components.Suggester.Suggest(context.Background(), requesterID, limit)
}

// statusResponse is the shape of the GET /api/v1/status response.
type statusResponse struct {
	Users          int64                  `json:"users"`
	Messages       int64                  `json:"messages"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct storage mode)")
	serverURL := fs.String("server", "http://localhost:8090", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()

		ctx := context.Background()
		userCount, err := components.Store.CountUsers(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count users failed: %v\n", err)
			os.Exit(1)
		}
		messageCount, err := components.Store.CountMessages(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count messages failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Users:    userCount,
			Messages: messageCount,
			Config: map[string]interface{}{
				"message_index": cfg.Storage.MessageIndex,
				"database_path": cfg.Storage.DatabasePath,
			},
		}
		diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath)
		if err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("users:            %d\n", status.Users)
		fmt.Printf("messages:         %d\n", status.Messages)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes: %d\n", *status.DiskUsageBytes)
		}
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"message_index", "database_path", "bleve_index_path", "default_limit", "per_source_limit", "source_timeout_ms", "frequent_window_days"} {
				if v, ok := status.Config[key]; ok {
					fmt.Printf("%-21s %v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: omnisearch search --requester <user-id> [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  omnisearch search --requester u1 john doe
  omnisearch search --requester u1 "john doe"            # same as above
  omnisearch search --requester u1 --filters contacts,users john
  omnisearch search --requester u1 --filters unread john  # only unread matches
  omnisearch search --requester u1 0244123456             # phone number lookup
`)
}

func printUsage() {
	fmt.Println(`omnisearch - unified search across contacts, users, groups, conversations, and messages

Usage:
  omnisearch server [flags]            Start the HTTP server
  omnisearch search [flags] <query>    Search as a user
  omnisearch suggest [flags]           Show the empty-query suggestions for a user
  omnisearch status [flags]            Show storage/index status
  omnisearch version                   Show version
  omnisearch help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/omnisearch/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --requester string  User id the search runs as (required)
  --server string     Server URL (default: http://localhost:8090). Use empty (--server "") for direct storage.
  --config string     Config file path (for direct storage mode)
  --filters string    Comma-separated: contacts,users,groups,messages,unread
  --limit int         Number of results (0 = server default)
  --output string     Output format: text, compact, or json

Suggest Flags:
  --requester string  User id the suggestions are for (required)
  --server string     Server URL (default: http://localhost:8090). Use empty for direct storage.
  --limit int         Results per bucket (0 = server default)
  --output string     Output format: text or json

Status Flags:
  --server string    Server URL (default: http://localhost:8090). Use empty for direct storage.
  --config string    Config file path (for direct storage mode)
  --output string    Output format: text or json

Examples:
  omnisearch server
  omnisearch search --requester u1 "john doe"
  omnisearch search --requester u1 --filters messages --output json lunch
  omnisearch suggest --requester u1
  omnisearch status --output json`)
}
