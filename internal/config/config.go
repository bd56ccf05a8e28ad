package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Source tree
	SrcDir       string
	OutDir       string
	ModelsDir    string
	LayoutsDir   string
	ContentsFile string
	BlogFile     string

	// URLs. BaseURL has no trailing slash; "" serves from the root.
	BaseURL     string
	Prefix      string
	EditBaseURL string

	// Worker pool
	WorkerCount int

	// Query execution
	QueryRowLimit    int
	QueryTimeout     time.Duration
	QueryDataFile    string
	QueryBusyTimeout time.Duration

	// Validation
	ValidateAnchors       bool
	AbsoluteLinkAllowList []string

	// Watch mode
	WatchDebounce time.Duration

	// Highlighting
	InlineCodeLang string
	HighlightStyle string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		SrcDir:       envOr("DOCS_SRC_DIR", "src"),
		OutDir:       envOr("DOCS_OUT_DIR", "dist"),
		ModelsDir:    envOr("DOCS_MODELS_DIR", "models"),
		LayoutsDir:   envOr("DOCS_LAYOUTS_DIR", "layouts"),
		ContentsFile: envOr("DOCS_CONTENTS_FILE", "contents.json"),
		BlogFile:     envOr("DOCS_BLOG_FILE", "blog.json"),

		BaseURL:     strings.TrimSuffix(os.Getenv("DOCS_BASE_URL"), "/"),
		Prefix:      os.Getenv("DOCS_PREFIX"),
		EditBaseURL: os.Getenv("EDIT_BASE_URL"),

		WorkerCount: envInt("WORKER_COUNT", 4),

		QueryRowLimit:    envInt("QUERY_ROW_LIMIT", 5),
		QueryTimeout:     envDuration("QUERY_TIMEOUT", 30*time.Second),
		QueryDataFile:    envOr("QUERY_DATA_FILE", "data.db"),
		QueryBusyTimeout: envDuration("QUERY_BUSY_TIMEOUT", 5*time.Second),

		ValidateAnchors:       envBool("VALIDATE_ANCHORS", true),
		AbsoluteLinkAllowList: envList("ABSOLUTE_LINK_ALLOWLIST"),

		WatchDebounce: envDuration("WATCH_DEBOUNCE", 300*time.Millisecond),

		InlineCodeLang: os.Getenv("INLINE_CODE_LANG"),
		HighlightStyle: envOr("HIGHLIGHT_STYLE", "github"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.QueryRowLimit <= 0 {
		cfg.QueryRowLimit = 5
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	if cfg.QueryBusyTimeout < 0 {
		cfg.QueryBusyTimeout = 0
	}
	if cfg.WatchDebounce <= 0 {
		cfg.WatchDebounce = 300 * time.Millisecond
	}

	return cfg
}

func (c Config) Validate() error {
	if c.SrcDir == "" {
		return fmt.Errorf("DOCS_SRC_DIR is required")
	}
	if c.OutDir == "" {
		return fmt.Errorf("DOCS_OUT_DIR is required")
	}
	if st, err := os.Stat(c.SrcDir); err != nil {
		return fmt.Errorf("source dir: %w", err)
	} else if !st.IsDir() {
		return fmt.Errorf("source dir %s is not a directory", c.SrcDir)
	}
	for _, p := range c.AbsoluteLinkAllowList {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("ABSOLUTE_LINK_ALLOWLIST entry %q must start with /", p)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma separated value, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
