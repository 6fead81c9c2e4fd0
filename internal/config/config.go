package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jimezsa/indeedhub/internal/models"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

const (
	DirName         = "indeedhub"
	ConfigFileName  = "config.json"
	ProxiesFileName = "proxies.txt"
	CookiesFileName = "cookies.json"
)

const (
	DetailWaitFixed = "fixed"
	DetailWaitPoll  = "poll"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Config contains default search and browser settings.
type Config struct {
	Origin               string   `json:"origin"`
	Region               string   `json:"region"`
	MaxResults           int      `json:"max_results"`
	Headless             bool     `json:"headless"`
	SessionPath          string   `json:"session_path"`
	BlockCheck           bool     `json:"block_check"`
	BlockMarkers         []string `json:"block_markers"`
	UserAgent            string   `json:"user_agent"`
	NavigationTimeoutSec int      `json:"navigation_timeout_sec"`
	CardTimeoutSec       int      `json:"card_timeout_sec"`
	DetailWait           string   `json:"detail_wait"`
	DetailDelayMS        int      `json:"detail_delay_ms"`
}

func DefaultConfig() Config {
	return Config{
		Origin:               envString("INDEEDHUB_ORIGIN", "https://ca.indeed.com"),
		Region:               envString("INDEEDHUB_REGION", "British Columbia"),
		MaxResults:           envInt("INDEEDHUB_MAX_RESULTS", 15),
		Headless:             envBool("INDEEDHUB_HEADLESS", true),
		SessionPath:          envString("INDEEDHUB_SESSION_PATH", ""),
		BlockCheck:           envBool("INDEEDHUB_BLOCK_CHECK", true),
		BlockMarkers:         []string{"hcaptcha", "cloudflare"},
		UserAgent:            envString("INDEEDHUB_USER_AGENT", defaultUserAgent),
		NavigationTimeoutSec: envInt("INDEEDHUB_NAVIGATION_TIMEOUT", 60),
		CardTimeoutSec:       envInt("INDEEDHUB_CARD_TIMEOUT", 30),
		DetailWait:           envString("INDEEDHUB_DETAIL_WAIT", DetailWaitFixed),
		DetailDelayMS:        envInt("INDEEDHUB_DETAIL_DELAY_MS", 3000),
	}
}

// ScraperConfig converts the file settings into the options consumed by scrapers.
func (c Config) ScraperConfig() models.ScraperConfig {
	return models.ScraperConfig{
		Origin:            strings.TrimRight(c.Origin, "/"),
		NavigationTimeout: seconds(c.NavigationTimeoutSec, 60),
		CardTimeout:       seconds(c.CardTimeoutSec, 30),
		BlockCheck:        c.BlockCheck,
		BlockMarkers:      append([]string(nil), c.BlockMarkers...),
	}
}

// DetailDelay is the pause after a card click, or the poll budget in poll mode.
func (c Config) DetailDelay() time.Duration {
	if c.DetailDelayMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.DetailDelayMS) * time.Millisecond
}

func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, DirName), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

func ProxiesPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ProxiesFileName), nil
}

func CookiesPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, CookiesFileName), nil
}

func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadFile(path)
}

// LoadFile reads a JSON5 config on top of the defaults. A missing or blank file yields the defaults.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}

	if err := json5.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Init writes default config.json and proxies.txt if they don't already exist.
func Init() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return InitDir(dir)
}

func InitDir(dir string) ([]string, error) {
	var created []string

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return created, err
	}

	configPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := writeConfig(configPath, DefaultConfig()); err != nil {
			return created, err
		}
		created = append(created, configPath)
	}

	proxiesPath := filepath.Join(dir, ProxiesFileName)
	if _, err := os.Stat(proxiesPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(proxiesPath, []byte(""), 0o644); err != nil {
			return created, err
		}
		created = append(created, proxiesPath)
	}

	return created, nil
}

func writeConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func LoadProxies(flagValue string) ([]string, error) {
	if strings.TrimSpace(flagValue) != "" {
		return splitCSV(flagValue), nil
	}

	if env := strings.TrimSpace(os.Getenv("INDEEDHUB_PROXIES")); env != "" {
		return splitCSV(env), nil
	}

	path, err := ProxiesPath()
	if err != nil {
		return nil, err
	}
	return readProxiesFile(path)
}

func readProxiesFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var proxies []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxies = append(proxies, line)
	}
	return proxies, nil
}

func seconds(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

func envString(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
