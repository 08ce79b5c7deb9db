package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const envPrefix = "BUSTOGETHER_"

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Clean separation between configuration management and business logic
type Config struct {
	Database   *DatabaseConfig   `json:"database"`
	HTTP       *HTTPConfig       `json:"http"`
	WebSocket  *WebSocketConfig  `json:"websocket"`
	Chat       *ChatConfig       `json:"chat"`
	Moderation *ModerationConfig `json:"moderation"`
	Scheduler  *SchedulerConfig  `json:"scheduler"`
	Admin      *AdminConfig      `json:"admin"`
	LogLevel   string            `json:"log_level"`
}

type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

type HTTPConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	Host         string        `json:"host"`
}

// FUNCTIONAL DISCOVERY: Riders sit on a moving bus with patchy coverage, so the
// heartbeat stays generous and a dropped pong simply ends the participation
type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// ChatConfig holds per-connection limits enforced by the gateway
type ChatConfig struct {
	MaxMessageLength      int           `json:"max_message_length"`
	UsernameMinLength     int           `json:"username_min_length"`
	UsernameMaxLength     int           `json:"username_max_length"`
	MessageCooldown       time.Duration `json:"message_cooldown"`
	JoinAttemptsPerMinute int           `json:"join_attempts_per_minute"`
	ReportsPerMinute      int           `json:"reports_per_minute"`
}

// ModerationConfig holds the content policy
type ModerationConfig struct {
	KickThreshold         int      `json:"kick_threshold"`
	ReportDeleteThreshold int      `json:"report_delete_threshold"`
	BlockList             []string `json:"block_list"`
	UsernameScripts       []string `json:"username_scripts"`
}

// SchedulerConfig controls the window polling loop
// TECHNICAL DISCOVERY: Weekday and time-of-day are civil concepts, so windows are
// evaluated in the deployment's regional timezone rather than UTC
type SchedulerConfig struct {
	Interval time.Duration `json:"interval"`
	Timezone string        `json:"timezone"`
}

// AdminConfig protects the admin API. An empty token leaves it open.
type AdminConfig struct {
	Token string `json:"token"`
}

// DefaultBlockList is the built-in profanity list (Hebrew and English)
var DefaultBlockList = []string{
	"חרא", "זין", "כוס", "מניאק", "אידיוט",
	"fuck", "shit", "damn", "ass", "bitch", "idiot", "stupid",
}

// FUNCTIONAL DISCOVERY: Defaults mirror the limits riders were used to in the
// first deployment: 2s between messages, two strikes, three reports to delete
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./data/bustogether.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Chat: &ChatConfig{
			MaxMessageLength:      500,
			UsernameMinLength:     2,
			UsernameMaxLength:     20,
			MessageCooldown:       2 * time.Second,
			JoinAttemptsPerMinute: 5,
			ReportsPerMinute:      3,
		},
		Moderation: &ModerationConfig{
			KickThreshold:         2,
			ReportDeleteThreshold: 3,
			BlockList:             append([]string(nil), DefaultBlockList...),
			UsernameScripts:       []string{"Hebrew"},
		},
		Scheduler: &SchedulerConfig{
			Interval: time.Minute,
			Timezone: "Asia/Jerusalem",
		},
		Admin:    &AdminConfig{},
		LogLevel: "info",
	}
}

// Location resolves the configured timezone
func (s *SchedulerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// FUNCTIONAL DISCOVERY: Comprehensive validation prevents invalid system configurations
// Critical for preventing runtime failures in production deployment
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	// Port 0 asks the kernel for a free port
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 0 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket intervals must be positive")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.ReadTimeout {
		return fmt.Errorf("WebSocket ping interval must be shorter than read timeout")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.Chat == nil {
		return fmt.Errorf("chat configuration is required")
	}
	if c.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("max message length must be positive")
	}
	if c.Chat.UsernameMinLength <= 0 || c.Chat.UsernameMaxLength < c.Chat.UsernameMinLength {
		return fmt.Errorf("username length range is invalid")
	}
	if c.Chat.MessageCooldown < 0 {
		return fmt.Errorf("message cooldown cannot be negative")
	}
	if c.Chat.JoinAttemptsPerMinute <= 0 || c.Chat.ReportsPerMinute <= 0 {
		return fmt.Errorf("per-minute limits must be positive")
	}

	if c.Moderation == nil {
		return fmt.Errorf("moderation configuration is required")
	}
	if c.Moderation.KickThreshold <= 0 {
		return fmt.Errorf("kick threshold must be positive")
	}
	if c.Moderation.ReportDeleteThreshold <= 0 {
		return fmt.Errorf("report delete threshold must be positive")
	}

	if c.Scheduler == nil {
		return fmt.Errorf("scheduler configuration is required")
	}
	if c.Scheduler.Interval < time.Second {
		return fmt.Errorf("scheduler interval must be at least 1s")
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return err
	}

	if c.Admin == nil {
		c.Admin = &AdminConfig{}
	}

	return nil
}

// FUNCTIONAL DISCOVERY: Environment variable configuration enables deployment flexibility
// Unparseable values are ignored and the previous value stays in place
func LoadFromEnv() *Config {
	config := DefaultConfig()

	envString("DATABASE_PATH", &config.Database.Path)
	envDuration("DATABASE_TIMEOUT", &config.Database.Timeout)

	envInt("HTTP_PORT", &config.HTTP.Port)
	envString("HTTP_HOST", &config.HTTP.Host)
	envDuration("HTTP_READ_TIMEOUT", &config.HTTP.ReadTimeout)
	envDuration("HTTP_WRITE_TIMEOUT", &config.HTTP.WriteTimeout)

	envDuration("WEBSOCKET_PING_INTERVAL", &config.WebSocket.PingInterval)
	envDuration("WEBSOCKET_READ_TIMEOUT", &config.WebSocket.ReadTimeout)
	envDuration("WEBSOCKET_WRITE_TIMEOUT", &config.WebSocket.WriteTimeout)
	envInt("WEBSOCKET_BUFFER_SIZE", &config.WebSocket.BufferSize)

	envInt("CHAT_MAX_MESSAGE_LENGTH", &config.Chat.MaxMessageLength)
	envInt("CHAT_USERNAME_MIN_LENGTH", &config.Chat.UsernameMinLength)
	envInt("CHAT_USERNAME_MAX_LENGTH", &config.Chat.UsernameMaxLength)
	envDuration("CHAT_MESSAGE_COOLDOWN", &config.Chat.MessageCooldown)
	envInt("CHAT_JOIN_ATTEMPTS_PER_MINUTE", &config.Chat.JoinAttemptsPerMinute)
	envInt("CHAT_REPORTS_PER_MINUTE", &config.Chat.ReportsPerMinute)

	envInt("MODERATION_KICK_THRESHOLD", &config.Moderation.KickThreshold)
	envInt("MODERATION_REPORT_DELETE_THRESHOLD", &config.Moderation.ReportDeleteThreshold)
	envList("MODERATION_BLOCK_LIST", &config.Moderation.BlockList)
	envList("MODERATION_USERNAME_SCRIPTS", &config.Moderation.UsernameScripts)

	envDuration("SCHEDULER_INTERVAL", &config.Scheduler.Interval)
	envString("SCHEDULER_TIMEZONE", &config.Scheduler.Timezone)

	envString("ADMIN_TOKEN", &config.Admin.Token)
	envString("LOG_LEVEL", &config.LogLevel)

	return config
}

func envString(key string, dst *string) {
	if v := os.Getenv(envPrefix + key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(envPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envList(key string, dst *[]string) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

// ConfigFile represents the on-disk structure for file-based configuration
// FUNCTIONAL DISCOVERY: Separate struct for parsing to handle duration strings
// uniformly across JSON and YAML
type ConfigFile struct {
	Database   *DatabaseConfigFile   `json:"database" yaml:"database"`
	HTTP       *HTTPConfigFile       `json:"http" yaml:"http"`
	WebSocket  *WebSocketConfigFile  `json:"websocket" yaml:"websocket"`
	Chat       *ChatConfigFile       `json:"chat" yaml:"chat"`
	Moderation *ModerationConfigFile `json:"moderation" yaml:"moderation"`
	Scheduler  *SchedulerConfigFile  `json:"scheduler" yaml:"scheduler"`
	Admin      *AdminConfigFile      `json:"admin" yaml:"admin"`
	LogLevel   string                `json:"log_level" yaml:"log_level"`
}

type DatabaseConfigFile struct {
	Path    string `json:"path" yaml:"path"`
	Timeout string `json:"timeout" yaml:"timeout"`
}

type HTTPConfigFile struct {
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  string `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout string `json:"write_timeout" yaml:"write_timeout"`
	Host         string `json:"host" yaml:"host"`
}

type WebSocketConfigFile struct {
	PingInterval string `json:"ping_interval" yaml:"ping_interval"`
	ReadTimeout  string `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout string `json:"write_timeout" yaml:"write_timeout"`
	BufferSize   int    `json:"buffer_size" yaml:"buffer_size"`
}

type ChatConfigFile struct {
	MaxMessageLength      int    `json:"max_message_length" yaml:"max_message_length"`
	UsernameMinLength     int    `json:"username_min_length" yaml:"username_min_length"`
	UsernameMaxLength     int    `json:"username_max_length" yaml:"username_max_length"`
	MessageCooldown       string `json:"message_cooldown" yaml:"message_cooldown"`
	JoinAttemptsPerMinute int    `json:"join_attempts_per_minute" yaml:"join_attempts_per_minute"`
	ReportsPerMinute      int    `json:"reports_per_minute" yaml:"reports_per_minute"`
}

type ModerationConfigFile struct {
	KickThreshold         int      `json:"kick_threshold" yaml:"kick_threshold"`
	ReportDeleteThreshold int      `json:"report_delete_threshold" yaml:"report_delete_threshold"`
	BlockList             []string `json:"block_list" yaml:"block_list"`
	UsernameScripts       []string `json:"username_scripts" yaml:"username_scripts"`
}

type SchedulerConfigFile struct {
	Interval string `json:"interval" yaml:"interval"`
	Timezone string `json:"timezone" yaml:"timezone"`
}

type AdminConfigFile struct {
	Token string `json:"token" yaml:"token"`
}

// FUNCTIONAL DISCOVERY: File-based configuration supports complex deployment scenarios
// The format follows the extension: .yaml/.yml is YAML, everything else JSON
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := applyFile(config, path); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

func applyFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file ConfigFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	default:
		err = json.Unmarshal(data, &file)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return file.apply(config)
}

// apply overlays every field set in the file onto config
func (f *ConfigFile) apply(config *Config) error {
	var errs []string
	duration := func(name, raw string, dst *time.Duration) {
		if raw == "" {
			return
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			return
		}
		*dst = d
	}
	positive := func(v int, dst *int) {
		if v > 0 {
			*dst = v
		}
	}
	str := func(v string, dst *string) {
		if v != "" {
			*dst = v
		}
	}

	if f.Database != nil {
		str(f.Database.Path, &config.Database.Path)
		duration("database.timeout", f.Database.Timeout, &config.Database.Timeout)
	}
	if f.HTTP != nil {
		positive(f.HTTP.Port, &config.HTTP.Port)
		str(f.HTTP.Host, &config.HTTP.Host)
		duration("http.read_timeout", f.HTTP.ReadTimeout, &config.HTTP.ReadTimeout)
		duration("http.write_timeout", f.HTTP.WriteTimeout, &config.HTTP.WriteTimeout)
	}
	if f.WebSocket != nil {
		positive(f.WebSocket.BufferSize, &config.WebSocket.BufferSize)
		duration("websocket.ping_interval", f.WebSocket.PingInterval, &config.WebSocket.PingInterval)
		duration("websocket.read_timeout", f.WebSocket.ReadTimeout, &config.WebSocket.ReadTimeout)
		duration("websocket.write_timeout", f.WebSocket.WriteTimeout, &config.WebSocket.WriteTimeout)
	}
	if f.Chat != nil {
		positive(f.Chat.MaxMessageLength, &config.Chat.MaxMessageLength)
		positive(f.Chat.UsernameMinLength, &config.Chat.UsernameMinLength)
		positive(f.Chat.UsernameMaxLength, &config.Chat.UsernameMaxLength)
		positive(f.Chat.JoinAttemptsPerMinute, &config.Chat.JoinAttemptsPerMinute)
		positive(f.Chat.ReportsPerMinute, &config.Chat.ReportsPerMinute)
		duration("chat.message_cooldown", f.Chat.MessageCooldown, &config.Chat.MessageCooldown)
	}
	if f.Moderation != nil {
		positive(f.Moderation.KickThreshold, &config.Moderation.KickThreshold)
		positive(f.Moderation.ReportDeleteThreshold, &config.Moderation.ReportDeleteThreshold)
		if f.Moderation.BlockList != nil {
			config.Moderation.BlockList = f.Moderation.BlockList
		}
		if f.Moderation.UsernameScripts != nil {
			config.Moderation.UsernameScripts = f.Moderation.UsernameScripts
		}
	}
	if f.Scheduler != nil {
		duration("scheduler.interval", f.Scheduler.Interval, &config.Scheduler.Interval)
		str(f.Scheduler.Timezone, &config.Scheduler.Timezone)
	}
	if f.Admin != nil {
		str(f.Admin.Token, &config.Admin.Token)
	}
	str(f.LogLevel, &config.LogLevel)

	if len(errs) > 0 {
		return fmt.Errorf("invalid durations: %s", strings.Join(errs, "; "))
	}
	return nil
}

// FUNCTIONAL DISCOVERY: Configuration precedence: file > environment > defaults
// Enables flexible deployment patterns while maintaining sane defaults
func LoadConfigWithPrecedence(path string) (*Config, error) {
	config := LoadFromEnv()

	if path != "" {
		if err := applyFile(config, path); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
