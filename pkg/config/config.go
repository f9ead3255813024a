package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingConfig = errors.New("missing required configuration")
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DBTypeFile     = "file"
	DBTypeMemory   = "memory"
	DBTypePostgres = "postgres"

	CooldownNone   = "none"
	CooldownMemory = "memory"
	CooldownRecord = "record"
	CooldownRedis  = "redis"
)

// Config holds all configuration for the service
type Config struct {
	App      AppConfig
	DB       DBConfig
	MQTT     MQTTConfig
	Profiles ProfileConfig
	Actuator ActuatorConfig
	Push     PushConfig
	Cooldown CooldownConfig
	Dedup    DedupConfig
	State    StateConfig
	Server   ServerConfig
}

type AppConfig struct {
	Env string
}

type DBConfig struct {
	Type string
	Path string
	DSN  string
}

type MQTTConfig struct {
	URL           string
	ApplicationID string
	ClientID      string
	Username      string
	Password      string
	QoS           byte
}

// Topic is the uplink topic of every device of the application.
func (m MQTTConfig) Topic() string {
	return fmt.Sprintf("application/%s/device/+/event/up", m.ApplicationID)
}

type ProfileConfig struct {
	SmokeID        string
	TempHumidityID string
	ButtonID       string
}

type ActuatorConfig struct {
	APIURL       string
	APIToken     string
	DownlinkData string
	FPort        int
	Confirmed    bool
	Type         string
	ListLimit    int
	MaxInFlight  int
	HTTPTimeout  time.Duration
}

type PushConfig struct {
	ProjectID       string
	CredentialsFile string
	ClientEmail     string
	PrivateKey      string
	UserListLimit   int
}

type CooldownConfig struct {
	Policy        string
	Window        time.Duration
	RedisAddr     string
	RedisPassword string
}

type DedupConfig struct {
	Enabled                bool
	FilterCapacity         uint
	DuplicationProbability float64
	ResetUsagePercentage   float32
}

type StateConfig struct {
	ClearTurnOnTime       bool
	ClearLastNotification bool
}

type ServerConfig struct {
	HTTPHostPort string
	GRPCHostPort string
}

// Load reads .env (when present) and the process environment, then validates
// the result. Every missing required key is reported at once.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds the configuration from any key lookup function.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	r := &reader{lookup: lookup}
	qos := r.integer("MQTT_QOS", 0)
	filterCapacity := r.integer("FILTER_CAPACITY", 1000000)

	cfg := &Config{
		App: AppConfig{
			Env: r.optional("GO_ENV", "development"),
		},
		DB: DBConfig{
			Type: r.optional("IOT_DB_TYPE", DBTypeFile),
			Path: r.optional("IOT_DB_PATH", "sensors.db"),
			DSN:  r.optional("DB_DSN", ""),
		},
		MQTT: MQTTConfig{
			URL:           r.required("MQTT_URL"),
			ApplicationID: r.required("APPLICATION_ID"),
			ClientID:      r.optional("MQTT_CLIENT_ID", "iot-fire-alarm-service"),
			Username:      r.optional("MQTT_USERNAME", ""),
			Password:      r.optional("MQTT_PASSWORD", ""),
			QoS:           byte(qos),
		},
		Profiles: ProfileConfig{
			SmokeID:        r.required("SMOKE_PROFILE_ID"),
			TempHumidityID: r.required("TEMP_HUM_PROFILE_ID"),
			ButtonID:       r.required("BUTTON_PROFILE_ID"),
		},
		Actuator: ActuatorConfig{
			APIURL:       strings.TrimRight(r.required("ACTUATOR_API_URL"), "/"),
			APIToken:     r.required("ACTUATOR_API_TOKEN"),
			DownlinkData: r.required("ACTUATOR_DOWNLINK_DATA"),
			FPort:        r.integer("ACTUATOR_FPORT", 10),
			Confirmed:    r.boolean("ACTUATOR_CONFIRMED", true),
			Type:         r.optional("ACTUATOR_TYPE", "Speaker"),
			ListLimit:    r.integer("ACTUATOR_LIST_LIMIT", 100000),
			MaxInFlight:  r.integer("ACTUATOR_MAX_INFLIGHT", 0),
			HTTPTimeout:  r.duration("ACTUATOR_HTTP_TIMEOUT", 10*time.Second),
		},
		Push: PushConfig{
			ProjectID:       r.required("FCM_PROJECT_ID"),
			CredentialsFile: r.optional("FCM_CREDENTIALS_FILE", ""),
			ClientEmail:     r.optional("FCM_CLIENT_EMAIL", ""),
			// keys pasted into env files carry literal \n sequences
			PrivateKey:    strings.ReplaceAll(r.optional("FCM_PRIVATE_KEY", ""), `\n`, "\n"),
			UserListLimit: r.integer("USER_LIST_LIMIT", 100000),
		},
		Cooldown: CooldownConfig{
			Policy:        strings.ToLower(r.optional("COOLDOWN_POLICY", CooldownNone)),
			Window:        r.duration("COOLDOWN_WINDOW", 5*time.Minute),
			RedisAddr:     r.optional("REDIS_ADDR", ""),
			RedisPassword: r.optional("REDIS_PASSWORD", ""),
		},
		Dedup: DedupConfig{
			Enabled:                r.optional("DUPLICATION_FILTER", "0") == "1",
			FilterCapacity:         uint(max(filterCapacity, 0)),
			DuplicationProbability: r.float("DUPLICATION_PROBABILITY", 0.01),
			ResetUsagePercentage:   float32(r.float("RESET_FILTER_USAGE_PERCENTAGE", 75)),
		},
		State: StateConfig{
			ClearTurnOnTime:       r.boolean("STATE_CLEAR_TURN_ON_TIME", true),
			ClearLastNotification: r.boolean("STATE_CLEAR_LAST_NOTIFICATION", true),
		},
		Server: ServerConfig{
			HTTPHostPort: r.optional("IOT_HTTP_HOST_PORT", ":1080"),
			GRPCHostPort: r.optional("IOT_GRPC_HOST_PORT", ""),
		},
	}

	if cfg.Push.CredentialsFile == "" {
		r.requireSet("FCM_CLIENT_EMAIL", cfg.Push.ClientEmail)
		r.requireSet("FCM_PRIVATE_KEY", cfg.Push.PrivateKey)
	}

	switch cfg.DB.Type {
	case DBTypeFile, DBTypeMemory:
	case DBTypePostgres:
		r.requireSet("DB_DSN", cfg.DB.DSN)
	default:
		r.invalidf("IOT_DB_TYPE: unknown database type %q", cfg.DB.Type)
	}

	switch cfg.Cooldown.Policy {
	case CooldownNone, CooldownMemory:
	case CooldownRecord:
		// clearing the stamp on every smoke write would reopen the window
		cfg.State.ClearLastNotification = false
	case CooldownRedis:
		r.requireSet("REDIS_ADDR", cfg.Cooldown.RedisAddr)
	default:
		r.invalidf("COOLDOWN_POLICY: unknown policy %q", cfg.Cooldown.Policy)
	}

	if qos < 0 || qos > 2 {
		r.invalidf("MQTT_QOS: must be 0, 1 or 2, got %d", qos)
	}
	if filterCapacity < 1 {
		r.invalidf("FILTER_CAPACITY: must be at least 1, got %d", filterCapacity)
	}

	if err := r.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type reader struct {
	lookup  func(string) (string, bool)
	missing []string
	invalid []string
}

func (r *reader) value(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) required(key string) string {
	v, ok := r.value(key)
	if !ok {
		r.missing = append(r.missing, key)
	}
	return v
}

func (r *reader) requireSet(key, v string) {
	if v == "" {
		r.missing = append(r.missing, key)
	}
}

func (r *reader) optional(key, fallback string) string {
	if v, ok := r.value(key); ok {
		return v
	}
	return fallback
}

func (r *reader) integer(key string, fallback int) int {
	v, ok := r.value(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.invalidf("%s: %q is not an integer", key, v)
		return fallback
	}
	return n
}

func (r *reader) float(key string, fallback float64) float64 {
	v, ok := r.value(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.invalidf("%s: %q is not a number", key, v)
		return fallback
	}
	return f
}

func (r *reader) boolean(key string, fallback bool) bool {
	v, ok := r.value(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.invalidf("%s: %q is not a boolean", key, v)
		return fallback
	}
	return b
}

func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := r.value(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.invalidf("%s: %q is not a duration", key, v)
		return fallback
	}
	return d
}

func (r *reader) invalidf(format string, args ...any) {
	r.invalid = append(r.invalid, fmt.Sprintf(format, args...))
}

func (r *reader) err() error {
	var err error
	if len(r.missing) > 0 {
		err = fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(r.missing, ", "))
	}
	if len(r.invalid) > 0 {
		err = errors.Join(err, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(r.invalid, "; ")))
	}
	return err
}
