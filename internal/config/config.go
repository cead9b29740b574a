package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	NATS struct {
		URL    string             `mapstructure:"url"`
		Intake ConsumerNatsConfig `mapstructure:"intake"`
	} `mapstructure:"nats"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Sweeper SweeperConfig `mapstructure:"sweeper"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

// EngineConfig holds the lifecycle rules that are constants of the
// deployment, not per-tenant settings.
type EngineConfig struct {
	// SLAWindow is the inactivity window after which an open conversation is
	// considered breached.
	SLAWindow time.Duration `mapstructure:"slaWindow"`
	// DefaultPhoneRegion hints the phone parser for numbers without a
	// country prefix.
	DefaultPhoneRegion string `mapstructure:"defaultPhoneRegion"`
	// AttachConversationOnExistingCustomer opens a conversation instead of
	// rejecting the intake when the phone already belongs to a customer.
	AttachConversationOnExistingCustomer bool `mapstructure:"attachConversationOnExistingCustomer"`
	// RejectUnknownAgent fails the intake when a coupon/referral matches no
	// agent; otherwise attribution is skipped and the intake proceeds.
	RejectUnknownAgent bool `mapstructure:"rejectUnknownAgent"`
}

// SweeperConfig holds scheduling for the periodic SLA and overdue sweeps.
type SweeperConfig struct {
	// SLASchedule and TaskSchedule are cron expressions.
	SLASchedule  string `mapstructure:"slaSchedule"`
	TaskSchedule string `mapstructure:"taskSchedule"`
	// PoolSize is the number of concurrent per-conversation SLA checks.
	PoolSize int `mapstructure:"poolSize"`
	// SubmitTimeout bounds how long a sweep blocks handing work to the pool.
	SubmitTimeout time.Duration `mapstructure:"submitTimeout"`
}

// ConsumerNatsConfig holds configuration specific to a NATS consumer
type ConsumerNatsConfig struct {
	MaxAge       int64         `mapstructure:"maxAge"` // max age of messages in days
	Stream       string        `mapstructure:"stream"`
	Consumer     string        `mapstructure:"consumer"` // durable name
	QueueGroup   string        `mapstructure:"group"`
	SubjectList  []string      `mapstructure:"subjectList"`
	MaxDeliver   int           `mapstructure:"maxDeliver"`   // Max delivery attempts before parking
	NakBaseDelay time.Duration `mapstructure:"nakBaseDelay"` // Base delay for exponential backoff NAK
	NakMaxDelay  time.Duration `mapstructure:"nakMaxDelay"`  // Maximum delay for exponential backoff NAK
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("engine.slaWindow", 4*time.Hour)
	v.SetDefault("engine.defaultPhoneRegion", "US")
	v.SetDefault("engine.attachConversationOnExistingCustomer", false)
	v.SetDefault("engine.rejectUnknownAgent", false)

	v.SetDefault("sweeper.slaSchedule", "*/5 * * * *")
	v.SetDefault("sweeper.taskSchedule", "*/10 * * * *")
	v.SetDefault("sweeper.poolSize", 10)
	v.SetDefault("sweeper.submitTimeout", time.Second)

	v.SetDefault("nats.intake.stream", "crm_intake")
	v.SetDefault("nats.intake.consumer", "crm_intake_consumer")
	v.SetDefault("nats.intake.group", "crm_intake_group")
	v.SetDefault("nats.intake.subjectList", []string{"v1.crm.leads.intake", "v1.crm.conversations.message"})
	v.SetDefault("nats.intake.maxAge", int64(30))
	v.SetDefault("nats.intake.maxDeliver", 5)
	v.SetDefault("nats.intake.nakBaseDelay", 2*time.Second)
	v.SetDefault("nats.intake.nakMaxDelay", 5*time.Minute)

	// Config file settings
	v.SetConfigName("default")
	v.SetConfigType("yaml")

	// Add lookup paths
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("$HOME/.daisi-crm-engine")
	v.AddConfigPath("/etc/daisi-crm-engine")

	// Try to read from config file
	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map environment variables to config fields
	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
	}
	if window := os.Getenv("SLA_WINDOW"); window != "" {
		v.Set("engine.slaWindow", window)
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		// Get the field tag value (mapstructure)
		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		// Build the env var path
		path := append(parts, tag)
		key := strings.Join(path, ".")

		// If it's a struct, recursively bind its fields
		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		// Bind the env var
		_ = v.BindEnv(key)
	}
}
