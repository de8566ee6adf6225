package config

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config is the relay server's configuration, read from the environment and
// an optional .env file in the working directory.
type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	LogLevel         string   `mapstructure:"LOG_LEVEL"`
	InfuraProjectID  string   `mapstructure:"INFURA_PROJECT_ID"`
	InfuraNetwork    string   `mapstructure:"INFURA_NETWORK"`
	NodeURL          string   `mapstructure:"NODE_URL"`
	ContractAddress  string   `mapstructure:"CONTRACT_ADDRESS"`
	PrivateKey       string   `mapstructure:"PRIVATE_KEY"`
	OpenAIKey        string   `mapstructure:"OPENAI_API"`
	OpenAIBaseURL    string   `mapstructure:"OPENAI_BASE_URL"`
	InsightModel     string   `mapstructure:"INSIGHT_MODEL"`
	InsightMaxTokens int      `mapstructure:"INSIGHT_MAX_TOKENS"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	BodyLimit        string   `mapstructure:"BODY_LIMIT"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
}

var serverKeys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"INFURA_PROJECT_ID", "INFURA_NETWORK", "NODE_URL",
	"CONTRACT_ADDRESS", "PRIVATE_KEY",
	"OPENAI_API", "OPENAI_BASE_URL", "INSIGHT_MODEL", "INSIGHT_MAX_TOKENS",
	"CORS_ORIGINS", "BODY_LIMIT",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
}

// Load reads the configuration without checking it. Call Validate before
// serving.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "3000")
	v.SetDefault("ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("INFURA_NETWORK", "sepolia")
	v.SetDefault("INSIGHT_MODEL", "gpt-3.5-turbo")
	v.SetDefault("INSIGHT_MAX_TOKENS", 150)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("DB_MAX_CONNS", 5)
	v.SetDefault("DB_MIN_CONNS", 1)

	// Unmarshal only sees env vars that are bound explicitly.
	for _, key := range serverKeys {
		_ = v.BindEnv(key)
	}

	// .env is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 0 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ResolvedNodeURL is NODE_URL when set, else the Infura endpoint for the
// configured network.
func (c *Config) ResolvedNodeURL() string {
	if c.NodeURL != "" {
		return c.NodeURL
	}
	return fmt.Sprintf("https://%s.infura.io/v3/%s", c.InfuraNetwork, c.InfuraProjectID)
}

func (c *Config) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

var privateKeyPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

// Validate fails when a required key is missing or malformed. The server
// refuses to start on any error.
func (c *Config) Validate() error {
	var missing []string
	for key, val := range map[string]string{
		"INFURA_PROJECT_ID": c.InfuraProjectID,
		"CONTRACT_ADDRESS":  c.ContractAddress,
		"PRIVATE_KEY":       c.PrivateKey,
		"OPENAI_API":        c.OpenAIKey,
	} {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	var errs []error
	if !common.IsHexAddress(c.ContractAddress) {
		errs = append(errs, fmt.Errorf("CONTRACT_ADDRESS %q is not a valid address", c.ContractAddress))
	}
	// Never echo the key.
	if !privateKeyPattern.MatchString(strings.TrimSpace(c.PrivateKey)) {
		errs = append(errs, errors.New("PRIVATE_KEY must be 32 bytes of hex, optionally 0x-prefixed"))
	}
	if c.InsightMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("INSIGHT_MAX_TOKENS must be positive, got %d", c.InsightMaxTokens))
	}
	if c.DatabaseURL != "" && (c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns) {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS out of range: %d/%d", c.DBMinConns, c.DBMaxConns))
	}
	return errors.Join(errs...)
}
