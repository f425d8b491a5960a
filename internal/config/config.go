package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat represents the logging output format
type LogFormat string

const (
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

// LogConfig holds configuration for application logging
type LogConfig struct {
	Level      LogLevel  `yaml:"level"`
	Format     LogFormat `yaml:"format"`
	OutputPath string    `yaml:"output_path"`
}

// ChainConfig holds configuration for one EVM chain the indexer watches.
// FirstBlock and BackfillWindow default from the static registry table
// (internal/bridge/registry) when left zero, per SPEC_FULL.md §4.I.
type ChainConfig struct {
	// Name is the short chain identifier, e.g. "ethereum", "bsc".
	Name string `yaml:"name"`
	// ChainID is the EVM numeric chain id.
	ChainID int64 `yaml:"chain_id"`
	// RPCURL is the JSON-RPC HTTP(S) endpoint for this chain.
	RPCURL string `yaml:"rpc_url"`
	// BridgeAddress is the bridge contract address emitting the nine topics.
	BridgeAddress string `yaml:"bridge_address"`
	// PoolAddresses maps a pool name (e.g. "nusd", "neth") to its contract address.
	PoolAddresses map[string]string `yaml:"pool_addresses"`
	// FirstBlock is the first block at which the bridge contract can emit events;
	// backfill never looks earlier than this even if the checkpoint is empty.
	FirstBlock uint64 `yaml:"first_block"`
	// BackfillWindow overrides the default per-chain eth_getLogs window size
	// (spec.md §4.E); zero means "use the registry default for this chain".
	BackfillWindow uint64 `yaml:"backfill_window"`
	// IsPoA indicates the chain requires the PoA extraData-stripping transform
	// (spec.md §6); every chain except mainnet ethereum requires it.
	IsPoA bool `yaml:"is_poa"`
}

// Config holds the application configuration.
type Config struct {
	// DBPath is the path to the SQLite database file backing the
	// persistence adapters described in SPEC_FULL.md §4.L.
	DBPath string `yaml:"db_path"`
	// MigrationsPath is the path to the migration files.
	MigrationsPath string `yaml:"migrations_path"`
	// Testing disables persistence writes, per spec.md §6.
	Testing bool `yaml:"testing"`
	// Log holds the logging configuration.
	Log LogConfig `yaml:"log"`
	// Chains holds per-chain configuration keyed by short chain name.
	Chains map[string]ChainConfig `yaml:"chains"`
}

// LoadConfig loads the application configuration from a YAML file and
// environment variables, following the teacher's CONFIG_PATH/.env idiom.
func LoadConfig() (*Config, error) {
	loadEnvFiles()

	cfg := &Config{}
	var yamlData []byte
	var err error

	configPaths := []string{
		os.Getenv("CONFIG_PATH"),
		".config.yaml",
		"../.config.yaml",
	}

	for _, path := range configPaths {
		if path == "" {
			continue
		}
		if yamlData, err = os.ReadFile(path); err == nil {
			fmt.Printf("Loading config from %s\n", path)
			break
		}
	}

	if err != nil {
		fmt.Printf("No config file found, using environment variables\n")
		return loadFromEnvironment(), nil
	}

	interpolated := interpolateEnvVars(string(yamlData))
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// interpolateEnvVars replaces environment variables with their values,
// supporting default values via ${VAR:-default}.
func interpolateEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z0-9_]+)`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		varName := match
		defaultValue := ""

		varName = strings.TrimPrefix(varName, "${")
		varName = strings.TrimPrefix(varName, "$")
		varName = strings.TrimSuffix(varName, "}")

		if strings.Contains(varName, ":-") {
			parts := strings.SplitN(varName, ":-", 2)
			varName = parts[0]
			defaultValue = parts[1]
		}

		if value, exists := os.LookupEnv(varName); exists && value != "" {
			return value
		}

		return defaultValue
	})
}

// loadFromEnvironment builds a Config purely from environment variables,
// one RPC URL per chain (ETH_RPC, BSC_RPC, ...) per spec.md §6.
func loadFromEnvironment() *Config {
	baseDir := os.Getenv("APP_BASE_DIR")
	if baseDir == "" {
		currentDir, _ := os.Getwd()
		baseDir = currentDir
	}

	cfg := &Config{
		DBPath:         getEnv("DB_PATH", filepath.Join(baseDir, "bridge_indexer.db")),
		MigrationsPath: getEnv("MIGRATIONS_PATH", filepath.Join(baseDir, "migrations")),
		Testing:        parseEnvBool("TESTING", false),
		Log: LogConfig{
			Level:      LogLevel(getEnv("LOG_LEVEL", string(LogLevelInfo))),
			Format:     LogFormat(getEnv("LOG_FORMAT", string(LogFormatConsole))),
			OutputPath: getEnv("LOG_OUTPUT_PATH", "stdout"),
		},
		Chains: loadChainsFromEnvironment(),
	}

	return cfg
}

// envPrefixes maps a short chain name to the environment variable prefix
// the teacher's config idiom uses, e.g. "ethereum" -> "ETH".
var envPrefixes = map[string]string{
	"ethereum":  "ETH",
	"bsc":       "BSC",
	"polygon":   "POLYGON",
	"avalanche": "AVALANCHE",
	"arbitrum":  "ARBITRUM",
	"fantom":    "FANTOM",
	"harmony":   "HARMONY",
	"boba":      "BOBA",
	"moonriver": "MOONRIVER",
	"optimism":  "OPTIMISM",
	"aurora":    "AURORA",
	"moonbeam":  "MOONBEAM",
	"cronos":    "CRONOS",
	"metis":     "METIS",
}

// loadChainsFromEnvironment reads RPC URLs from the environment for every
// chain named in the static registry; a chain whose RPC URL env var is
// unset is simply not started.
func loadChainsFromEnvironment() map[string]ChainConfig {
	chains := make(map[string]ChainConfig)
	for name, prefix := range envPrefixes {
		rpcURL := os.Getenv(prefix + "_RPC")
		if rpcURL == "" {
			continue
		}
		chains[name] = ChainConfig{
			Name:          name,
			RPCURL:        rpcURL,
			BridgeAddress: os.Getenv(prefix + "_BRIDGE_ADDRESS"),
			IsPoA:         name != "ethereum",
		}
	}
	return chains
}

// loadEnvFiles tries to load environment variables from .env files in
// multiple locations, exactly as the teacher's config idiom does.
func loadEnvFiles() {
	customEnvPath := os.Getenv("ENV_FILE")
	if customEnvPath != "" {
		if err := godotenv.Load(customEnvPath); err != nil {
			fmt.Printf("Warning: could not load custom .env file from %s: %v\n", customEnvPath, err)
		} else {
			fmt.Printf("Loaded environment variables from custom .env file: %s\n", customEnvPath)
			return
		}
	}

	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded environment variables from .env file")
		return
	}

	if err := godotenv.Load("../.env"); err == nil {
		fmt.Println("Loaded environment variables from ../.env file")
		return
	}

	fmt.Println("No .env file found, using default values")
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
