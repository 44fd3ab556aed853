package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-auth/internal/constants"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Web       WebConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Embedding EmbeddingConfig
	Match     MatchConfig
	JWT       JWTConfig
	Password  PasswordConfig
	Tokens    TokensConfig

	// ClientsFile is the YAML file listing the clients provisioned at start-up.
	ClientsFile string
}

type WebConfig struct {
	Host           string   // defaults to 0.0.0.0
	Port           int      // defaults to 8080
	AllowedOrigins []string // CORS origins besides localhost
}

type DatabaseConfig struct {
	Driver       string // postgres (default) or mariadb
	URL          string // connection URL / DSN
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
	ClearOnStart bool   // Drop all stored data before provisioning clients
}

type RedisConfig struct {
	URL string // optional; refresh tokens are kept in Redis when set
}

type EmbeddingConfig struct {
	URL     string        // defaults to http://localhost:8000
	Dim     int           // expected embedding length, 0 disables the check
	Quality string        // fast or accurate
	Timeout time.Duration // per-extraction deadline
}

type MatchConfig struct {
	Distance        string  // euclidean or cosine
	Cutoff          float64 // an embedding matches when distance <= Cutoff
	Threshold       float64 // minimum match fraction (exclusive)
	Policy          string  // first or best
	Index           string  // none or hnsw
	IndexCandidates int     // neighbours requested from the index
}

type JWTConfig struct {
	Secret          string
	Algorithm       string
	AccessLifespan  Lifespan
	RefreshLifespan Lifespan
}

// Lifespan is a token lifetime expressed the way operators configure it.
type Lifespan struct {
	Days    int
	Hours   int
	Minutes int
}

// Duration converts the lifespan into a time.Duration.
func (l Lifespan) Duration() time.Duration {
	return time.Duration(l.Days)*24*time.Hour +
		time.Duration(l.Hours)*time.Hour +
		time.Duration(l.Minutes)*time.Minute
}

type PasswordConfig struct {
	HashFunction string
	GlobalSalt   string
	Iterations   int
}

type TokensConfig struct {
	SweepInterval time.Duration
}

// Client is a provisioned API client as listed in the clients file.
type Client struct {
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
}

type clientsFile struct {
	Clients []Client `yaml:"clients"`
}

// Quality values understood by the embedding server.
const (
	QualityFast     = "fast"
	QualityAccurate = "accurate"
)

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	return &Config{
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(envString("DATABASE_DRIVER", "postgres")),
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ClearOnStart: envBool("DATABASE_CLEAR_ON_START", false),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Embedding: EmbeddingConfig{
			URL:     envString("EMBEDDING_URL", "http://localhost:8000"),
			Dim:     envInt("EMBEDDING_DIM", 0),
			Quality: strings.ToLower(envString("EMBEDDING_QUALITY", QualityAccurate)),
			Timeout: time.Duration(envInt("EMBEDDING_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Match: MatchConfig{
			Distance:        strings.ToLower(envString("MATCH_DISTANCE", "euclidean")),
			Cutoff:          envFloat("MATCH_CUTOFF", constants.DefaultMatchCutoff),
			Threshold:       envFloat("MATCH_PROB_THRESHOLD", constants.DefaultProbThreshold),
			Policy:          strings.ToLower(envString("MATCH_POLICY", "first")),
			Index:           strings.ToLower(envString("MATCH_INDEX", "none")),
			IndexCandidates: envInt("MATCH_INDEX_CANDIDATES", 100),
		},
		JWT: JWTConfig{
			Secret:    os.Getenv("JWT_SECRET"),
			Algorithm: strings.ToUpper(envString("JWT_ALGORITHM", "HS256")),
			AccessLifespan: Lifespan{
				Days:    envInt("JWT_ACCESS_EXPIRE_DAYS", 0),
				Hours:   envInt("JWT_ACCESS_EXPIRE_HOURS", 0),
				Minutes: envInt("JWT_ACCESS_EXPIRE_MINUTES", 30),
			},
			RefreshLifespan: Lifespan{
				Days:    envInt("JWT_REFRESH_EXPIRE_DAYS", 7),
				Hours:   envInt("JWT_REFRESH_EXPIRE_HOURS", 0),
				Minutes: envInt("JWT_REFRESH_EXPIRE_MINUTES", 0),
			},
		},
		Password: PasswordConfig{
			HashFunction: strings.ToLower(envString("PASSWORD_HASH_FUNCTION", "sha256")),
			GlobalSalt:   os.Getenv("PASSWORD_GLOBAL_SALT"),
			Iterations:   envInt("PASSWORD_HASH_ITERATIONS", 100000),
		},
		Tokens: TokensConfig{
			SweepInterval: time.Duration(envInt("TOKEN_SWEEP_INTERVAL_MINUTES", 60)) * time.Minute,
		},
		ClientsFile: envString("CLIENTS_FILE", "clients.yaml"),
	}
}

// Validate reports the first configuration problem that would make the
// identity services unusable.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	switch c.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWT.Algorithm)
	}
	if c.JWT.AccessLifespan.Duration() <= 0 {
		return errors.New("access token lifespan must be positive")
	}
	if c.JWT.RefreshLifespan.Duration() <= 0 {
		return errors.New("refresh token lifespan must be positive")
	}
	if c.Password.GlobalSalt == "" {
		return errors.New("PASSWORD_GLOBAL_SALT environment variable is required")
	}
	if c.Password.Iterations <= 0 {
		return errors.New("PASSWORD_HASH_ITERATIONS must be positive")
	}
	switch c.Embedding.Quality {
	case QualityFast, QualityAccurate:
	default:
		return fmt.Errorf("unsupported EMBEDDING_QUALITY %q", c.Embedding.Quality)
	}
	if c.Match.Threshold < 0 || c.Match.Threshold >= 1 {
		return fmt.Errorf("MATCH_PROB_THRESHOLD must be in [0, 1), got %v", c.Match.Threshold)
	}
	if c.Match.Cutoff <= 0 {
		return fmt.Errorf("MATCH_CUTOFF must be positive, got %v", c.Match.Cutoff)
	}
	return nil
}

// LoadClients reads the provisioned clients from a YAML file of the form
//
//	clients:
//	  - login: door-terminal-1
//	    password: secret
func LoadClients(path string) ([]Client, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("reading clients file: %w", err)
	}
	return ParseClients(data)
}

// ParseClients decodes the clients YAML document.
func ParseClients(data []byte) ([]Client, error) {
	var f clientsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing clients file: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Clients))
	for i, c := range f.Clients {
		if c.Login == "" || c.Password == "" {
			return nil, fmt.Errorf("client #%d: login and password are required", i+1)
		}
		if _, dup := seen[c.Login]; dup {
			return nil, fmt.Errorf("client %q listed twice", c.Login)
		}
		seen[c.Login] = struct{}{}
	}
	return f.Clients, nil
}
