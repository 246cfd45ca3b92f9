package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultChunkSize     = 3 * 1024 * 1024
	DefaultMaxChunkBytes = 64 * 1024 * 1024
	DefaultPortStart     = 8000
	DefaultPortEnd       = 9000
)

// Config holds tsb configuration. Fields are unexported to prevent modification.
type Config struct {
	receiveDir         string
	chunkSize          int
	maxChunkBytes      int64
	hashAlgorithm      string
	tunnelProvider     string
	portStart          int
	portEnd            int
	httpTimeout        time.Duration
	logFile            string
	logLevel           string
	stunServerAddr     string
	ngrokAuthToken     string
	tokenFile          string
	serviceName        string
	serviceDisplayName string
	serviceDescription string
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return home
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func New() *Config {
	_ = godotenv.Load() // ignore error if .env not found

	home := homeDir()
	cfg := &Config{
		receiveDir:         getenv("TSB_RECEIVE_DIR", filepath.Join(home, "Desktop", "TSB_Received")),
		chunkSize:          getenvInt("TSB_CHUNK_SIZE", DefaultChunkSize),
		maxChunkBytes:      int64(getenvInt("TSB_MAX_CHUNK_BYTES", DefaultMaxChunkBytes)),
		hashAlgorithm:      getenv("TSB_HASH_ALGO", "md5"),
		tunnelProvider:     getenv("TSB_TUNNEL", "ngrok"),
		portStart:          getenvInt("TSB_PORT_RANGE_START", DefaultPortStart),
		portEnd:            getenvInt("TSB_PORT_RANGE_END", DefaultPortEnd),
		httpTimeout:        time.Duration(getenvInt("TSB_HTTP_TIMEOUT_SEC", 60)) * time.Second,
		logFile:            getenv("TSB_LOG_FILE", "tsb.log"),
		logLevel:           getenv("TSB_LOG_LEVEL", "info"),
		stunServerAddr:     os.Getenv("TSB_STUN_SERVER"),
		ngrokAuthToken:     os.Getenv("NGROK_AUTHTOKEN"),
		tokenFile:          getenv("TSB_TOKEN_FILE", filepath.Join(home, ".tsb_ngrok_token")),
		serviceName:        getenv("SERVICE_NAME", "tsb-receiver"),
		serviceDisplayName: getenv("SERVICE_DISPLAY_NAME", "TSB Receiver"),
		serviceDescription: getenv("SERVICE_DESCRIPTION", "Receives files sent with tsb over a public tunnel"),
	}
	if cfg.portEnd <= cfg.portStart {
		cfg.portStart, cfg.portEnd = DefaultPortStart, DefaultPortEnd
	}
	return cfg
}

// Getter methods (immutable from outside)

func (c *Config) ReceiveDir() string {
	return c.receiveDir
}

func (c *Config) ChunkSize() int {
	return c.chunkSize
}

func (c *Config) MaxChunkBytes() int64 {
	return c.maxChunkBytes
}

func (c *Config) HashAlgorithm() string {
	return c.hashAlgorithm
}

func (c *Config) TunnelProvider() string {
	return c.tunnelProvider
}

func (c *Config) PortRange() (int, int) {
	return c.portStart, c.portEnd
}

func (c *Config) HTTPTimeout() time.Duration {
	return c.httpTimeout
}

func (c *Config) LogFile() string {
	return c.logFile
}

func (c *Config) LogLevel() string {
	return c.logLevel
}

func (c *Config) StunServerAddr() string {
	return c.stunServerAddr
}

func (c *Config) NgrokAuthToken() string {
	return c.ngrokAuthToken
}

func (c *Config) TokenFile() string {
	return c.tokenFile
}

func (c *Config) ServiceName() string {
	return c.serviceName
}

func (c *Config) ServiceDisplayName() string {
	return c.serviceDisplayName
}

func (c *Config) ServiceDescription() string {
	return c.serviceDescription
}

// EnsureReceiveDir creates the receive folder if it does not exist yet.
func (c *Config) EnsureReceiveDir() error {
	return os.MkdirAll(c.receiveDir, 0755)
}
