package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const fileEnvKey = "ZONING_CONFIG_FILE"

type Config struct {
	APIPort  string
	LogLevel string

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string
	OllamaTimeout    time.Duration

	IndexBackend        string
	IndexPath           string
	IndexCollection     string
	IndexCompress       bool
	IndexBuildOnStartup bool
	QdrantURL           string

	DocumentsPath string

	ChunkSize          int
	ChunkOverlap       int
	EmbedBatchSize     int
	RAGTopK            int
	ExtractMaxAttempts int

	GISGeocoderURL     string
	GISParcelsURL      string
	GISBaseZoningURL   string
	GISOverlaysURL     string
	GISFloodHazardsURL string
	GISTimeout         time.Duration

	APIKey               string
	APIRateLimitRPS      float64
	APIRateLimitBurst    int
	APIMaxInFlight       int
	APIBackpressureWait  time.Duration
	APIRequestTimeout    time.Duration
	APIOpenAPIValidation bool

	ResilienceRetryMaxAttempts      int
	ResilienceGenerateMaxAttempts   int
	ResilienceRetryInitialBackoff   time.Duration
	ResilienceRetryMaxBackoff       time.Duration
	ResilienceBreakerEnabled        bool
	ResilienceBreakerMinRequests    int
	ResilienceBreakerFailureRatio   float64
	ResilienceBreakerOpenTimeout    time.Duration
	ResilienceBreakerHalfOpenMaxReq int

	WorkerMetricsPort string
	WatchDocuments    bool
	WatchDebounce     time.Duration
}

// Load reads the configuration from the environment. When ZONING_CONFIG_FILE
// names a YAML file, its keys (the same names as the environment variables)
// replace the built-in defaults and the environment still wins over the file.
func Load() (Config, error) {
	file, err := readFile(os.Getenv(fileEnvKey))
	if err != nil {
		return Config{}, err
	}
	env := source{file: file}

	return Config{
		APIPort:  env.str("API_PORT", "8080"),
		LogLevel: env.str("LOG_LEVEL", "info"),

		PostgresDSN: env.str("POSTGRES_DSN", ""),

		NATSURL:     env.str("NATS_URL", "nats://localhost:4222"),
		NATSSubject: env.str("NATS_SUBJECT", "index.rebuild"),

		OllamaURL:        env.str("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   env.str("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: env.str("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OllamaTimeout:    env.duration("OLLAMA_TIMEOUT", 120*time.Second),

		IndexBackend:        strings.ToLower(env.str("INDEX_BACKEND", BackendChromem)),
		IndexPath:           env.str("INDEX_PATH", "./vectorstore"),
		IndexCollection:     env.str("INDEX_COLLECTION", "zoning"),
		IndexCompress:       env.boolean("INDEX_COMPRESS", false),
		IndexBuildOnStartup: env.boolean("INDEX_BUILD_ON_STARTUP", true),
		QdrantURL:           env.str("QDRANT_URL", "http://localhost:6333"),

		DocumentsPath: env.str("DOCUMENTS_PATH", "./data/documents"),

		ChunkSize:          env.integer("CHUNK_SIZE", 1500),
		ChunkOverlap:       env.integer("CHUNK_OVERLAP", 200),
		EmbedBatchSize:     env.integer("EMBED_BATCH_SIZE", 32),
		RAGTopK:            env.integer("RAG_TOP_K", 6),
		ExtractMaxAttempts: env.integer("EXTRACT_MAX_ATTEMPTS", 1),

		GISGeocoderURL:     env.str("GIS_GEOCODER_URL", "https://maps.nashville.gov/arcgis2/rest/services/Locators/NashCompLocator/GeocodeServer"),
		GISParcelsURL:      env.str("GIS_PARCELS_URL", "https://maps.nashville.gov/arcgis/rest/services/Cadastral/Parcels/MapServer/0"),
		GISBaseZoningURL:   env.str("GIS_BASE_ZONING_URL", "https://maps.nashville.gov/arcgis/rest/services/Zoning_Landuse/BaseZoning/MapServer/0"),
		GISOverlaysURL:     env.str("GIS_OVERLAYS_URL", "https://maps.nashville.gov/arcgis/rest/services/Zoning_Landuse/Zoning_Overlay_Districts/MapServer/0"),
		GISFloodHazardsURL: env.str("GIS_FLOOD_HAZARDS_URL", "https://maps.nashville.gov/arcgis/rest/services/Hydrography/FEMA_FloodHazardAreas/MapServer/0"),
		GISTimeout:         env.duration("GIS_TIMEOUT", 30*time.Second),

		APIKey:               env.str("API_KEY", ""),
		APIRateLimitRPS:      env.float("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:    env.integer("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:       env.integer("API_MAX_IN_FLIGHT", 16),
		APIBackpressureWait:  env.duration("API_BACKPRESSURE_WAIT", 250*time.Millisecond),
		APIRequestTimeout:    env.duration("API_REQUEST_TIMEOUT", 180*time.Second),
		APIOpenAPIValidation: env.boolean("API_OPENAPI_VALIDATION", true),

		ResilienceRetryMaxAttempts:      env.integer("RESILIENCE_RETRY_MAX_ATTEMPTS", 3),
		ResilienceGenerateMaxAttempts:   env.integer("RESILIENCE_GENERATE_MAX_ATTEMPTS", 1),
		ResilienceRetryInitialBackoff:   env.duration("RESILIENCE_RETRY_INITIAL_BACKOFF", 100*time.Millisecond),
		ResilienceRetryMaxBackoff:       env.duration("RESILIENCE_RETRY_MAX_BACKOFF", 400*time.Millisecond),
		ResilienceBreakerEnabled:        env.boolean("RESILIENCE_BREAKER_ENABLED", true),
		ResilienceBreakerMinRequests:    env.integer("RESILIENCE_BREAKER_MIN_REQUESTS", 10),
		ResilienceBreakerFailureRatio:   env.float("RESILIENCE_BREAKER_FAILURE_RATIO", 0.5),
		ResilienceBreakerOpenTimeout:    env.duration("RESILIENCE_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		ResilienceBreakerHalfOpenMaxReq: env.integer("RESILIENCE_BREAKER_HALF_OPEN_MAX_REQUESTS", 2),

		WorkerMetricsPort: env.str("WORKER_METRICS_PORT", "9090"),
		WatchDocuments:    env.boolean("WATCH_DOCUMENTS", false),
		WatchDebounce:     env.duration("WATCH_DEBOUNCE", 2*time.Second),
	}, nil
}

func readFile(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		out[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return out, nil
}

type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) str(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) integer(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) float(key string, fallback float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) boolean(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// duration accepts Go duration strings and bare integers as seconds.
func (s source) duration(key string, fallback time.Duration) time.Duration {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

const (
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
)

// ErrUnknownBackend is returned by Validate for an unsupported INDEX_BACKEND.
var ErrUnknownBackend = errors.New("unknown index backend")

func (c Config) Validate() error {
	switch c.IndexBackend {
	case BackendChromem, BackendQdrant:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.IndexBackend)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid chunking: size=%d overlap=%d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.RAGTopK <= 0 {
		return fmt.Errorf("invalid RAG_TOP_K %d", c.RAGTopK)
	}
	return nil
}
