package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/docgraph/internal/graphsink"
	"github.com/dgallion1/docgraph/internal/storage"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "DOCGRAPH_"

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// Chunking
	CharLimit int `yaml:"char_limit"`

	// PDF
	PDFFallbackPdftotext bool   `yaml:"pdf_fallback_pdftotext"`
	TOCScanPages         int    `yaml:"toc_scan_pages"`
	VisualDir            string `yaml:"visual_dir"`

	// Enrichment
	OCREnabled   bool   `yaml:"ocr_enabled"`
	OCRLanguages string `yaml:"ocr_languages"`

	// QA graph
	ConceptsDir  string  `yaml:"concepts_dir"`
	ConceptsPath string  `yaml:"concepts_path"`
	MinMatchRate float64 `yaml:"min_match_rate"`
	WriteReview  bool    `yaml:"write_review"`

	// Optional LLM page extraction; empty key keeps the heuristic extractor
	LLMAPIKey string `yaml:"llm_api_key"`
	LLMModel  string `yaml:"llm_model"`

	// Metadata lookup
	MetadataLookup  bool          `yaml:"metadata_lookup"`
	MetadataTimeout time.Duration `yaml:"metadata_timeout"`

	// Catalog
	CatalogPath string `yaml:"catalog_path"`

	Storage StorageConfig `yaml:"storage"`
	Neo4j   Neo4jConfig   `yaml:"neo4j"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"`
	BaseDir string `yaml:"base_dir"`

	S3Endpoint        string `yaml:"s3_endpoint"`
	S3Region          string `yaml:"s3_region"`
	S3Bucket          string `yaml:"s3_bucket"`
	S3Prefix          string `yaml:"s3_prefix"`
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`

	RemoteURL     string        `yaml:"remote_url"`
	RemoteAPIKey  string        `yaml:"remote_api_key"`
	RemoteTimeout time.Duration `yaml:"remote_timeout"`
}

type Neo4jConfig struct {
	URI      string        `yaml:"uri"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:                 "8090",
		WorkerCount:          4,
		MaxQueueSize:         100,
		MaxUploadBytes:       104857600, // 100MB
		JobTTL:               1 * time.Hour,
		CharLimit:            1500,
		PDFFallbackPdftotext: true,
		TOCScanPages:         20,
		OCRLanguages:         "eng",
		MinMatchRate:         0.98,
		WriteReview:          true,
		LLMModel:             "claude-sonnet-4-20250514",
		MetadataLookup:       true,
		MetadataTimeout:      10 * time.Second,
		CatalogPath:          "data/catalog.db",
		Storage: StorageConfig{
			Backend:       "local",
			BaseDir:       "outputs",
			S3Region:      "us-east-1",
			RemoteTimeout: 30 * time.Second,
		},
		Neo4j: Neo4jConfig{
			User:    "neo4j",
			Timeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults and DOCGRAPH_* variables.
func Load() Config {
	cfg := Default()
	cfg.applyEnv()
	cfg.normalize()
	return cfg
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.APIKey = envOr("API_KEY", c.APIKey)

	c.WorkerCount = envInt("WORKER_COUNT", c.WorkerCount)
	c.MaxQueueSize = envInt("MAX_QUEUE_SIZE", c.MaxQueueSize)
	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.JobTTL = envDuration("JOB_TTL", c.JobTTL)
	c.CharLimit = envInt("CHAR_LIMIT", c.CharLimit)

	c.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", c.PDFFallbackPdftotext)
	c.TOCScanPages = envInt("TOC_SCAN_PAGES", c.TOCScanPages)
	c.VisualDir = envOr("VISUAL_DIR", c.VisualDir)

	c.OCREnabled = envBool("OCR_ENABLED", c.OCREnabled)
	c.OCRLanguages = envOr("OCR_LANGUAGES", c.OCRLanguages)

	c.ConceptsDir = envOr("CONCEPTS_DIR", c.ConceptsDir)
	c.ConceptsPath = envOr("CONCEPTS_PATH", c.ConceptsPath)
	c.MinMatchRate = envFloat("MIN_MATCH_RATE", c.MinMatchRate)
	c.WriteReview = envBool("WRITE_REVIEW", c.WriteReview)
	c.LLMAPIKey = envOr("LLM_API_KEY", c.LLMAPIKey)
	c.LLMModel = envOr("LLM_MODEL", c.LLMModel)

	c.MetadataLookup = envBool("METADATA_LOOKUP", c.MetadataLookup)
	c.MetadataTimeout = envDuration("METADATA_TIMEOUT", c.MetadataTimeout)

	c.CatalogPath = envOr("CATALOG_PATH", c.CatalogPath)

	s := &c.Storage
	s.Backend = envOr("STORAGE_BACKEND", s.Backend)
	s.BaseDir = envOr("STORAGE_DIR", s.BaseDir)
	s.S3Endpoint = envOr("S3_ENDPOINT", s.S3Endpoint)
	s.S3Region = envOr("S3_REGION", s.S3Region)
	s.S3Bucket = envOr("S3_BUCKET", s.S3Bucket)
	s.S3Prefix = envOr("S3_PREFIX", s.S3Prefix)
	s.S3AccessKeyID = envOr("S3_ACCESS_KEY_ID", s.S3AccessKeyID)
	s.S3SecretAccessKey = envOr("S3_SECRET_ACCESS_KEY", s.S3SecretAccessKey)
	s.RemoteURL = envOr("REMOTE_URL", s.RemoteURL)
	s.RemoteAPIKey = envOr("REMOTE_API_KEY", s.RemoteAPIKey)
	s.RemoteTimeout = envDuration("REMOTE_TIMEOUT", s.RemoteTimeout)

	n := &c.Neo4j
	n.URI = envOr("NEO4J_URI", n.URI)
	n.User = envOr("NEO4J_USER", n.User)
	n.Password = envOr("NEO4J_PASSWORD", n.Password)
	n.Database = envOr("NEO4J_DATABASE", n.Database)
	n.Timeout = envDuration("NEO4J_TIMEOUT", n.Timeout)
}

// normalize replaces non-positive limits with their defaults.
func (c *Config) normalize() {
	d := Default()
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
	if c.CharLimit <= 0 {
		c.CharLimit = d.CharLimit
	}
	if c.TOCScanPages <= 0 {
		c.TOCScanPages = d.TOCScanPages
	}
	if c.MetadataTimeout <= 0 {
		c.MetadataTimeout = d.MetadataTimeout
	}
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
}

// Validate checks settings every entry point needs.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case "local":
		if c.Storage.BaseDir == "" {
			errs = append(errs, fmt.Errorf("%sSTORAGE_DIR is required for local storage", EnvPrefix))
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			errs = append(errs, fmt.Errorf("%sS3_BUCKET is required for s3 storage", EnvPrefix))
		}
	case "remote":
		if c.Storage.RemoteURL == "" {
			errs = append(errs, fmt.Errorf("%sREMOTE_URL is required for remote storage", EnvPrefix))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.MinMatchRate < 0 || c.MinMatchRate > 1 {
		errs = append(errs, fmt.Errorf("min match rate must be within [0, 1], got %v", c.MinMatchRate))
	}
	return errors.Join(errs...)
}

// ValidateServer adds the checks only the HTTP service needs.
func (c Config) ValidateServer() error {
	err := c.Validate()
	if c.APIKey == "" {
		err = errors.Join(err, fmt.Errorf("%sAPI_KEY is required", EnvPrefix))
	}
	return err
}

// StorageOptions maps the storage settings onto the adapter factory.
func (c Config) StorageOptions() storage.Options {
	s := c.Storage
	return storage.Options{
		Backend: s.Backend,
		BaseDir: s.BaseDir,
		S3: storage.S3Options{
			Endpoint:        s.S3Endpoint,
			Region:          s.S3Region,
			Bucket:          s.S3Bucket,
			Prefix:          s.S3Prefix,
			AccessKeyID:     s.S3AccessKeyID,
			SecretAccessKey: s.S3SecretAccessKey,
		},
		Remote: storage.RemoteOptions{
			BaseURL: s.RemoteURL,
			APIKey:  s.RemoteAPIKey,
			Timeout: s.RemoteTimeout,
		},
	}
}

// GraphOptions maps the Neo4j settings onto the graph sink.
func (c Config) GraphOptions() graphsink.Options {
	return graphsink.Options{
		URI:      c.Neo4j.URI,
		User:     c.Neo4j.User,
		Password: c.Neo4j.Password,
		Database: c.Neo4j.Database,
		Timeout:  c.Neo4j.Timeout,
	}
}

// OCRLanguageList splits OCRLanguages on commas and plus signs.
func (c Config) OCRLanguageList() []string {
	return strings.FieldsFunc(c.OCRLanguages, func(r rune) bool { return r == ',' || r == '+' })
}

func envOr(key, fallback string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
