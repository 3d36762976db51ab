package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration values.
type Config struct {
	Secret      string
	DatabaseDSN string
	HTTPPort    string
	CatalogCSV  string
	CORSOrigins []string

	// ConfidenceThreshold is the vision confidence at or above which a
	// request skips pharmacist review.
	ConfidenceThreshold float64

	VisionProvider  string
	VisionURL       string
	VisionTimeout   time.Duration
	AnthropicAPIKey string

	KafkaBrokers []string
	KafkaTopic   string

	OTLPEndpoint string

	// AdminEmail and AdminPassword bootstrap the operator account.
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	secret := os.Getenv("SECRET")
	if secret == "" {
		secret = "dev_secret"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}
	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", port)
		port = "8080"
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "file:medeasy.db"
	}

	threshold := 0.6
	if raw := strings.TrimSpace(os.Getenv("CONFIDENCE_THRESHOLD")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			log.Printf("invalid CONFIDENCE_THRESHOLD value %q, defaulting to %.2f", raw, threshold)
		} else {
			threshold = min(max(v, 0), 1)
		}
	}

	visionTimeout := 20 * time.Second
	if raw := strings.TrimSpace(os.Getenv("VISION_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			log.Printf("invalid VISION_TIMEOUT value %q, defaulting to %s", raw, visionTimeout)
		} else {
			visionTimeout = d
		}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "prescription-events"
	}

	origins := splitList(os.Getenv("CORS_ORIGINS"))
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return Config{
		Secret:              secret,
		DatabaseDSN:         dsn,
		HTTPPort:            port,
		CatalogCSV:          os.Getenv("CATALOG_CSV"),
		CORSOrigins:         origins,
		ConfidenceThreshold: threshold,
		VisionProvider:      strings.ToLower(strings.TrimSpace(os.Getenv("VISION_PROVIDER"))),
		VisionURL:           os.Getenv("VISION_URL"),
		VisionTimeout:       visionTimeout,
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		KafkaBrokers:        splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:          topic,
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AdminEmail:          strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:       os.Getenv("ADMIN_PASSWORD"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
