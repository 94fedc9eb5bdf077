package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type CSVCfg struct {
	Encoding       string
	OutputEncoding string
	SniffSize      int
	MaxUpload      int64
}

type LimiterCfg struct {
	Driver        string
	MaxConcurrent int
	MaxWait       time.Duration
	Lease         time.Duration
	RedisAddr     string
	RedisKey      string
}

type EventsCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
	// not-found queries remembered to suppress repeats
	DedupeSize int
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr            string
	LogLevel        string
	LogConsole      bool
	LogSampleN      int
	GeocoderURL     string
	GeocoderTimeout time.Duration
	QueryMaxLength  int
	SearchLimit     int
	ExtraFields     string
	H3Res           int
	CSV             CSVCfg
	Limiter         LimiterCfg
	Events          EventsCfg
	Metrics         MetricsCfg
}

func FromEnv() Config {
	res := getint("H3_RES", 9)
	if res < 0 || res > 15 {
		res = 9
	}

	return Config{
		Addr:            getenv("ADDR", ":8090"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogConsole:      getbool("LOG_CONSOLE", false),
		LogSampleN:      getint("LOG_SAMPLE_N", 0),
		GeocoderURL:     getenv("GEOCODER_URL", "http://localhost:7878"),
		GeocoderTimeout: getduration("GEOCODER_TIMEOUT", 10*time.Second),
		QueryMaxLength:  getint("QUERY_MAX_LENGTH", 200),
		SearchLimit:     getint("SEARCH_LIMIT", 2),
		ExtraFields:     getenv("EXTRA_FIELDS", ""),
		H3Res:           res,
		CSV: CSVCfg{
			Encoding:       getenv("CSV_ENCODING", "utf-8-sig"),
			OutputEncoding: getenv("CSV_OUTPUT_ENCODING", ""),
			SniffSize:      getint("CSV_SNIFF_SIZE", 4096),
			MaxUpload:      getint64("CSV_MAX_UPLOAD", 64<<20),
		},
		Limiter: LimiterCfg{
			Driver:        strings.ToLower(getenv("LIMITER_DRIVER", "local")),
			MaxConcurrent: getint("BATCH_MAX_CONCURRENT", 4),
			MaxWait:       getduration("BATCH_MAX_WAIT", 30*time.Second),
			Lease:         getduration("LIMITER_LEASE", 10*time.Minute),
			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisKey:      getenv("LIMITER_REDIS_KEY", "csv-geocoder:batches"),
		},
		Events: EventsCfg{
			Enabled:    getbool("EVENTS_ENABLED", false),
			Brokers:    getlist("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:      getenv("EVENTS_TOPIC", "geocode-events"),
			DedupeSize: getint("EVENTS_DEDUPE_SIZE", 4096),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes", "on":
			return true
		case "0", "f", "false", "n", "no", "off":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "a, b,,c" into [a b c]
func getlist(k string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	var out []string
	for p := range strings.SplitSeq(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
