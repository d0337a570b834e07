/*
Package settings controls reading configuration from environment and assigning defaults
*/
package settings

import (
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

var Settings *DSSettings
var Bloom *DSBloom
var Hashing *DSHashing
var Index *DSIndex
var Sink *DSSink

type DSBloom struct {
	// Expected number of distinct files in the scan, sizes the bit vector
	Capacity uint64 `koanf:"capacity"`
	// Target false positive rate once capacity is reached, 0 means 1/capacity
	FalsePositiveRate float64 `koanf:"false_positive_rate"`
}

type DSHashing struct {
	// valid algorithms: md5, sha1, sha256, sha512, blake2b-256
	Algorithm string `koanf:"algorithm"`
	// Number of concurrent hash workers, 0 uses GOMAXPROCS
	Workers int `koanf:"workers"`
	// Batches waiting for a free worker, 0 matches the worker count
	QueueDepth int `koanf:"queue_depth"`
	// Files are grouped until their sizes add up to at least this many bytes
	MaxBatchBytes HumanReadableBytes `koanf:"max_batch_bytes"`
	// What a vanished or unreadable file does: skip, abort_batch, abort_run
	OnFileError string `koanf:"on_file_error"`
}

type DSRedis struct {
	Endpoint string `koanf:"endpoint"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	// keys expire after this many seconds so abandoned runs clean themselves up
	TTLSeconds               int64 `koanf:"ttl_seconds"`
	MaxRetries               int   `koanf:"max_retries"`
	ConnectionTimeoutSeconds int   `koanf:"connection_timeout_seconds"`
}

type DSIndex struct {
	// valid backends: memory, redis, none
	Backend string `koanf:"backend"`
	// Upper bound on RAM used by the in-memory index, must be at least 1Mi
	MemorySizeBytes HumanReadableBytes `koanf:"memory_size_bytes"`
	Redis           DSRedis            `koanf:"redis"`
}

type DSKafka struct {
	// Kafka bootstrap server list, empty disables the kafka sink
	Endpoint string `koanf:"endpoint"`
	Topic    string `koanf:"topic"`
	// Max size of single message
	MessageMaxBytes HumanReadableBytes `koanf:"message_max_bytes"`
	// Bridge sarama's internal metrics into prometheus
	EnableExtendedMetrics bool `koanf:"enable_extended_metrics"`
}

type DSSink struct {
	// Write duplicates as json lines to this file, empty disables
	JSONPath string  `koanf:"json_path"`
	Kafka    DSKafka `koanf:"kafka"`
}

type DSSettings struct {
	// status server will listen for connections from this address, empty disables
	ListenAddr string `koanf:"listen_addr"`
	// for custom log files, the folder to place these file in
	LogPath  string `koanf:"log_path"`
	LogLevel string `koanf:"log_level"`
	// How a bloom filter hit is confirmed: none, digest, bytes
	Confirm string `koanf:"confirm"`
	// comma separated gitignore style patterns excluded from the scan
	Excludes string    `koanf:"excludes"`
	Bloom    DSBloom   `koanf:"bloom"`
	Hashing  DSHashing `koanf:"hashing"`
	Index    DSIndex   `koanf:"index"`
	Sink     DSSink    `koanf:"sink"`
}

var defaults DSSettings = DSSettings{
	ListenAddr: "",
	LogPath:    "/tmp/logs/dupescan/",
	LogLevel:   "info",
	Confirm:    "digest",
	Excludes:   "",
	Bloom: DSBloom{
		Capacity:          10_000_000,
		FalsePositiveRate: 0,
	},
	Hashing: DSHashing{
		Algorithm:     "md5",
		Workers:       0,
		QueueDepth:    0,
		MaxBatchBytes: HumanToBytesFatal("256Mi"),
		OnFileError:   "skip",
	},
	Index: DSIndex{
		Backend:         "memory",
		MemorySizeBytes: HumanToBytesFatal("512Mi"),
		Redis: DSRedis{
			Endpoint:                 "",
			DB:                       0,
			TTLSeconds:               86400,
			MaxRetries:               3,
			ConnectionTimeoutSeconds: 5,
		},
	},
	Sink: DSSink{
		JSONPath: "",
		Kafka: DSKafka{
			Endpoint:              "",
			Topic:                 "dupescan.duplicates",
			MessageMaxBytes:       HumanToBytesFatal("1Mi"),
			EnableExtendedMetrics: false,
		},
	},
}

// ExcludePatterns splits the comma separated exclude setting.
func (s *DSSettings) ExcludePatterns() []string {
	var out []string
	for _, p := range strings.Split(s.Excludes, ",") {
		p = strings.TrimSpace(p)
		if len(p) > 0 {
			out = append(out, p)
		}
	}
	return out
}

func ResetSettings() {
	Settings = parseSettings(defaults, "DS", os.Getenv("DS_CONFIG"), []mapstructure.DecodeHookFunc{HumanReadableBytesHookFunc()})
	setupLoggers(Settings)
	Bloom = &Settings.Bloom
	Hashing = &Settings.Hashing
	Index = &Settings.Index
	Sink = &Settings.Sink
}

func init() {
	ResetSettings()
}
