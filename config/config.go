// Package config loads a TomChain server's JSON configuration file via
// spf13/viper and exposes it as a typed Config, mirroring the teacher's
// use of cobra flags (cmd/commands/init_db.go) plus tendermint's own
// cfg.Config-by-struct-tag convention.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the full recognized set of spec.md §6 configuration keys.
type Config struct {
	ServerID    uint64 `mapstructure:"server-id"`
	ServerCount uint64 `mapstructure:"server-count"`
	ClientCount uint64 `mapstructure:"client-count"`
	AccountCount uint64 `mapstructure:"account-count"`

	GenerateTxRate uint64 `mapstructure:"generate-tx-rate"`
	TxPerBlock     uint64 `mapstructure:"tx-per-block"`
	PbPoolLimit    uint64 `mapstructure:"pb-pool-limit"`

	GrpcListenAddr     string   `mapstructure:"grpc-listen-addr"`
	GrpcPeerListenAddr string   `mapstructure:"grpc-peer-listen-addr"`
	PeerAddrs          []string `mapstructure:"peer-addr"`

	SchedulerFreqMS int64 `mapstructure:"scheduler_freq"`
	PackFreqMS      int64 `mapstructure:"pack_freq"`
	CountFreqMS     int64 `mapstructure:"count_freq"`

	BlockDieThresholdMS int64 `mapstructure:"block-die-threshold"`

	UseRocksDB bool `mapstructure:"use-rocksdb"`

	LogLevel       string `mapstructure:"log-level"`
	ProfilerEnable bool   `mapstructure:"profiler-enable"`
	ProfilerListen bool   `mapstructure:"profiler-listen"`
}

// SchedulerFreq, PackFreq, CountFreq, BlockDieThreshold expose the
// millisecond config fields as time.Durations, the unit scheduler.Config
// and packer.Config take. engine.New takes BlockDieThresholdMS as raw
// milliseconds instead.
func (c *Config) SchedulerFreq() time.Duration     { return time.Duration(c.SchedulerFreqMS) * time.Millisecond }
func (c *Config) PackFreq() time.Duration          { return time.Duration(c.PackFreqMS) * time.Millisecond }
func (c *Config) CountFreq() time.Duration         { return time.Duration(c.CountFreqMS) * time.Millisecond }
func (c *Config) BlockDieThreshold() time.Duration { return time.Duration(c.BlockDieThresholdMS) * time.Millisecond }

// IsPacker reports whether this server is the designated packer, per
// spec.md §4.3: server_id == server_count.
func (c *Config) IsPacker() bool {
	return c.ServerID == c.ServerCount
}

// PeerAddr returns the configured peer-addr entry for peer serverID
// (1-based), skipping the entry matching this server's own ID per
// spec.md §6.
func (c *Config) PeerAddr(serverID uint64) (string, error) {
	if serverID == c.ServerID {
		return "", errors.Errorf("server %d has no peer-addr entry for itself", serverID)
	}
	idx := int(serverID) - 1
	if idx < 0 || idx >= len(c.PeerAddrs) {
		return "", errors.Errorf("no peer-addr configured for server %d", serverID)
	}
	return c.PeerAddrs[idx], nil
}

// PeerIDs returns every configured peer's server ID (1-based), excluding
// this server's own ID.
func (c *Config) PeerIDs() []uint64 {
	ids := make([]uint64, 0, len(c.PeerAddrs))
	for i := range c.PeerAddrs {
		id := uint64(i + 1)
		if id != c.ServerID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Load reads path as a JSON config file via viper and decodes it into a
// Config, then applies idOverride (from --id) if nonzero.
func Load(path string, idOverride uint64) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config file")
	}

	if idOverride != 0 {
		cfg.ServerID = idOverride
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return &cfg, nil
}

// Validate rejects a config missing the fields every component assumes
// are present; it does not attempt to validate peer-addr reachability.
func (c *Config) Validate() error {
	if c.ServerID < 1 {
		return errors.New("server-id must be >= 1")
	}
	if c.ServerCount < 1 {
		return errors.New("server-count must be >= 1")
	}
	if c.ClientCount < 1 {
		return errors.New("client-count must be >= 1")
	}
	if c.GrpcListenAddr == "" || c.GrpcPeerListenAddr == "" {
		return errors.New("grpc-listen-addr and grpc-peer-listen-addr are required")
	}
	return nil
}
