package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"switchmonitor/internal/models"
)

const (
	ProbeICMP = "icmp"
	ProbeSNMP = "snmp"

	StorageFile  = "file"
	StorageMySQL = "mysql"

	// DefaultSNMPOID is sysUpTime.0.
	DefaultSNMPOID = "1.3.6.1.2.1.1.3.0"
)

// Config represents configuration data for the monitoring service.
type Config struct {
	DevicesFile     string  `yaml:"devices_file"`
	IntervalSeconds int     `yaml:"interval_seconds"`
	ProbeWorkers    int     `yaml:"probe_workers"`
	Probe           Probe   `yaml:"probe"`
	Storage         Storage `yaml:"storage"`
	Influx          Influx  `yaml:"influx"`
	MQTT            MQTT    `yaml:"mqtt"`
	Breaker         Breaker `yaml:"breaker"`
	Web             Web     `yaml:"web"`
	UI              UI      `yaml:"ui"`
	LogFile         string  `yaml:"log_file"`

	// Devices is filled from DevicesFile by Load.
	Devices []models.Device `yaml:"-"`
}

// Probe selects and tunes the reachability check.
type Probe struct {
	Kind      string `yaml:"kind"`
	TimeoutMs int    `yaml:"timeout_ms"`
	ICMP      ICMP   `yaml:"icmp"`
	SNMP      SNMP   `yaml:"snmp"`
}

// ICMP configures echo probing.
type ICMP struct {
	Privileged bool `yaml:"privileged"`
}

// SNMP holds SNMPv3 credentials and transport settings.
type SNMP struct {
	User          string `yaml:"user"`
	AuthKey       string `yaml:"auth_key"`
	PrivKey       string `yaml:"priv_key"`
	SecurityLevel string `yaml:"security_level"`
	AuthProtocol  string `yaml:"auth_protocol"`
	PrivProtocol  string `yaml:"priv_protocol"`
	Port          int    `yaml:"port"`
	Retries       int    `yaml:"retries"`
	OID           string `yaml:"oid"`
}

// Storage selects the primary transition store.
type Storage struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	MySQL  MySQL  `yaml:"mysql"`

	// MaxRecords caps the file store's log; it is raised to Web.HistoryLimit if lower.
	MaxRecords int `yaml:"max_records"`
}

// MySQL mirrors the [mysql] section of the legacy config.ini.
type MySQL struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Influx configures the optional time-series mirror.
type Influx struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// MQTT configures the optional event-stream mirror.
type MQTT struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// Breaker tunes the circuit breaker wrapped around every sink.
type Breaker struct {
	MaxFailures int `yaml:"max_failures"`
	OpenSeconds int `yaml:"open_seconds"`
}

// Web configures the HTTP server.
type Web struct {
	Addr         string `yaml:"addr"`
	HistoryLimit int    `yaml:"history_limit"`
}

// UI toggles the terminal display.
type UI struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		DevicesFile:     "switches.txt",
		IntervalSeconds: 1,
		ProbeWorkers:    16,
		Probe: Probe{
			Kind:      ProbeICMP,
			TimeoutMs: 1000,
			SNMP: SNMP{
				SecurityLevel: "authPriv",
				AuthProtocol:  "SHA",
				PrivProtocol:  "AES",
				Port:          161,
				Retries:       1,
				OID:           DefaultSNMPOID,
			},
		},
		Storage: Storage{
			Driver:     StorageFile,
			Path:       filepath.Join(".dist", "data", "switch_status.json"),
			MaxRecords: 10000,
			MySQL: MySQL{
				Host:     "localhost",
				Port:     3306,
				Database: "switch_monitor",
			},
		},
		Influx: Influx{
			URL:         "http://localhost:8086",
			Measurement: "switch_status",
		},
		MQTT: MQTT{
			Host:     "localhost",
			Port:     1883,
			ClientID: "switchmonitor",
			Topic:    "switchmonitor/transitions",
		},
		Breaker: Breaker{
			MaxFailures: 3,
			OpenSeconds: 30,
		},
		Web: Web{
			Addr:         ":5000",
			HistoryLimit: 100,
		},
		UI:      UI{Enabled: true},
		LogFile: "switchmonitor.log",
	}
}

// Load reads configuration from yaml file and the device list it points at.
// A missing config file falls back to defaults; a missing or empty device
// list is an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	devices, err := LoadDevices(cfg.DevicesFile)
	if err != nil {
		return Config{}, err
	}
	if len(devices) == 0 {
		return Config{}, fmt.Errorf("device list %s defines no devices", cfg.DevicesFile)
	}
	cfg.Devices = devices
	return cfg, nil
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.DevicesFile == "" {
		c.DevicesFile = def.DevicesFile
	}
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = def.IntervalSeconds
	}
	if c.ProbeWorkers <= 0 {
		c.ProbeWorkers = def.ProbeWorkers
	}
	c.Probe.Kind = strings.ToLower(strings.TrimSpace(c.Probe.Kind))
	if c.Probe.Kind == "" {
		c.Probe.Kind = def.Probe.Kind
	}
	if c.Probe.TimeoutMs <= 0 {
		c.Probe.TimeoutMs = def.Probe.TimeoutMs
	}
	if c.Probe.SNMP.SecurityLevel == "" {
		c.Probe.SNMP.SecurityLevel = def.Probe.SNMP.SecurityLevel
	}
	if c.Probe.SNMP.Port <= 0 {
		c.Probe.SNMP.Port = def.Probe.SNMP.Port
	}
	if c.Probe.SNMP.Retries < 0 {
		c.Probe.SNMP.Retries = 0
	}
	if c.Probe.SNMP.OID == "" {
		c.Probe.SNMP.OID = def.Probe.SNMP.OID
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = def.Storage.Driver
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
	if c.Storage.MySQL.Port <= 0 {
		c.Storage.MySQL.Port = def.Storage.MySQL.Port
	}
	if c.Influx.Measurement == "" {
		c.Influx.Measurement = def.Influx.Measurement
	}
	if c.MQTT.Port <= 0 {
		c.MQTT.Port = def.MQTT.Port
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if c.Breaker.MaxFailures <= 0 {
		c.Breaker.MaxFailures = def.Breaker.MaxFailures
	}
	if c.Breaker.OpenSeconds <= 0 {
		c.Breaker.OpenSeconds = def.Breaker.OpenSeconds
	}
	if c.Web.Addr == "" {
		c.Web.Addr = def.Web.Addr
	}
	if c.Web.HistoryLimit <= 0 {
		c.Web.HistoryLimit = def.Web.HistoryLimit
	}
	if c.LogFile == "" {
		c.LogFile = def.LogFile
	}
	if c.Storage.MaxRecords <= 0 {
		c.Storage.MaxRecords = def.Storage.MaxRecords
	}
	if c.Storage.MaxRecords < c.Web.HistoryLimit {
		c.Storage.MaxRecords = c.Web.HistoryLimit
	}
}

func (c Config) validate() error {
	switch c.Probe.Kind {
	case ProbeICMP:
	case ProbeSNMP:
		if err := c.Probe.SNMP.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown probe kind %q", c.Probe.Kind)
	}

	switch c.Storage.Driver {
	case StorageFile:
	case StorageMySQL:
		m := c.Storage.MySQL
		if m.Host == "" || m.User == "" || m.Database == "" {
			return errors.New("mysql storage requires host, user and database")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Influx.Enabled {
		if c.Influx.URL == "" || c.Influx.Org == "" || c.Influx.Bucket == "" {
			return errors.New("influx mirror requires url, org and bucket")
		}
	}
	if c.MQTT.Enabled && c.MQTT.Host == "" {
		return errors.New("mqtt mirror requires host")
	}
	return nil
}

func (s SNMP) validate() error {
	if s.User == "" {
		return errors.New("snmp probe requires user")
	}
	switch strings.ToLower(s.SecurityLevel) {
	case "noauthnopriv":
	case "authnopriv":
		if s.AuthKey == "" {
			return errors.New("snmp authNoPriv requires auth_key")
		}
	case "authpriv":
		if s.AuthKey == "" || s.PrivKey == "" {
			return errors.New("snmp authPriv requires auth_key and priv_key")
		}
	default:
		return fmt.Errorf("unknown snmp security_level %q", s.SecurityLevel)
	}
	return nil
}
