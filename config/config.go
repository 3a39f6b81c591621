// Package config loads the pool configuration, either from the key=value
// format of mysql.cnf files or from TOML.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrek82/jpool/conn"
)

// Default values applied before a file is read.
const (
	DefaultDriver            = "mysql"
	DefaultInitSize          = 10
	DefaultMaxSize           = 1024
	DefaultMaxFreeTime       = 60 * time.Second
	DefaultConnectionTimeout = 100 * time.Millisecond
)

// ErrInvalidConfig is returned when a configuration violates its invariants.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the immutable pool configuration.
type Config struct {
	Driver   string
	Host     string
	Port     uint16
	Username string
	Password string
	DBName   string

	// InitSize connections are opened up front and never evicted.
	InitSize uint32
	// MaxSize caps the number of live connections.
	MaxSize uint32
	// MaxFreeTime is how long a connection above InitSize may sit idle.
	// It is also the eviction period. Zero disables eviction.
	MaxFreeTime time.Duration
	// ConnectionTimeout bounds how long Acquire waits for an idle connection.
	ConnectionTimeout time.Duration
}

// Default returns a Config with the defaults filled in.
func Default() Config {
	return Config{
		Driver:            DefaultDriver,
		Host:              "127.0.0.1",
		Port:              3306,
		InitSize:          DefaultInitSize,
		MaxSize:           DefaultMaxSize,
		MaxFreeTime:       DefaultMaxFreeTime,
		ConnectionTimeout: DefaultConnectionTimeout,
	}
}

// Validate checks the invariants of c.
func (c Config) Validate() error {
	switch {
	case c.Driver == "":
		return fmt.Errorf("%w: driver is empty", ErrInvalidConfig)
	case c.MaxSize == 0:
		return fmt.Errorf("%w: maxSize must be at least 1", ErrInvalidConfig)
	case c.InitSize > c.MaxSize:
		return fmt.Errorf("%w: initSize %d exceeds maxSize %d", ErrInvalidConfig, c.InitSize, c.MaxSize)
	case c.MaxFreeTime < 0 || c.ConnectionTimeout < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	return nil
}

// Target returns the backend the pool connects to.
func (c Config) Target() conn.Target {
	return conn.Target{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.Username,
		Password: c.Password,
		DBName:   c.DBName,
	}
}

// Key identifies the backend target; pools are shared per key.
func (c Config) Key() string {
	return fmt.Sprintf("%s://%s@%s:%d/%s", c.Driver, c.Username, c.Host, c.Port, c.DBName)
}

// Load reads path, choosing the format from the extension: ".toml" files
// are parsed as TOML, everything else as key=value lines.
func Load(path string) (Config, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return LoadTOML(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads key=value lines. Blank lines, lines starting with '#' and
// lines without '=' are skipped; unknown keys are ignored. maxFreeTime is
// in seconds and connectionTimeOut in milliseconds.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if err := cfg.set(key, value); err != nil {
			return Config{}, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "driver":
		c.Driver = value
	case "ip":
		c.Host = value
	case "port":
		var v uint64
		v, err = strconv.ParseUint(value, 10, 16)
		c.Port = uint16(v)
	case "username":
		c.Username = value
	case "password":
		c.Password = value
	case "dbname":
		c.DBName = value
	case "initSize":
		c.InitSize, err = parseUint32(value)
	case "maxSize":
		c.MaxSize, err = parseUint32(value)
	case "maxFreeTime":
		var v uint32
		v, err = parseUint32(value)
		c.MaxFreeTime = time.Duration(v) * time.Second
	case "connectionTimeOut":
		var v uint32
		v, err = parseUint32(value)
		c.ConnectionTimeout = time.Duration(v) * time.Millisecond
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	return nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

// tomlFile mirrors the key=value keys in TOML form.
type tomlFile struct {
	Driver            *string `toml:"driver"`
	IP                *string `toml:"ip"`
	Port              *uint16 `toml:"port"`
	Username          *string `toml:"username"`
	Password          *string `toml:"password"`
	DBName            *string `toml:"dbname"`
	InitSize          *uint32 `toml:"init_size"`
	MaxSize           *uint32 `toml:"max_size"`
	MaxFreeTime       *uint32 `toml:"max_free_time"`      // seconds
	ConnectionTimeout *uint32 `toml:"connection_timeout"` // milliseconds
}

// LoadTOML reads a TOML configuration file.
func LoadTOML(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var f tomlFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := Default()
	setIf(&cfg.Driver, f.Driver)
	setIf(&cfg.Host, f.IP)
	setIf(&cfg.Port, f.Port)
	setIf(&cfg.Username, f.Username)
	setIf(&cfg.Password, f.Password)
	setIf(&cfg.DBName, f.DBName)
	setIf(&cfg.InitSize, f.InitSize)
	setIf(&cfg.MaxSize, f.MaxSize)
	if f.MaxFreeTime != nil {
		cfg.MaxFreeTime = time.Duration(*f.MaxFreeTime) * time.Second
	}
	if f.ConnectionTimeout != nil {
		cfg.ConnectionTimeout = time.Duration(*f.ConnectionTimeout) * time.Millisecond
	}
	return cfg, cfg.Validate()
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
