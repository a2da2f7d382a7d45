package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"l2perf/pkg/frame"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

const (
	maxPayloadSize = 0xffff - frame.HeaderLen
	minEtherType   = 0x0600 // smaller values are 802.3 lengths

	defaultTxDuration = 10 * time.Second
)

type Config struct {
	Interface   string        `yaml:"interface"`
	Receive     bool          `yaml:"receive"`
	Duration    time.Duration `yaml:"duration"`  // zero: 10s when transmitting, unbounded when receiving
	Bandwidth   float64       `yaml:"bandwidth"` // Mbit/s
	PayloadSize int           `yaml:"payload-size"`
	EtherType   uint16        `yaml:"ethertype"`
	Dest        string        `yaml:"dest"`
	Interval    time.Duration `yaml:"interval"`
	IdleTimeout time.Duration `yaml:"idle-timeout"`
	Verbose     bool          `yaml:"verbose"`

	dest net.HardwareAddr
}

func DefaultConfig() Config {
	return Config{
		Interface:   "eth0",
		Bandwidth:   1.0,
		PayloadSize: 1500 - (frame.HeaderLen - frame.EthHeaderLen),
		EtherType:   0x7380,
		Interval:    time.Second,
		IdleTimeout: 2 * time.Second,
	}
}

// LoadConfig overlays the YAML file at path onto conf.
func LoadConfig(path string, conf *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(b, conf); err != nil {
		return fmt.Errorf("%w: parsing %s: %w", ErrInvalidConfig, path, err)
	}
	return nil
}

func ParseEtherType(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: ethertype %q: %w", ErrInvalidConfig, s, err)
	}
	return uint16(v), nil
}

func (c *Config) invalid(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, a...))
}

// Validate checks what can be checked without touching the system.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return c.invalid("interface must be set")
	}
	if c.PayloadSize < 0 || c.PayloadSize > maxPayloadSize {
		return c.invalid("payload size %d out of range [0, %d]", c.PayloadSize, maxPayloadSize)
	}
	if c.EtherType < minEtherType {
		return c.invalid("ethertype 0x%04x is below 0x%04x", c.EtherType, minEtherType)
	}
	if c.Interval <= 0 {
		return c.invalid("report interval must be positive")
	}
	if c.IdleTimeout <= 0 {
		return c.invalid("idle timeout must be positive")
	}
	if c.Duration < 0 {
		return c.invalid("negative duration %v", c.Duration)
	}

	if c.Receive {
		return nil
	}

	if c.Duration == 0 {
		c.Duration = defaultTxDuration
	}
	if c.Bandwidth <= 0 {
		return c.invalid("bandwidth must be positive, got %v", c.Bandwidth)
	}
	if c.Dest == "" {
		return c.invalid("destination MAC address is required in transmit mode")
	}
	dest, err := net.ParseMAC(c.Dest)
	if err != nil {
		return fmt.Errorf("%w: destination %q: %w", ErrInvalidConfig, c.Dest, err)
	}
	if len(dest) != 6 {
		return c.invalid("destination %q is not an ethernet address", c.Dest)
	}
	c.dest = dest
	return nil
}

// CheckInterface verifies the interface exists and can carry the frames.
func (c *Config) CheckInterface() error {
	iface, err := net.InterfaceByName(c.Interface)
	if err != nil {
		return fmt.Errorf("%w: interface %q: %w", ErrInvalidConfig, c.Interface, err)
	}
	if size := frame.HeaderLen - frame.EthHeaderLen + c.PayloadSize; iface.MTU > 0 && size > iface.MTU {
		return c.invalid("payload size %d needs %d bytes but %s has MTU %d", c.PayloadSize, size, iface.Name, iface.MTU)
	}
	return nil
}
