// Package config layers the server's configuration in three stages:
// compile-time defaults, overridden by a config file (here YAML via
// gopkg.in/yaml.v3, unmarshalled the same way deviceid.go loads
// tocalls.yaml), overridden in turn by command-line flags parsed with
// github.com/spf13/pflag.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is the fully resolved server configuration.
type Config struct {
	// Peripheral backend: "mmap", "uio", or "gpiocdev".
	Backend string `yaml:"backend"`

	// WenActiveLow flips the WEN strobe's idle polarity.
	WenActiveLow bool `yaml:"wen_active_low"`

	// MmapDevicePath is "/dev/mem" for "mmap", a discovered "/dev/uioN"
	// path for "uio".
	MmapDevicePath string `yaml:"mmap_device_path"`
	MmapDataBase   int64  `yaml:"mmap_data_base"`
	MmapWenBase    int64  `yaml:"mmap_wen_base"`

	// UioDeviceName, when set and Backend is "uio", names the kernel
	// "uio*/name" sysattr to resolve to a /dev/uioN node via udev instead
	// of requiring MmapDevicePath to be hardcoded.
	UioDeviceName string `yaml:"uio_device_name"`

	GpioChip        string `yaml:"gpio_chip"`
	GpioWenOffset   int    `yaml:"gpio_wen_offset"`
	GpioDataOffsets []int  `yaml:"gpio_data_offsets"`

	PeriodMicros int `yaml:"period_us"`

	QueuedAddr       string `yaml:"queued_addr"`
	DirectAddr       string `yaml:"direct_addr"`
	NotifierAddr     string `yaml:"notifier_addr"`
	DirectMaxConns   int    `yaml:"direct_max_conns"`
	QueuedReadTimeoutMs int `yaml:"queued_read_timeout_ms"`
	DirectReadTimeoutMs int `yaml:"direct_read_timeout_ms"`

	FlushFrames int `yaml:"flush_frames"`

	// EnablePoweroffOpcode gates the 'X' shutdown opcode's host poweroff
	// side effect. Disabled by default; see DESIGN.md.
	EnablePoweroffOpcode bool `yaml:"enable_poweroff_opcode"`
	// PoweroffCommand is run (via os/exec, no shell) when the 'X' opcode
	// is enabled and received.
	PoweroffCommand string `yaml:"poweroff_command"`

	EnableMdns    bool   `yaml:"enable_mdns"`
	MdnsInstance  string `yaml:"mdns_instance"`

	EnableMetrics bool   `yaml:"enable_metrics"`
	MetricsAddr   string `yaml:"metrics_addr"`

	LogLevel   string `yaml:"log_level"`
	LogDir     string `yaml:"log_dir"`
	LogPattern string `yaml:"log_file_pattern"`

	ConsoleMirror string `yaml:"console_mirror"` // "", "pty", or a serial device path

	RigEnabled   bool    `yaml:"rig_enabled"`
	RigModel     int     `yaml:"rig_model"`
	RigDevice    string  `yaml:"rig_device"`
	RigBaud      int     `yaml:"rig_baud"`
	RigLoFreqHz  float64 `yaml:"rig_lo_freq_hz"`

	PreviewEnabled bool `yaml:"preview_enabled"`
}

// Period returns PeriodMicros as a time.Duration.
func (c Config) Period() time.Duration {
	return time.Duration(c.PeriodMicros) * time.Microsecond
}

// Normalize clamps fields to their documented minimums after YAML/flag
// resolution. A period_us of 0 (or negative) would make the player's
// tick deadline never move forward, busy-spinning the loop instead of
// sleeping; the minimum is 1.
func (c *Config) Normalize() {
	if c.PeriodMicros < 1 {
		c.PeriodMicros = 1
	}
}

// Defaults returns the compile-time default configuration.
func Defaults() Config {
	return Config{
		Backend:        "mmap",
		MmapDevicePath: "/dev/mem",
		MmapDataBase:   0x41200000,
		MmapWenBase:    0x41210000,

		GpioChip:      "gpiochip0",
		GpioWenOffset: 0,

		PeriodMicros: 1000,

		QueuedAddr:          ":9100",
		DirectAddr:          ":9000",
		NotifierAddr:        ":9101",
		DirectMaxConns:      8,
		QueuedReadTimeoutMs: 5000,
		DirectReadTimeoutMs: 100,

		FlushFrames: 100,

		EnablePoweroffOpcode: false,
		PoweroffCommand:      "/sbin/poweroff",

		EnableMdns:   true,
		MdnsInstance: "awgserver",

		EnableMetrics: true,
		MetricsAddr:   ":9102",

		LogLevel:   "info",
		LogPattern: "",

		RigModel: 0,
	}
}

// LoadYAML reads path and overlays its fields onto cfg. A missing file is
// not an error: it simply leaves cfg unchanged, matching deviceid.go's
// "try several candidate paths, carry on with defaults if none exist"
// style.
func LoadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Flags describes the pflag-bound command-line overrides; BindFlags
// registers them, and Apply merges the explicitly set ones onto cfg.
type Flags struct {
	ConfigFile string
	fs         *pflag.FlagSet

	backend      string
	periodMicros int
	queuedAddr   string
	directAddr   string
	notifierAddr string
	logLevel     string
	enablePoweroff bool
}

// BindFlags registers the command-line flags on fs (normally
// pflag.CommandLine) and returns a Flags handle to read them back after
// fs.Parse.
func BindFlags(fs *pflag.FlagSet, defaults Config) *Flags {
	f := &Flags{fs: fs}
	fs.StringVarP(&f.ConfigFile, "config-file", "c", "", "Path to a YAML configuration file.")
	fs.StringVar(&f.backend, "backend", defaults.Backend, "Peripheral backend: mmap, uio, or gpiocdev.")
	fs.IntVar(&f.periodMicros, "period-us", defaults.PeriodMicros, "Player tick period, in microseconds.")
	fs.StringVar(&f.queuedAddr, "queued-addr", defaults.QueuedAddr, "Queued protocol listen address.")
	fs.StringVar(&f.directAddr, "direct-addr", defaults.DirectAddr, "Direct passthrough listen address.")
	fs.StringVar(&f.notifierAddr, "notifier-addr", defaults.NotifierAddr, "Status notifier listen address.")
	fs.StringVarP(&f.logLevel, "log-level", "v", defaults.LogLevel, "Log level: debug, info, warn, error.")
	fs.BoolVar(&f.enablePoweroff, "enable-poweroff-opcode", defaults.EnablePoweroffOpcode, "Allow the queued protocol's Shutdown opcode to power off the host.")
	return f
}

// Apply overlays parsed flag values onto cfg. fs.Parse must already have
// been called.
func (f *Flags) Apply(cfg *Config) {
	f.fs.Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "backend":
			cfg.Backend = f.backend
		case "period-us":
			cfg.PeriodMicros = f.periodMicros
		case "queued-addr":
			cfg.QueuedAddr = f.queuedAddr
		case "direct-addr":
			cfg.DirectAddr = f.directAddr
		case "notifier-addr":
			cfg.NotifierAddr = f.notifierAddr
		case "log-level":
			cfg.LogLevel = f.logLevel
		case "enable-poweroff-opcode":
			cfg.EnablePoweroffOpcode = f.enablePoweroff
		}
	})
}

// Load runs the full three-layer resolution: defaults, then the YAML
// file named by --config-file (if any), then any flags explicitly passed
// on args.
func Load(args []string) (Config, error) {
	cfg := Defaults()

	fs := pflag.NewFlagSet("awgserverd", pflag.ContinueOnError)
	flags := BindFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: parse flags: %w", err)
	}

	if flags.ConfigFile != "" {
		if err := LoadYAML(&cfg, flags.ConfigFile); err != nil {
			return Config{}, err
		}
	}

	flags.Apply(&cfg)
	cfg.Normalize()
	return cfg, nil
}
