package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd(start).Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

type flags struct {
	config    string
	bandwidth float64
	tsecs     uint
	ethertype string
	psize     int
	ifname    string
	rx        bool
	interval  time.Duration
	idle      time.Duration
	verbose   bool
}

func start(conf Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, conf, newLogger(conf.Verbose))
}

func newRootCmd(start func(Config) error) *cobra.Command {
	var f flags
	def := DefaultConfig()

	cmd := &cobra.Command{
		Use:   "l2perf [DEST]",
		Short: "Link layer throughput and loss tester",
		Long: `Measure throughput and frame loss with raw ethernet frames.

Examples:
  # receive on eth0 until interrupted
  l2perf -r -i eth0

  # send 100 Mbit/s of 1514 byte frames for 30 seconds
  l2perf -i eth0 -b 100 -t 30 02:00:00:00:00:01`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := buildConfig(cmd, &f, args)
			if err != nil {
				return err
			}
			return start(conf)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.config, "config", "c", "", "config file (YAML)")
	fl.Float64VarP(&f.bandwidth, "bandwidth", "b", def.Bandwidth, "bandwidth in Mbits/s")
	fl.UintVarP(&f.tsecs, "tsecs", "t", uint(defaultTxDuration/time.Second), "duration in seconds (receive mode: unbounded unless set)")
	fl.StringVarP(&f.ethertype, "ethertype", "e", fmt.Sprintf("%x", def.EtherType), "ethertype in hex")
	fl.IntVarP(&f.psize, "psize", "p", def.PayloadSize, "payload size in bytes, on top of the 30 byte test header")
	fl.StringVarP(&f.ifname, "ifname", "i", def.Interface, "network interface")
	fl.BoolVarP(&f.rx, "rx", "r", false, "receive mode")
	fl.DurationVar(&f.interval, "interval", def.Interval, "report interval")
	fl.DurationVar(&f.idle, "idle-timeout", def.IdleTimeout, "close a receive session after this much silence")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "l2perf v%s\n", version)
		},
	})

	return cmd
}

// buildConfig starts from the defaults, overlays the config file and then
// every flag given explicitly on the command line.
func buildConfig(cmd *cobra.Command, f *flags, args []string) (Config, error) {
	conf := DefaultConfig()
	if f.config != "" {
		if err := LoadConfig(f.config, &conf); err != nil {
			return conf, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("bandwidth") {
		conf.Bandwidth = f.bandwidth
	}
	if changed("tsecs") {
		conf.Duration = time.Duration(f.tsecs) * time.Second
	}
	if changed("ethertype") {
		et, err := ParseEtherType(f.ethertype)
		if err != nil {
			return conf, err
		}
		conf.EtherType = et
	}
	if changed("psize") {
		conf.PayloadSize = f.psize
	}
	if changed("ifname") {
		conf.Interface = f.ifname
	}
	if changed("rx") {
		conf.Receive = f.rx
	}
	if changed("interval") {
		conf.Interval = f.interval
	}
	if changed("idle-timeout") {
		conf.IdleTimeout = f.idle
	}
	if changed("verbose") {
		conf.Verbose = f.verbose
	}
	if len(args) > 0 {
		conf.Dest = args[0]
	}

	if err := conf.Validate(); err != nil {
		return conf, err
	}
	return conf, nil
}

func newLogger(verbose bool) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05.000000",
	})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return logrus.NewEntry(l)
}
