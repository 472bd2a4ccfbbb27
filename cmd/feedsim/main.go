package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"spotter/internal/feed"
	"spotter/internal/geo"
)

type options struct {
	listen   string
	lat      float64
	long     float64
	count    int
	interval time.Duration
	format   string
	seed     int64
	verbose  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "feedsim",
		Short: "Synthetic ADS-B feed server",
		Long: `feedsim listens like a dump1090 raw output port and streams frames for a
fleet of synthetic aircraft circling a point.

Example usage:
  feedsim --listen 127.0.0.1:30002 --lat 52.3086 --long 4.7639 --count 12`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != string(feed.FormatAVR) && opts.format != string(feed.FormatBeast) {
				return fmt.Errorf("unknown format %q", opts.format)
			}
			if opts.count <= 0 {
				return fmt.Errorf("count must be positive")
			}
			if opts.interval <= 0 {
				return fmt.Errorf("interval must be positive")
			}

			logger := logrus.New()
			if opts.verbose {
				logger.SetLevel(logrus.DebugLevel)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", opts.listen)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", opts.listen, err)
			}
			logger.WithFields(logrus.Fields{
				"addr":   ln.Addr().String(),
				"format": opts.format,
				"count":  opts.count,
			}).Info("Feed simulator listening")

			return serve(ctx, ln, opts, logger)
		},
	}

	f := rootCmd.Flags()
	f.StringVar(&opts.listen, "listen", "127.0.0.1:30002", "Listen address")
	f.Float64Var(&opts.lat, "lat", 0, "Latitude of the circle centre")
	f.Float64Var(&opts.long, "long", 0, "Longitude of the circle centre")
	f.IntVar(&opts.count, "count", 8, "Number of simulated aircraft")
	f.DurationVar(&opts.interval, "interval", time.Second, "Time between frame bursts")
	f.StringVar(&opts.format, "format", string(feed.FormatAVR), "Output framing: avr or beast")
	f.Int64Var(&opts.seed, "seed", 1, "Random seed for the fleet")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")

	return rootCmd
}

// serve accepts clients until ctx is done; each client gets its own fleet
func serve(ctx context.Context, ln net.Listener, opts options, logger *logrus.Logger) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			stream(ctx, conn, opts, logger)
		}()
	}
}

// stream writes frame bursts to conn until the client goes away
func stream(ctx context.Context, conn net.Conn, opts options, logger *logrus.Logger) {
	defer conn.Close()
	log := logger.WithField("client", conn.RemoteAddr().String())
	log.Info("Client connected")

	sim := newSimulator(geo.Point{Latitude: opts.lat, Longitude: opts.long}, opts.count, opts.seed)
	encode := encodeAVR
	if opts.format == string(feed.FormatBeast) {
		encode = encodeBeast
	}

	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for {
		for _, frame := range sim.burst() {
			if _, err := conn.Write(encode(frame, sim.clock())); err != nil {
				log.WithError(err).Info("Client disconnected")
				return
			}
		}
		log.WithField("frames", sim.sent).Debug("Burst sent")

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sim.step(opts.interval)
		}
	}
}

func encodeAVR(frame []byte, _ uint64) []byte {
	return []byte(fmt.Sprintf("*%X;\n", frame))
}

func encodeBeast(frame []byte, clock uint64) []byte {
	msgType := byte(feed.BeastModeSLong)
	if len(frame) == 7 {
		msgType = feed.BeastModeSShort
	}
	return feed.EncodeBeast(msgType, clock, 0xA0, frame)
}
