// Package feed connects to a receiver feed and applies every decodable
// frame to the aircraft store.
package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"spotter/internal/adsb"
)

// Format selects how the feed stream is framed
type Format string

// Supported feed formats
const (
	FormatAVR   Format = "avr"
	FormatBeast Format = "beast"
)

// Store receives decoded reports
type Store interface {
	Upsert(report *adsb.Report)
	Evict(maxAge time.Duration) int
}

// Backoff controls reconnect pacing after an established connection is lost
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff returns 1s doubling up to 60s
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    time.Second,
		Max:        60 * time.Second,
		Multiplier: 2.0,
	}
}

// delay returns the wait before the given reconnect attempt, starting at 0
func (b Backoff) delay(attempt int) time.Duration {
	d := time.Duration(float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt)))
	if d > b.Max || d <= 0 {
		return b.Max
	}
	return d
}

// Config holds the ingestor settings
type Config struct {
	Addr        string
	Format      Format
	MaxAge      time.Duration
	DialTimeout time.Duration
	Backoff     Backoff
}

// Stats is a point-in-time copy of the ingestion counters
type Stats struct {
	Lines        uint64
	Decoded      uint64
	Corrected    uint64
	Empty        uint64
	BadHex       uint64
	Idle         uint64
	DecodeFailed uint64
	Evicted      uint64
	Reconnects   uint64
}

// Ingestor reads frames from the feed and applies them to a Store. Run
// must be called from a single goroutine.
type Ingestor struct {
	config  Config
	store   Store
	logger  *logrus.Entry
	sampler *rate.Limiter
	dialer  net.Dialer

	lines        atomic.Uint64
	decoded      atomic.Uint64
	corrected    atomic.Uint64
	empty        atomic.Uint64
	badHex       atomic.Uint64
	idle         atomic.Uint64
	decodeFailed atomic.Uint64
	evicted      atomic.Uint64
	reconnects   atomic.Uint64
}

// NewIngestor creates an ingestor; nothing is dialed until Dial
func NewIngestor(config Config, store Store, logger *logrus.Logger) *Ingestor {
	if config.Format == "" {
		config.Format = FormatAVR
	}
	if config.Backoff.Initial <= 0 {
		config.Backoff = DefaultBackoff()
	}

	return &Ingestor{
		config:  config,
		store:   store,
		logger:  logger.WithField("component", "feed"),
		sampler: rate.NewLimiter(rate.Every(time.Second), 5),
		dialer:  net.Dialer{Timeout: config.DialTimeout},
	}
}

// Dial opens the feed connection
func (in *Ingestor) Dial(ctx context.Context) (net.Conn, error) {
	conn, err := in.dialer.DialContext(ctx, "tcp", in.config.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to feed %s: %w", in.config.Addr, err)
	}

	in.logger.WithFields(logrus.Fields{
		"addr":   in.config.Addr,
		"format": in.config.Format,
	}).Info("Connected to feed")
	return conn, nil
}

// Run consumes conn until it fails, then reconnects with backoff. It
// returns nil once ctx is cancelled.
func (in *Ingestor) Run(ctx context.Context, conn net.Conn) error {
	for {
		err := in.consume(ctx, conn)
		if ctx.Err() != nil {
			in.logger.Info("Feed ingestion stopped")
			return nil
		}
		in.logger.WithError(err).Warn("Feed connection lost")

		conn, err = in.reconnect(ctx)
		if err != nil {
			in.logger.Info("Feed ingestion stopped")
			return nil
		}
	}
}

// reconnect dials until it succeeds or ctx ends
func (in *Ingestor) reconnect(ctx context.Context) (net.Conn, error) {
	for attempt := 0; ; attempt++ {
		delay := in.config.Backoff.delay(attempt)
		in.logger.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"delay":   delay,
		}).Info("Reconnecting to feed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		conn, err := in.Dial(ctx)
		if err == nil {
			in.reconnects.Add(1)
			return conn, nil
		}
		in.logger.WithError(err).Warn("Reconnect failed")
	}
}

// consume reads conn until it errors; the connection is closed on return
// or as soon as ctx is cancelled
func (in *Ingestor) consume(ctx context.Context, conn net.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	if in.config.Format == FormatBeast {
		return in.consumeBeast(conn)
	}
	return in.consumeAVR(conn)
}

func (in *Ingestor) consumeAVR(r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			in.HandleLine(line)
		}
		if err != nil {
			return err
		}
	}
}

func (in *Ingestor) consumeBeast(r io.Reader) error {
	reader := NewBeastReader(r)
	for {
		frame, err := reader.Next()
		if err != nil {
			return err
		}
		if frame.Type != BeastModeSShort && frame.Type != BeastModeSLong {
			continue
		}

		in.lines.Add(1)
		if isIdle(frame.Data) {
			in.skip(ErrIdleFrame, "")
			continue
		}
		in.handleFrame(frame.Data)
	}
}

// HandleLine processes one AVR line. Failures are counted and skipped.
func (in *Ingestor) HandleLine(line []byte) {
	in.lines.Add(1)

	data, err := ParseAVR(line)
	if err != nil {
		in.skip(err, string(bytes.TrimRight(line, "\r\n")))
		return
	}
	in.handleFrame(data)
}

// handleFrame decodes raw frame bytes and applies the report
func (in *Ingestor) handleFrame(data []byte) {
	report, err := adsb.Decode(data)
	if err != nil {
		in.skip(err, hex.EncodeToString(data))
		return
	}

	in.decoded.Add(1)
	if report.Corrected > 0 {
		in.corrected.Add(1)
	}

	in.store.Upsert(report)
	if removed := in.store.Evict(in.config.MaxAge); removed > 0 {
		in.evicted.Add(uint64(removed))
	}
}

// skip counts a rejected input and logs a sample of them
func (in *Ingestor) skip(err error, input string) {
	switch {
	case errors.Is(err, ErrEmptyLine):
		in.empty.Add(1)
		return
	case errors.Is(err, ErrIdleFrame):
		in.idle.Add(1)
		return
	case errors.Is(err, ErrBadHex):
		in.badHex.Add(1)
	default:
		in.decodeFailed.Add(1)
	}

	if in.logger.Logger.IsLevelEnabled(logrus.DebugLevel) && in.sampler.Allow() {
		in.logger.WithError(err).WithField("input", input).Debug("Skipping frame")
	}
}

// Stats returns the current counters
func (in *Ingestor) Stats() Stats {
	return Stats{
		Lines:        in.lines.Load(),
		Decoded:      in.decoded.Load(),
		Corrected:    in.corrected.Load(),
		Empty:        in.empty.Load(),
		BadHex:       in.badHex.Load(),
		Idle:         in.idle.Load(),
		DecodeFailed: in.decodeFailed.Load(),
		Evicted:      in.evicted.Load(),
		Reconnects:   in.reconnects.Load(),
	}
}
