package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"l2perf/pkg/frame"
	"l2perf/pkg/link"
	"l2perf/pkg/receive"
	"l2perf/pkg/transmit"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

const (
	recvPoll    = 100 * time.Millisecond // bounds how long the receive goroutine ignores cancellation
	recvChDepth = 256
)

func run(ctx context.Context, conf Config, log *logrus.Entry) error {
	if err := conf.CheckInterface(); err != nil {
		return err
	}
	if conf.Receive {
		return Receive(ctx, conf, log)
	}
	return Transmit(ctx, conf, log)
}

func Transmit(ctx context.Context, conf Config, log *logrus.Entry) error {
	conn, err := link.OpenSender(conf.Interface, conf.EtherType)
	if err != nil {
		return err
	}
	defer conn.Close()

	enc, err := frame.NewEncoder(conf.dest, conn.HardwareAddr(), conf.EtherType, conf.PayloadSize)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, conn, err)
	}

	log = log.WithFields(logrus.Fields{
		"run":  xid.New().String(),
		"link": conn.String(),
		"dest": conf.dest.String(),
	})
	log.Infof("sending %d byte frames at %.2f Mbit/s for %v", enc.Len(), conf.Bandwidth, conf.Duration)

	tx, err := transmit.New(transmit.Config{
		Bandwidth: conf.Bandwidth * 1_000_000,
		Duration:  conf.Duration,
		Interval:  conf.Interval,
		Out:       os.Stdout,
		Log:       log,
	}, enc, conn)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	_, err = tx.Run(ctx)
	return err
}

func Receive(ctx context.Context, conf Config, log *logrus.Entry) error {
	conn, err := link.OpenReceiver(conf.Interface, conf.EtherType, recvPoll)
	if err != nil {
		return err
	}
	defer conn.Close()

	log = log.WithField("link", conn.String())
	log.Debug("listening")

	ctx, cancel := context.WithCancel(ctx)
	frames := link.NewAsyncReceiver(ctx, conn, frame.Decode, max(conn.MTU(), 1500)+frame.EthHeaderLen, recvChDepth)
	defer func() {
		// the socket must outlive the receive goroutine
		cancel()
		for range frames {
		}
	}()

	rx := receive.New(receive.Config{
		EtherType:   conf.EtherType,
		Duration:    conf.Duration,
		Interval:    conf.Interval,
		IdleTimeout: conf.IdleTimeout,
		Out:         os.Stdout,
		Log:         log,
	})
	return rx.Run(ctx, frames)
}
