package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/backkem/bold/pkg/credentials"
	"github.com/backkem/bold/pkg/crypto"
	"github.com/backkem/bold/pkg/emulator"
	"github.com/backkem/bold/pkg/lock"
	"github.com/backkem/bold/pkg/transport"
	"github.com/pion/logging"
	"golang.org/x/sync/errgroup"
)

const (
	demoDeviceID       = 1
	demoPayloadSize    = 57
	demoCommandSize    = 46
	demoMaterialExpiry = time.Hour
)

type demoOptions struct {
	chunkSize int
	delay     time.Duration
	seconds   uint16
	events    int
	result    uint
}

func runDemo(ctx context.Context, lf logging.LoggerFactory, args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	var opts demoOptions
	fs.IntVar(&opts.chunkSize, "chunk", 20, "Maximum notification chunk size (0 = unlimited)")
	fs.DurationVar(&opts.delay, "delay", 0, "Per-chunk link delay")
	seconds := fs.Uint("seconds", 30, "Activation time the emulated cylinder reports")
	fs.IntVar(&opts.events, "events", 0, "Event frames the cylinder sends before each reply")
	fs.UintVar(&opts.result, "result", uint(emulator.ResultSuccess), "Command result byte the cylinder answers with")
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts.seconds = uint16(*seconds)

	active, err := demo(ctx, lf, opts)
	if err != nil {
		return err
	}
	fmt.Printf("emulated device %d active for %s\n", demoDeviceID, active)
	return nil
}

// demo activates an emulated cylinder served on the far end of a Pipe.
func demo(ctx context.Context, lf logging.LoggerFactory, opts demoOptions) (time.Duration, error) {
	key, err := crypto.RandomBytes(credentials.KeySize)
	if err != nil {
		return 0, err
	}
	payload, err := crypto.RandomBytes(demoPayloadSize)
	if err != nil {
		return 0, err
	}
	command, err := crypto.RandomBytes(demoCommandSize)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	h := credentials.Handshake{DeviceID: demoDeviceID, Key: key, Payload: payload, ExpiresAt: now.Add(demoMaterialExpiry)}
	c := credentials.Command{DeviceID: demoDeviceID, Type: credentials.CommandActivate, Payload: command, ExpiresAt: now.Add(demoMaterialExpiry)}

	dev, err := emulator.New(emulator.Config{
		HandshakeKey:      key,
		HandshakePayload:  payload,
		CommandResult:     byte(opts.result),
		ActivationSeconds: opts.seconds,
		EventsBeforeReply: opts.events,
		LoggerFactory:     lf,
	})
	if err != nil {
		return 0, err
	}

	config := transport.DefaultPipeConfig()
	config.LoggerFactory = lf
	pipe := transport.NewPipeWithConfig(config)
	defer pipe.Close()
	pipe.SetCondition(transport.NetworkCondition{
		MaxChunkSize: opts.chunkSize,
		DelayMin:     opts.delay,
		DelayMax:     opts.delay,
	})

	m := lock.NewManager(lock.Config{LoggerFactory: lf})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dev.Serve(gctx, pipe.DeviceConn())
	})

	var (
		active      time.Duration
		activateErr error
	)
	g.Go(func() error {
		defer cancel()
		active, activateErr = m.Activate(gctx, pipe.Peripheral("emulator"), h, c)
		return activateErr
	})

	err = g.Wait()
	if activateErr != nil {
		return 0, activateErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return 0, err
	}
	return active, nil
}
