package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/backkem/bold/pkg/credentials"
	"github.com/backkem/bold/pkg/lock"
	"github.com/ghodss/yaml"
	"github.com/pion/logging"
	"github.com/sirupsen/logrus"
)

func runActivate(ctx context.Context, lf logging.LoggerFactory, args []string) error {
	fs := flag.NewFlagSet("activate", flag.ContinueOnError)
	deviceID := fs.Uint64("device", 0, "Device ID to activate (material is read from the keyring)")
	materialPath := fs.String("material", "", "Path to a JSON or YAML material file instead of the keyring")
	service := fs.String("service", credentials.DefaultService, "Keyring service name")
	discoverTimeout := fs.Duration("discover-timeout", lock.DefaultDiscoverTimeout, "Discovery timeout")
	activateTimeout := fs.Duration("timeout", lock.DefaultActivateTimeout, "Activation timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	material, err := loadMaterial(*materialPath, *deviceID, *service)
	if err != nil {
		return err
	}
	id := material.Handshake.DeviceID

	if material.Handshake.NeedsRefresh(time.Now(), credentials.DefaultRefreshMargin) ||
		material.Command.NeedsRefresh(time.Now(), credentials.DefaultRefreshMargin) {
		logrus.Warnf("Material for device %d expires within %s, fetch new material", id, credentials.DefaultRefreshMargin)
	}

	m, adapter, err := newBLEManager(lf, *discoverTimeout, *activateTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := adapter.Stop(); err != nil {
			logrus.WithError(err).Warn("Stopping bluetooth device failed")
		}
	}()

	found, err := m.Discover(ctx, []uint64{id})
	if err != nil {
		return err
	}
	d, ok := found[id]
	if !ok {
		return fmt.Errorf("device %d not found", id)
	}

	active, err := m.Activate(ctx, d.Peripheral, material.Handshake, material.Command)
	if err != nil {
		return err
	}
	fmt.Printf("device %d active for %s\n", id, active)
	return nil
}

func loadMaterial(path string, deviceID uint64, service string) (credentials.Material, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return credentials.Material{}, err
		}
		// Accepts JSON or YAML.
		var m credentials.Material
		if err := yaml.Unmarshal(data, &m); err != nil {
			return credentials.Material{}, fmt.Errorf("%s: %w", path, err)
		}
		return m, nil
	}

	if deviceID == 0 {
		return credentials.Material{}, fmt.Errorf("either -device or -material is required")
	}
	return credentials.NewStore(service).Load(deviceID)
}
