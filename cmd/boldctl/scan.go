package main

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"github.com/backkem/bold/pkg/lock"
	"github.com/pion/logging"
	"github.com/sirupsen/logrus"
)

func runScan(ctx context.Context, lf logging.LoggerFactory, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	timeout := fs.Duration("timeout", lock.DefaultDiscoverTimeout, "Scan duration")
	idList := fs.String("ids", "", "Comma separated device IDs to wait for (empty = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ids, err := parseDeviceIDs(*idList)
	if err != nil {
		return err
	}

	m, adapter, err := newBLEManager(lf, *timeout, lock.DefaultActivateTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := adapter.Stop(); err != nil {
			logrus.WithError(err).Warn("Stopping bluetooth device failed")
		}
	}()

	found, err := m.Discover(ctx, ids)
	if err != nil {
		return err
	}

	keys := make([]uint64, 0, len(found))
	for id := range found {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, id := range keys {
		d := found[id]
		fmt.Printf("%-20d %-18s %4d dBm  %s\n", id, d.Peripheral.Address(), d.RSSI, d.Info)
	}
	return nil
}
