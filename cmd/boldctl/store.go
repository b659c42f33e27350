package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/backkem/bold/pkg/credentials"
	"github.com/pion/logging"
)

func runStore(ctx context.Context, lf logging.LoggerFactory, args []string) error {
	fs := flag.NewFlagSet("store", flag.ContinueOnError)
	handshakesPath := fs.String("handshakes", "", "Path to the cloud API effective-device-handshakes JSON")
	commandsPath := fs.String("commands", "", "Path to the cloud API effective-device-commands JSON")
	service := fs.String("service", credentials.DefaultService, "Keyring service name")
	remove := fs.Uint64("delete", 0, "Delete stored material for this device ID and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := credentials.NewStore(*service)
	if *remove != 0 {
		return store.Delete(*remove)
	}

	if *handshakesPath == "" || *commandsPath == "" {
		return fmt.Errorf("-handshakes and -commands are required")
	}
	n, err := storeMaterial(store, *handshakesPath, *commandsPath)
	if err != nil {
		return err
	}
	fmt.Printf("stored material for %d devices\n", n)
	return nil
}

// storeMaterial pairs handshakes with activate commands and saves each pair.
func storeMaterial(store *credentials.Store, handshakesPath, commandsPath string) (int, error) {
	data, err := os.ReadFile(handshakesPath)
	if err != nil {
		return 0, err
	}
	handshakes, err := credentials.ParseHandshakes(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", handshakesPath, err)
	}

	data, err = os.ReadFile(commandsPath)
	if err != nil {
		return 0, err
	}
	commands, err := credentials.ParseCommands(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", commandsPath, err)
	}

	pairs := credentials.Pair(handshakes, commands)
	for id, m := range pairs {
		if err := store.Save(m); err != nil {
			return 0, fmt.Errorf("device %d: %w", id, err)
		}
	}
	return len(pairs), nil
}
