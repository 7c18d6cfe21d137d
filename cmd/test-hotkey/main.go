// Command test-hotkey is a manual test for the global toggle hotkey.
// Run it, press the key to see toggle events, and optionally rebind at
// runtime by typing a new key name on stdin.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--key f2]
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kwanm/voxchat/internal/hotkey"
)

func main() {
	key := flag.String("key", "f2", "toggle key name")
	flag.Parse()

	listener, err := hotkey.NewListener(*key)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Listening for %q toggles...\n", *key)
	fmt.Println("Type a key name + Enter to rebind. Press Ctrl+C to exit.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	// Rebind from stdin
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			name := strings.TrimSpace(scanner.Text())
			if name == "" {
				continue
			}
			if err := listener.Rebind(name); err != nil {
				fmt.Printf("Rebind failed: %v\n", err)
				continue
			}
			fmt.Printf("Rebound to %q\n", name)
		}
	}()

	// Read events
	go func() {
		for ev := range listener.Events() {
			fmt.Printf(">>> TOGGLE (%s)\n", ev.Key)
		}
		fmt.Println("Event channel closed.")
	}()

	// Blocks until stopped
	listener.Start()
	fmt.Println("Done.")
}
