// Command test-dispatch is a manual test for chat delivery.
// It waits 3 seconds, then dispatches sample text against the
// configured window title fragment. Focus the target window (or not,
// to exercise the clipboard fallback) before the countdown finishes.
//
// Usage:
//
//	go run ./cmd/test-dispatch [--window Roblox] [--text "hello"]
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/kwanm/voxchat/internal/dispatch"
)

func main() {
	window := flag.String("window", "Roblox", "target window title fragment")
	text := flag.String("text", "Hello from voxchat!", "text to dispatch")
	flag.Parse()

	fmt.Printf("Will dispatch %q to windows matching %q in 3 seconds...\n", *text, *window)

	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(time.Second)
	}

	outcome, err := dispatch.New().Dispatch(*text, *window)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
	}
	fmt.Printf("Delivered: %v, destination: %s\n", outcome.Delivered, outcome.Destination)
}
