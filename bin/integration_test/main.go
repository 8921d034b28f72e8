// Binary integration_test runs the console scenario and leaves the server
// running for manual testing via SSH.
//
// Usage:
//
//	go run ./bin/integration_test
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/zond/worldtest/integration_test"
)

func main() {
	ts, err := integration_test.NewTestServer(os.Stdout)
	if err != nil {
		fmt.Printf("Failed to create server: %v\n", err)
		os.Exit(1)
	}
	defer ts.Close()

	fmt.Println("Running integration tests...")
	fmt.Println()

	if err := integration_test.RunAll(ts); err != nil {
		fmt.Printf("\nFAILED: %v\n", err)
	} else {
		fmt.Println("\nAll tests PASSED")
	}

	_, port, err := net.SplitHostPort(ts.SSHAddr())
	if err != nil {
		port = ts.SSHAddr()
	}
	fmt.Println()
	fmt.Println("Server running for manual testing...")
	fmt.Println()
	fmt.Println("To connect:")
	fmt.Printf("  ssh -o StrictHostKeyChecking=no operator@localhost -p %s\n", port)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")

	<-make(chan struct{})
}
