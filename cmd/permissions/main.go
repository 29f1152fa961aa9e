// Command permissions checks and requests device capabilities against a
// simulated native platform, and serves them over HTTP.
package main

import (
	"os"

	"github.com/go-drift/permissions/cmd/permissions/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
