package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/go-drift/permissions/pkg/permission"
)

// printResult writes one "capability status" line per entry, sorted, or
// the result as a JSON object.
func printResult(w io.Writer, result permission.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	caps := make([]permission.Capability, 0, len(result))
	for c := range result {
		caps = append(caps, c)
	}
	slices.Sort(caps)

	for _, c := range caps {
		if _, err := fmt.Fprintf(w, "%-30s %s\n", c, result[c]); err != nil {
			return err
		}
	}
	return nil
}

func parseArgs(args []string) []permission.Capability {
	caps := make([]permission.Capability, 0, len(args))
	for _, a := range args {
		if c := permission.ParseCapability(a); c != "" {
			caps = append(caps, c)
		}
	}
	return caps
}
