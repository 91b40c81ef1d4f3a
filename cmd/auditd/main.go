// Command auditd verifies audit logs written by the engine. A log may hold
// several runs; each run is a separate chain that must start from
// audit.ZeroHash, so entries cut from the front of a run are detected.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/example/txn-engine/pkg/audit"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "usage: auditd <audit-log>")
		return 2
	}
	logger := slog.New(slog.NewJSONHandler(stderr, nil))

	file, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer file.Close()

	entries, err := audit.ReadEntries(file)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	broken := 0
	for i, chain := range splitRuns(entries) {
		if err := audit.VerifyRun(chain); err != nil {
			logger.Error("audit chain broken", "chain", i, "entries", len(chain), "error", err)
			broken++
			continue
		}
		fmt.Fprintf(stdout, "chain %d: %d entries, head %s\n", i, len(chain), chain[len(chain)-1].Hash)
	}
	if broken > 0 {
		fmt.Fprintf(stderr, "error: %d broken chain(s)\n", broken)
		return 1
	}
	return 0
}

// splitRuns cuts the log wherever an entry restarts from the zero hash.
func splitRuns(entries []*audit.LogEntry) [][]*audit.LogEntry {
	var chains [][]*audit.LogEntry
	start := 0
	for i, entry := range entries {
		if i > start && entry.PreviousHash == audit.ZeroHash {
			chains = append(chains, entries[start:i])
			start = i
		}
	}
	if start < len(entries) {
		chains = append(chains, entries[start:])
	}
	return chains
}
