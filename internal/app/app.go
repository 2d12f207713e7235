package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "ingest":
		return runIngest(args[1:])
	case "fetch":
		return runFetch(args[1:])
	case "clusters":
		return runClusters(args[1:])
	case "stats":
		return runStats(args[1:])
	case "retire":
		return runRetire(args[1:])
	case "serve":
		return runServe(args[1:])
	case "hash-token":
		return runHashToken(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "news-hud CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  news-hud <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health      Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  validate    Validate article JSON files against the v1 schema")
	fmt.Fprintln(os.Stderr, "  ingest      Run article JSON files through one dedup batch")
	fmt.Fprintln(os.Stderr, "  fetch       Pull configured RSS/Atom feeds into one dedup batch")
	fmt.Fprintln(os.Stderr, "  clusters    List stored event clusters")
	fmt.Fprintln(os.Stderr, "  stats       Show article, cluster and batch totals")
	fmt.Fprintln(os.Stderr, "  retire      Retire clusters older than the retention window")
	fmt.Fprintln(os.Stderr, "  serve       Start Echo API server")
	fmt.Fprintln(os.Stderr, "  hash-token  Generate a bcrypt hash for INGEST_TOKEN_HASH")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"news-hud <command> -h\" for command-specific flags.")
}
