// Command migrations is the database migration CLI for Chronicler.
//
// All SQL files are embedded in the binary, so a deployment needs nothing
// but DATABASE_URL to bring a schema up to date.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
)

// Set at build time with -ldflags.
var (
	version = "1.0.0-dev"
	commit  = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("chronicler-migrations v%s (%s)\n", version, commit)
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(0)
	}

	command := flag.Arg(0)

	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	runner, err := NewRunner(config)
	if err != nil {
		log.Fatalf("Failed to create migration runner: %v", err)
	}

	defer func() {
		_ = runner.Close()
	}()

	if err := run(command, runner); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}

// run dispatches one migration command.
func run(command string, runner *Runner) error {
	switch command {
	case "up":
		return runner.Up()
	case "down":
		return runner.Down()
	case "status":
		return runner.Status()
	case "version":
		return runner.Version()
	case "drop":
		if !confirm("This will drop ALL tables. Continue? (y/N): ") {
			fmt.Println("Cancelled.")

			return nil
		}

		return runner.Drop()
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// confirm prompts for an explicit yes on stdin.
func confirm(prompt string) bool {
	fmt.Print(prompt)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}

	return strings.EqualFold(strings.TrimSpace(line), "y")
}

func printUsage() {
	fmt.Printf(`chronicler-migrations v%s - database migration tool

USAGE:
    migrations COMMAND

COMMANDS:
    up      Apply all pending migrations
    down    Roll back the last migration
    status  Show applied vs available versions
    version Show the currently applied version
    drop    Drop all tables (asks for confirmation)

ENVIRONMENT:
    DATABASE_URL                 PostgreSQL connection string (required)
    CHRONICLER_MIGRATION_TABLE   Version tracking table (default: schema_migrations)
`, version)
}
