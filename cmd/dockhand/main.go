// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/wingedpig/dockhand/internal/app"
	"github.com/wingedpig/dockhand/internal/config"
)

var (
	version = "0.9"
)

func main() {
	// Check for subcommands before flag parsing
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Parse flags
	var (
		configPath  string
		host        string
		port        int
		showVersion bool
		debug       bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "HTTP server host (overrides config)")
	flag.IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.BoolVar(&debug, "debug", false, "Enable debug mode")
	flag.Parse()

	if showVersion {
		fmt.Printf("dockhand %s\n", version)
		os.Exit(0)
	}

	// Find config file if not specified
	if configPath == "" {
		loader := config.NewLoader()
		found, err := loader.FindConfig()
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		configPath = found
	}

	log.Printf("Using config: %s", configPath)

	// Create and run app
	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		Debug:      debug,
		Version:    version,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	ctx := context.Background()
	if err := application.Run(ctx); err != nil {
		log.Fatalf("App error: %v", err)
	}
}

// runInit handles the "dockhand init" command
func runInit() error {
	// Parse init-specific flags
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	showHelp := initFlags.Bool("help", false, "Show help for init command")
	initFlags.BoolVar(showHelp, "h", false, "Show help for init command")
	initFlags.Parse(os.Args[2:])

	if *showHelp {
		fmt.Println(`Usage: dockhand init [options]

Create a new dockhand.hjson configuration file in the current directory.

This command walks you through setting up a Dockhand configuration with
interactive prompts. The generated file is fully commented to help you
understand and customize all available options.

Options:
  -h, -help    Show this help message

The command will ask about:
  - API server port (defaults to 4710)
  - Dev server command (run once per open project)
  - Project marker (what makes a directory a project)
  - Terminal shell

Examples:
  dockhand init             Create config with interactive prompts

After running init:
  1. Review and edit dockhand.hjson as needed
  2. Run: ./dockhand
  3. Point the desktop UI at http://localhost:<port>`)
		return nil
	}

	configFile := "dockhand.hjson"

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", configFile)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Dockhand Configuration Setup")
	fmt.Println("============================")
	fmt.Println()
	fmt.Println("This will create a dockhand.hjson configuration file in the current directory.")
	fmt.Println("Press Enter to accept defaults shown in [brackets].")
	fmt.Println()

	// Question 1: API port
	portStr := prompt(reader, "API server port", "4710")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 4710
	}

	// Question 2: Dev server command
	fmt.Println()
	fmt.Println("The dev server command is run once per open project, from the project's")
	fmt.Println("root directory. Use {port} for the allocated port (also exported as PORT).")
	devCommand := prompt(reader, "Dev server command", "npm run dev -- --port {port}")

	// Question 3: Project marker
	fmt.Println()
	fmt.Println("A directory must contain the marker file to be openable as a project.")
	marker := prompt(reader, "Project marker", ".git")

	// Question 4: Terminal shell
	fmt.Println()
	shell := prompt(reader, "Terminal shell (or empty for $SHELL)", "")

	// Generate the config file
	configContent := generateConfig(port, devCommand, marker, shell)

	// Write the file
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Println()
	fmt.Printf("Created %s\n", configFile)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit dockhand.hjson as needed")
	fmt.Println("  2. Run: ./dockhand")
	fmt.Println("  3. Point the desktop UI at http://localhost:" + strconv.Itoa(port))
	fmt.Println()

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// escapeHJSONValue escapes a string for safe inclusion in an HJSON double-quoted value.
func escapeHJSONValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func generateConfig(port int, devCommand, marker, shell string) string {
	var sb strings.Builder

	sb.WriteString(`{
  // =============================================================================
  // Dockhand Configuration
  // =============================================================================
  //
  // This is an HJSON file (JSON with comments and relaxed syntax).
  //
  // Dockhand supervises one dev server per open project. Each project gets
  // its own TCP port, allocated above ports.base. The set of open projects
  // survives restarts via the session state file.

  // ---------------------------------------------------------------------------
  // API Server
  // ---------------------------------------------------------------------------
  server: {
    // Host to bind to (use "0.0.0.0" to allow remote access)
    host: "127.0.0.1"

    // Port for the HTTP/WebSocket API
    port: `)
	sb.WriteString(strconv.Itoa(port))
	sb.WriteString(`
  }

  // ---------------------------------------------------------------------------
  // Projects
  // ---------------------------------------------------------------------------
  project: {
    // A directory must contain this file or directory to open as a project
    marker: "`)
	sb.WriteString(escapeHJSONValue(marker))
	sb.WriteString(`"
  }

  // ---------------------------------------------------------------------------
  // Dev Server Ports
  // ---------------------------------------------------------------------------
  ports: {
    // Dev-server ports are allocated starting at base+1
    base: 6969
  }

  // ---------------------------------------------------------------------------
  // Dev Server
  // ---------------------------------------------------------------------------
  //
  // The command run once per open project, from the project root. A string
  // command runs through the shell; use an array for direct exec:
  //   command: ["npm", "run", "dev", "--", "--port", "{port}"]
  // {port} is replaced with the allocated port, which is also exported as PORT.
  devserver: {
    command: "`)
	sb.WriteString(escapeHJSONValue(devCommand))
	sb.WriteString(`"

    // Extra environment variables for every dev server
    // env: {
    //   NODE_ENV: "development"
    // }

    // How long to wait for the dev server to accept TCP connections
    readiness_timeout: "30s"

    // Grace period between SIGTERM and SIGKILL on stop
    stop_timeout: "10s"

    // Captured log lines kept per project
    log_buffer_size: 1000
  }

  // ---------------------------------------------------------------------------
  // Session State
  // ---------------------------------------------------------------------------
  state: {
    // Where the open-project set is persisted (relative to this file)
    file: ".dockhand/session.json"
  }

  // ---------------------------------------------------------------------------
  // Terminals
  // ---------------------------------------------------------------------------
  terminal: {
`)
	if shell != "" {
		sb.WriteString(`    shell: "`)
		sb.WriteString(escapeHJSONValue(shell))
		sb.WriteString(`"
`)
	} else {
		sb.WriteString(`    // shell: "/bin/zsh"  // Override default shell ($SHELL)
`)
	}
	sb.WriteString(`
    // Bytes of output replayed when reattaching to a session
    scrollback: 262144
  }

  // ---------------------------------------------------------------------------
  // Events
  // ---------------------------------------------------------------------------
  events: {
    history: {
      max_events: 10000
      max_age: "1h"
    }
  }

  // ---------------------------------------------------------------------------
  // Directory Watching
  // ---------------------------------------------------------------------------
  //
  // Open projects whose root directory disappears from disk are closed
  // automatically. The debounce absorbs editor rename churn.
  watch: {
    debounce: "100ms"
  }
}
`)

	return sb.String()
}
