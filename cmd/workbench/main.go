package main

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/rs/zerolog"
)

var (
	debugMode    = flag.Bool("d", false, "Enable debug mode")
	logFile      = flag.String("log-file", "", "Log file path (logs disabled by default)")
	configPath   = flag.String("config", "config.json", "Configuration file path")
	workspaceDir = flag.String("workspace", "", "Workspace directory (overrides config)")
)

func main() {
	flag.Parse()

	logger, closer, err := initLogger(*debugMode, *logFile)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger.Info().Msg("Workbench starting")

	runConsole(logger)
}

func initLogger(debug bool, logFilePath string) (zerolog.Logger, io.Closer, error) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var output io.Writer = io.Discard
	var closer io.Closer
	if logFilePath != "" {
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		output = file
		closer = file
	}

	return zerolog.New(output).With().Timestamp().Logger(), closer, nil
}
