package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/reddb/reddb/internal/config"
	"github.com/reddb/reddb/internal/logging"
	"github.com/reddb/reddb/internal/server"
)

var version string

func parseOptions(args []string) config.Config {
	var opts struct {
		Host             string `short:"h" long:"host" description:"Host to listen on (default 127.0.0.1)" value-name:"hostname"`
		Port             int    `short:"p" long:"port" description:"Port to listen on (default 7100)" value-name:"port"`
		MaxClients       int    `long:"max-clients" description:"Maximum number of concurrent client connections (default 64)" value-name:"n"`
		Password         string `long:"password" description:"Initial server password, overridden by $REDDB_PASSWORD" value-name:"password"`
		DumpDir          string `long:"dump-dir" description:"Directory auto-generated snapshot filenames are written under" value-name:"dir"`
		TimeDumpInterval int    `long:"time-dump-interval" description:"Seconds between periodic snapshots of every database, 0 to disable" value-name:"seconds"`
		Config           string `short:"c" long:"config" description:"Path to a YAML config file; flags override its values" value-name:"filename"`
		Version          bool   `long:"version" description:"Show this version"`
	}

	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[options]"
	if _, err := parser.ParseArgs(args); err != nil {
		log.Fatal(err)
	}

	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.LoadFile(opts.Config, cfg)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	// Flags override the file (and its Default() fallback), but an
	// unspecified flag (left at its zero value) must not clobber a
	// setting that came from the config file.
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}
	if opts.MaxClients != 0 {
		cfg.MaxClients = opts.MaxClients
	}
	if opts.DumpDir != "" {
		cfg.DumpDir = opts.DumpDir
	}
	if opts.TimeDumpInterval != 0 {
		cfg.TimeDumpInterval = opts.TimeDumpInterval
	}
	if opts.Password != "" {
		cfg.Password = opts.Password
	}
	if envPassword, ok := os.LookupEnv("REDDB_PASSWORD"); ok {
		cfg.Password = envPassword
	}

	return cfg
}

func main() {
	logging.Init()
	cfg := parseOptions(os.Args[1:])

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.New(cfg)
	if err := srv.Run(ctx); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
