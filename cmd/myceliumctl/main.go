// Package main implements myceliumctl, a command-line probe for drivers.
// It connects to a running driver and issues single protocol operations,
// which makes it the quickest way to poke at an agent's components:
//
//	myceliumctl -driver localhost:7600 list
//	myceliumctl -driver localhost:7600 describe servo
//	myceliumctl -driver localhost:7600 write servo is_active true
//	myceliumctl -driver localhost:7600 read servo angle
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/joshuasello/mycelium-iot/component"
	"github.com/joshuasello/mycelium-iot/config"
	"github.com/joshuasello/mycelium-iot/proxy"
	"github.com/joshuasello/mycelium-iot/transport"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "Path to controller configuration file")
		driverAddr = flag.String("driver", "localhost:7600", "Driver TCP address")
		timeout    = flag.Duration("timeout", 5*time.Second, "Per-request timeout")
		verbose    = flag.Bool("v", false, "Verbose logging")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		return fmt.Errorf("missing command")
	}

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	address := *driverAddr
	clientCfg := proxy.ClientConfig{CallTimeout: *timeout}
	transportCfg := transport.DefaultConfig()
	if *configPath != "" {
		cfg, err := config.LoadController(*configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		address = cfg.Driver
		if cfg.CallTimeout.Std() > 0 {
			clientCfg.CallTimeout = cfg.CallTimeout.Std()
		}
		if cfg.Transport.MaxFrameSize > 0 {
			transportCfg.MaxFrameSize = cfg.Transport.MaxFrameSize
		}
	}

	ctx := context.Background()
	client, err := proxy.DialDriver(ctx, address, transportCfg, clientCfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	args := flag.Args()
	switch args[0] {
	case "list":
		return runList(ctx, client)
	case "describe":
		if len(args) != 2 {
			return fmt.Errorf("usage: describe <component>")
		}
		return runDescribe(ctx, client, args[1])
	case "read":
		if len(args) != 3 {
			return fmt.Errorf("usage: read <component> <field>")
		}
		return runRead(ctx, client, args[1], args[2])
	case "write":
		if len(args) != 4 {
			return fmt.Errorf("usage: write <component> <field> <value>")
		}
		return runWrite(ctx, client, args[1], args[2], args[3])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runList(ctx context.Context, client *proxy.Client) error {
	ids, err := client.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func runDescribe(ctx context.Context, client *proxy.Client, componentID string) error {
	contract, err := client.Describe(ctx, componentID)
	if err != nil {
		return err
	}

	printFields := func(label string, fields map[string]component.FieldSpec) {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println(label + ":")
		for _, name := range names {
			spec := fields[name]
			line := fmt.Sprintf("  %-16s %s", name, spec.Type)
			if spec.Idempotent {
				line += " (idempotent)"
			}
			if spec.Description != "" {
				line += "  " + spec.Description
			}
			fmt.Println(line)
		}
	}

	printFields("writable", contract.Writable)
	printFields("readable", contract.Readable)
	return nil
}

func runRead(ctx context.Context, client *proxy.Client, componentID, field string) error {
	value, err := client.Read(ctx, componentID, field)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// runWrite resolves the value's type from the component's contract, so
// "true", "90", and "1.5" all end up correctly tagged on the wire
func runWrite(ctx context.Context, client *proxy.Client, componentID, field, raw string) error {
	p, err := proxy.Open(ctx, client, componentID)
	if err != nil {
		return err
	}

	spec, ok := p.Writable()[field]
	if !ok {
		return fmt.Errorf("component %q has no writable field %q", componentID, field)
	}

	value, err := parseValue(spec.Type, raw)
	if err != nil {
		return err
	}
	return p.Write(ctx, field, value)
}

func parseValue(valueType component.ValueType, raw string) (component.Value, error) {
	switch valueType {
	case component.TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return component.Value{}, fmt.Errorf("parsing %q as bool: %w", raw, err)
		}
		return component.BoolValue(b), nil
	case component.TypeInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return component.Value{}, fmt.Errorf("parsing %q as int: %w", raw, err)
		}
		return component.IntValue(i), nil
	case component.TypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return component.Value{}, fmt.Errorf("parsing %q as float: %w", raw, err)
		}
		return component.FloatValue(f), nil
	case component.TypeString:
		return component.StringValue(raw), nil
	default:
		return component.Value{}, fmt.Errorf("unsupported field type %q", valueType)
	}
}

func usage() {
	_, _ = fmt.Fprintf(os.Stderr, `myceliumctl - driver probe

Usage: %s [options] <command> [args]

Commands:
  list                                List component ids
  describe <component>                Show a component's field contract
  read <component> <field>            Read a field
  write <component> <field> <value>   Write a field

Options:
`, os.Args[0])
	flag.PrintDefaults()
}
