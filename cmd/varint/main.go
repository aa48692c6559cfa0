package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/bits"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"

	"github.com/eigerco/varint/internal/store"
	"github.com/eigerco/varint/pkg/db/pebble"
	"github.com/eigerco/varint/pkg/log"
	"github.com/eigerco/varint/pkg/serialization/codec"
	"github.com/eigerco/varint/pkg/serialization/codec/varint"
)

var errUsage = errors.New("usage: varint [flags] encode|decode|size|put|get|incr|all [args...]")

type config struct {
	width    string
	strict   bool
	dbPath   string
	logLevel string
	logType  string
}

// main encodes and decodes varints and manages a store of varint-encoded numbers.
// go run ./cmd/varint encode 300
func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints a failed command's error. The logger is not set up yet
// when flag parsing fails, so this is the only place errors are reported.
func reportError(stderr io.Writer, err error) {
	fmt.Fprintln(stderr, err)
}

func run(args []string, stdout io.Writer) error {
	cfg, rest, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return errUsage
	}

	level, err := log.ParseLogLevel(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	logType, err := log.ParseLoggerType(cfg.logType)
	if err != nil {
		return err
	}
	log.Init(log.Options{LogLevel: level, Type: logType})

	cmd, cmdArgs := rest[0], rest[1:]
	log.CLI.Debug().Str("command", cmd).Strs("args", cmdArgs).Str("width", cfg.width).Bool("strict", cfg.strict).Msg("running")

	c := codec.NewVarintCodec(codec.WithStrict(cfg.strict))
	switch cmd {
	case "encode":
		return encode(stdout, c, cfg.width, cmdArgs)
	case "decode":
		return decode(stdout, cfg.strict, cfg.width, cmdArgs)
	case "size":
		return size(stdout, cfg.width, cmdArgs)
	case "put", "get", "incr", "all":
		return withNumbers(cfg.dbPath, func(numbers *store.Numbers) error {
			return numbersCommand(stdout, numbers, cmd, cmdArgs)
		})
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func parseFlags(args []string) (config, []string, error) {
	var cfg config

	fs := flag.NewFlagSet("varint", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.width, "width", "64", "integer width: 8, 16, 32, 64 or uint")
	fs.BoolVar(&cfg.strict, "strict", false, "reject truncated, overflowing or over-long input")
	fs.StringVar(&cfg.dbPath, "db", "", "path of the number store")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level")
	fs.StringVar(&cfg.logType, "log-type", "console", "log output: console or json")
	if err := fs.Parse(args); err != nil {
		return config{}, nil, err
	}

	if _, err := bitSize(cfg.width); err != nil {
		return config{}, nil, err
	}
	return cfg, fs.Args(), nil
}

func bitSize(width string) (int, error) {
	switch width {
	case "8", "16", "32", "64":
		return strconv.Atoi(width)
	case "uint":
		return bits.UintSize, nil
	default:
		return 0, fmt.Errorf("unsupported width %q", width)
	}
}

// typed parses s as an unsigned integer of the given width and returns it
// boxed in the matching Go type.
func typed(s string, width string) (interface{}, error) {
	n, err := bitSize(width)
	if err != nil {
		return nil, err
	}
	x, err := strconv.ParseUint(s, 0, n)
	if err != nil {
		return nil, fmt.Errorf("parse %q as %d-bit unsigned: %w", s, n, err)
	}
	switch width {
	case "8":
		return uint8(x), nil
	case "16":
		return uint16(x), nil
	case "32":
		return uint32(x), nil
	case "uint":
		return uint(x), nil
	default:
		return x, nil
	}
}

func encode(w io.Writer, c codec.Codec, width string, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, a := range args {
		x, err := typed(a, width)
		if err != nil {
			return err
		}
		b, err := c.Marshal(x)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%v\t%s\n", x, hex.EncodeToString(b))
	}
	return nil
}

func decode(w io.Writer, strict bool, width string, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	for _, a := range args {
		b, err := hex.DecodeString(strings.TrimPrefix(a, "0x"))
		if err != nil {
			return fmt.Errorf("parse %q as hex: %w", a, err)
		}
		var (
			x interface{}
			n int
		)
		switch width {
		case "8":
			x, n, err = decodeWidth[uint8](b, strict)
		case "16":
			x, n, err = decodeWidth[uint16](b, strict)
		case "32":
			x, n, err = decodeWidth[uint32](b, strict)
		case "uint":
			x, n, err = decodeWidth[uint](b, strict)
		default:
			x, n, err = decodeWidth[uint64](b, strict)
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", a, err)
		}
		fmt.Fprintf(w, "%s\t%v\t%d\n", a, x, n)
	}
	return nil
}

// decodeWidth returns the decoded value and the number of bytes it consumed.
// Lenient decoding reports the group count even when no terminating byte was
// seen, and logs a warning in that case.
func decodeWidth[T constraints.Unsigned](b []byte, strict bool) (T, int, error) {
	if len(b) == 0 {
		return 0, 0, codec.ErrEmptyInput
	}
	if strict {
		return varint.DecodeStrict[T](b)
	}
	x, n := varint.Decode[T](b)
	if b[n-1]&0x80 != 0 {
		log.CLI.Warn().Hex("input", b).Int("consumed", n).Msg("varint has no terminating byte")
	}
	return x, n, nil
}

func size(w io.Writer, width string, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	n, err := bitSize(width)
	if err != nil {
		return err
	}
	for _, a := range args {
		x, err := strconv.ParseUint(a, 0, n)
		if err != nil {
			return fmt.Errorf("parse %q as %d-bit unsigned: %w", a, n, err)
		}
		fmt.Fprintf(w, "%d\t%d\n", x, varint.RequiredSize64(x))
	}
	return nil
}

func withNumbers(path string, fn func(*store.Numbers) error) error {
	if path == "" {
		return errors.New("the -db flag is required for store commands")
	}
	kv, err := pebble.NewKVStore(path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	numbers := store.NewNumbers(kv)
	defer func() {
		if err := numbers.Close(); err != nil {
			log.CLI.Error().Err(err).Msg("close store")
		}
	}()
	return fn(numbers)
}

func numbersCommand(w io.Writer, numbers *store.Numbers, cmd string, args []string) error {
	switch {
	case cmd == "put" && len(args) == 2:
		x, err := strconv.ParseUint(args[1], 0, 64)
		if err != nil {
			return fmt.Errorf("parse %q: %w", args[1], err)
		}
		if err := numbers.Put(args[0], x); err != nil {
			return err
		}
		log.CLI.Info().Str("name", args[0]).Uint64("value", x).Msg("stored")
		return nil
	case cmd == "get" && len(args) == 1:
		x, err := numbers.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\n", x)
		return nil
	case cmd == "incr" && (len(args) == 1 || len(args) == 2):
		delta := uint64(1)
		if len(args) == 2 {
			var err error
			if delta, err = strconv.ParseUint(args[1], 0, 64); err != nil {
				return fmt.Errorf("parse %q: %w", args[1], err)
			}
		}
		x, err := numbers.Increment(args[0], delta)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\n", x)
		return nil
	case cmd == "all" && len(args) == 0:
		all, err := numbers.All()
		if err != nil {
			return err
		}
		names := make([]string, 0, len(all))
		for name := range all {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%d\n", name, all[name])
		}
		return nil
	default:
		return errUsage
	}
}
