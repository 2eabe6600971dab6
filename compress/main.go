package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/fumin/bitsback"
	"github.com/fumin/bitsback/ac/witten"
	"github.com/fumin/bitsback/container"
	"github.com/fumin/bitsback/header"
)

var (
	flagConfig = flag.String("c", `{
		"mode": "keys",
		"precision": 32,
		"seed": "",
		"verbose": false
		}`, "configuration, JSON or YAML")
	flagPayload = flag.String("payload", "", "file whose contents are carried in the auxiliary bits")
)

type Config struct {
	// Mode selects how the input file becomes a multiset:
	// "keys" counts the object keys of a JSON document,
	// "freq" reads a JSON or YAML map of symbol to count,
	// "lines" counts the lines of a text file.
	Mode      string `json:"mode"`
	Precision uint   `json:"precision"`
	Seed      string `json:"seed"`
	Verbose   bool   `json:"verbose"`
}

func parseConfig() (Config, error) {
	config := Config{Mode: "keys"}
	if err := yaml.Unmarshal([]byte(*flagConfig), &config); err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	configB, err := json.Marshal(config)
	if err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	log.Printf("config: %s", configB)
	return config, nil
}

func readMultiset(mode, name string) (bitsback.FrequencyMap[string], error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	switch mode {
	case "keys":
		return header.Keys(data)
	case "freq":
		return header.Parse(data)
	case "lines":
		lines := []string{}
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "")
		}
		return bitsback.FromElements(lines), nil
	default:
		return nil, errors.Errorf("unknown mode %q", mode)
	}
}

func run(config Config, name string) error {
	freq, err := readMultiset(config.Mode, name)
	if err != nil {
		return errors.Wrap(err, "")
	}
	var payload []byte
	if *flagPayload != "" {
		if payload, err = os.ReadFile(*flagPayload); err != nil {
			return errors.Wrap(err, "")
		}
	}

	c := &bitsback.Coder[string]{Codec: witten.Codec{Precision: config.Precision}}
	if config.Verbose {
		c.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	w := bufio.NewWriter(os.Stdout)
	if err := container.Compress(w, c, freq, payload, []byte(config.Seed)); err != nil {
		return errors.Wrap(err, "")
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "")
	}
	log.Printf("%d elements, %d distinct, log2 multinomial %.1f bits", freq.Total(), len(freq), freq.Log2Multinomial())
	return nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] filename\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	name := flag.Arg(0)
	if name == "" {
		flag.Usage()
		os.Exit(1)
	}

	config, err := parseConfig()
	if err != nil {
		log.Fatalf("%+v", err)
	}
	if err := run(config, name); err != nil {
		log.Fatalf("%+v", err)
	}
}
