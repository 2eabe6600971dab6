package main

import (
	"bufio"
	"flag"
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
	flagConfig  = flag.String("c", `{"precision": 32, "verbose": false}`, "configuration, JSON or YAML")
	flagPayload = flag.String("payload", "", "file to write the recovered payload to")
)

type Config struct {
	Precision uint `json:"precision"`
	Verbose   bool `json:"verbose"`
}

func run(config Config) error {
	c := &bitsback.Coder[string]{Codec: witten.Codec{Precision: config.Precision}}
	if config.Verbose {
		c.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	res, err := container.Decompress(bufio.NewReader(os.Stdin), c)
	if err != nil {
		return errors.Wrap(err, "")
	}

	b, err := header.JSON(res.Multiset)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if _, err := os.Stdout.Write(append(b, '\n')); err != nil {
		return errors.Wrap(err, "")
	}
	if *flagPayload != "" {
		if err := os.WriteFile(*flagPayload, res.Payload, 0644); err != nil {
			return errors.Wrap(err, "")
		}
	}
	return nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	config := Config{}
	if err := yaml.Unmarshal([]byte(*flagConfig), &config); err != nil {
		log.Fatalf("%+v", errors.Wrap(err, ""))
	}
	if err := run(config); err != nil {
		log.Fatalf("%+v", err)
	}
}
