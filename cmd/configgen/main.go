package main

import (
	"flag"

	"github.com/danmuck/catalogsync/internal/config"
	"github.com/danmuck/catalogsync/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	logging.ConfigureRuntime()

	kind := flag.String("kind", "catalog", "config kind: catalog|run")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing catalog file")
	input := flag.String("input", "", "catalog path for validation (defaults to cmd/catalogctl/catalog.toml)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if *kind != "catalog" {
			log.Fatal().Str("kind", *kind).Msg("only catalog configs can be validated here")
		}
		path := *input
		if path == "" {
			path = "cmd/catalogctl/catalog.toml"
		}
		cfg, err := config.LoadCatalogConfig(path)
		if err != nil {
			log.Fatal().Err(err).Msg("validate failed")
		}
		log.Info().
			Str("path", path).
			Str("name", cfg.Name).
			Int("payloads", len(cfg.Payloads)).
			Int("lists", len(cfg.Lists)).
			Int("entries", len(cfg.Entries)).
			Msg("validated catalog config")
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case "catalog":
			target = "cmd/catalogctl/catalog.toml"
		case "run":
			target = "cmd/catalogctl/config.toml"
		default:
			log.Fatal().Str("kind", *kind).Msg("unknown kind")
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal().Err(err).Msg("write template failed")
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("wrote config template")
}
