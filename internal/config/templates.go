package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "catalog":
		return catalogTemplate, nil
	case "run":
		return runTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const catalogTemplate = `name = "game"
lists = ["precache", "sounds", "decals"]

[[payloads]]
name = "sound"
index = 1

  [[payloads.fields]]
  name = "volume"
  kind = "float32"
  quantize = "uint8"
  scale = 255.0

  [[payloads.fields]]
  name = "pitch"
  kind = "int16"

  [[payloads.fields]]
  name = "loop"
  kind = "bool"

[[entries]]
list = "precache"
value = "models/x.mdl"
tick = 0

[[entries]]
list = "precache"
value = "models/y.mdl"
tick = 0

[[entries]]
list = "sounds"
value = "weapons/fire.wav"
tick = 1
payload = "sound"
values = { volume = 0.5, pitch = 100 }

[[entries]]
list = "sounds"
value = "weapons/fire.wav"
tick = 3
payload = "sound"
values = { volume = 1.0, pitch = 100, loop = true }

[[entries]]
list = "precache"
value = "models/z.mdl"
tick = 2
`

const runTemplate = `catalog = "catalog.toml"
ticks = 5
consumer_order = ["decals", "sounds", "precache"]
admin_addr = ""
cors_origins = ["http://localhost:3000"]
`
