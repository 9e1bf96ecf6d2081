package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "gonio.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `gonio drives the polarization scatterometry goniometer: two motion arms,
a polarization stage, a supercontinuum source, and a camera.  It runs sweeps
from the command line and can expose the rig over HTTP.

Usage:
	gonio <command>

Commands:
	run
	serve
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `gonio is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

run executes the sweep described by the Sweep section of the configuration
and writes the result to a single FITS container.  serve exposes the devices
and sweep control over HTTP at the configured address.

With Mock true, every device is simulated in software; no hardware or
drivers are needed.  This is useful for dry-running a sweep configuration.

Hardware:
- Newport ESP300/ESP301 motion controller, serial or terminal server ("Serial" flag)
- NKT SuperK Extreme supercontinuum source
- Andor sCMOS camera via SDK3 (camera index, typically 0)`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("gonio version %v\n", Version)
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "run":
		c := Config{}
		err := k.Unmarshal("", &c)
		if err != nil {
			log.Fatal(err)
		}
		err = RunSweep(c)
		if err != nil {
			log.Fatal(err)
		}
	case "serve":
		c := Config{}
		err := k.Unmarshal("", &c)
		if err != nil {
			log.Fatal(err)
		}
		err = Serve(c)
		if err != nil {
			log.Fatal(err)
		}
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
