// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/f-secure-foundry/versal-secure/internal/aes"
	"github.com/f-secure-foundry/versal-secure/internal/csudma"
	"github.com/f-secure-foundry/versal-secure/internal/reg"
	"github.com/f-secure-foundry/versal-secure/internal/selftest"
	"github.com/f-secure-foundry/versal-secure/internal/sim"
	"github.com/f-secure-foundry/versal-secure/internal/sss"
)

// initialized at compile time (see Makefile)
var Build string
var Revision string

const usage = `Usage: versal-aes-kat [OPTIONS]
  -c string
        provisioning file (simulated devices)
  -n int
        number of simulated devices, ignored with -c (default 1)
  -devmem string
        run on hardware through the physical memory device (e.g. /dev/mem)
  -dma-base uint
        physical address of the DMA window (with -devmem)
  -dma-size int
        size of the DMA window (with -devmem)
  -v    verbose output
`

type options struct {
	config  string
	devices int
	devmem  string
	dmaBase uint64
	dmaSize int
	verbose bool
}

var opts = &options{}

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stdout)

	flag.Usage = func() {
		fmt.Print(usage)
	}

	flag.StringVar(&opts.config, "c", "", "provisioning file")
	flag.IntVar(&opts.devices, "n", 1, "number of simulated devices")
	flag.StringVar(&opts.devmem, "devmem", "", "physical memory device")
	flag.Uint64Var(&opts.dmaBase, "dma-base", 0, "DMA window address")
	flag.IntVar(&opts.dmaSize, "dma-size", 0, "DMA window size")
	flag.BoolVar(&opts.verbose, "v", false, "verbose output")
}

// engine assembles the driver stack over a register space and DMA window.
func engine(bus reg.Bus, index int, timeout int) (a *aes.AES, err error) {
	sw := &sss.Switch{Bus: bus}
	sw.Init()

	dma := &csudma.DMA{Index: index, Bus: bus, Timeout: timeout}

	if err = dma.Init(); err != nil {
		return
	}

	a = &aes.AES{
		Bus:     bus,
		DMA:     dma,
		SSS:     sw,
		Timeout: timeout,
	}

	err = a.Init()

	return
}

func runDevice(d Device) (err error) {
	start := time.Now()

	p := sim.New(d.Region)
	p.DpaCmDisabled = d.DpaCmDisabled

	if err = p.Provision([]byte(d.Seed)); err != nil {
		return fmt.Errorf("%s: provisioning failed, %v", d.Name, err)
	}

	a, err := engine(p, d.DMA, d.Timeout)

	if err != nil {
		return fmt.Errorf("%s: %v", d.Name, err)
	}

	if err = selftest.Run(a, p.Mem); err != nil {
		return fmt.Errorf("%s: self test failed, %w", d.Name, err)
	}

	log.Printf("%s: self test passed (DMA%d, %v)", d.Name, d.DMA, time.Since(start))

	return
}

func runHardware(path string, base uint64, size int) (err error) {
	if size <= 0 {
		return fmt.Errorf("invalid DMA window size %d", size)
	}

	bus, m, closer, err := openHardware(path, base, size)

	if err != nil {
		return
	}

	defer func() {
		if e := closer.Close(); e != nil && err == nil {
			err = e
		}
	}()

	a, err := engine(bus, 0, 0)

	if err != nil {
		return
	}

	if err = selftest.Run(a, m); err != nil {
		return fmt.Errorf("self test failed, %w", err)
	}

	log.Printf("hardware self test passed")

	return
}

func main() {
	var err error

	flag.Parse()

	if !opts.verbose {
		log.SetOutput(io.Discard)
	}

	log.Printf("versal-aes-kat - %s/%s", Revision, Build)

	if len(opts.devmem) > 0 {
		err = runHardware(opts.devmem, opts.dmaBase, opts.dmaSize)
	} else {
		err = runSimulation()
	}

	if err != nil {
		log.SetOutput(os.Stderr)
		log.Fatal(err)
	}

	fmt.Println("PASS")
}

func runSimulation() (err error) {
	var conf *Config

	if len(opts.config) > 0 {
		if conf, err = loadConfig(opts.config); err != nil {
			return
		}
	} else {
		if opts.devices <= 0 {
			return fmt.Errorf("invalid number of devices %d", opts.devices)
		}

		conf = defaultConfig(opts.devices)
	}

	g := &errgroup.Group{}

	// each engine is owned by a single goroutine
	for _, d := range conf.Devices {
		d := d
		g.Go(func() error {
			return runDevice(d)
		})
	}

	return g.Wait()
}
