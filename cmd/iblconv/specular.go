package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"time"

	"envlight/ibl"
)

type specularArgs struct {
	commonArgs
	size    size
	samples int
	levels  int
}

func createSpecularCommand() *command {
	args := specularArgs{
		commonArgs: commonArgs{
			ext:    ".envl",
			suffix: "_specular",
		},
		size: size{
			unit:  unitPixel,
			pixel: 128,
		},
		samples: 4096,
		levels:  5,
	}

	flags := flag.NewFlagSet("specular", flag.ExitOnError)

	registerCommonFlags(flags, &args.commonArgs)
	registerSizeFlag(flags, &args.size)

	flags.IntVar(&args.samples, "samples", args.samples, "number of samples used for convolution")
	flags.IntVar(&args.levels, "levels", args.levels, "the number of precomputed roughness levels")

	return &command{
		Name: "specular",
		Help: "create specular reflection map",
		Run: func(self *command) {
			if self.Flags.NArg() < 1 || args.compress < 0 || args.compress > 10 || args.levels < 2 {
				printCommandUsage(self, " file-glob...")
			}
			setCommonArgs(&args.commonArgs)

			runSpecular(args, gatherInputFiles(self.Flags.Args()))
		},
		Flags: flags,
	}
}

func runSpecular(args specularArgs, inputFiles []string) {
	ext := cargs.suffix + cargs.ext

	conv := ibl.NewSpecularConvolver(args.samples, args.levels)
	defer conv.Release()

	success := 0
	start := time.Now()
	for i, p := range inputFiles {
		if !cargs.quiet {
			fmt.Printf("Processing file %d/%d %q ...\n", i+1, len(inputFiles), filepath.ToSlash(filepath.Clean(p)))
		}
		err := convolveFile(args.commonArgs, p, ext, args.size, conv)
		softerr(err)
		if err == nil {
			success++
		}
	}
	if !cargs.quiet {
		took := float32(time.Since(start).Milliseconds()) / 1000
		fmt.Printf("Prefiltered %d/%d files in %.3f seconds\n", success, len(inputFiles), took)
	}
}
