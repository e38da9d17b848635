package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"envlight/ibl"
)

type diffuseArgs struct {
	commonArgs
	size    size
	quality int
}

func createDiffuseCommand() *command {
	args := diffuseArgs{
		commonArgs: commonArgs{
			ext:      ".envl",
			suffix:   "_diffuse",
			compress: 2,
		},
		size: size{
			unit:  unitPixel,
			pixel: 32,
		},
		quality: 6,
	}

	flags := flag.NewFlagSet("diffuse", flag.ExitOnError)

	registerCommonFlags(flags, &args.commonArgs)
	registerSizeFlag(flags, &args.size)

	flags.IntVar(&args.quality, "quality", args.quality, "number of sample rings used for convolution")

	return &command{
		Name: "diffuse",
		Help: "create diffuse irradiance map",
		Run: func(self *command) {
			if self.Flags.NArg() < 1 || args.compress < 0 || args.compress > 10 {
				printCommandUsage(self, " file-glob...")
			}
			setCommonArgs(&args.commonArgs)

			runDiffuse(args, gatherInputFiles(self.Flags.Args()))
		},
		Flags: flags,
	}
}

func runDiffuse(args diffuseArgs, inputFiles []string) {
	ext := cargs.suffix + cargs.ext

	conv := ibl.NewDiffuseConvolver(args.quality)
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
		fmt.Printf("Convolved %d/%d files in %.3f seconds\n", success, len(inputFiles), took)
	}
}

func convolveFile(args commonArgs, p string, ext string, sz size, conv ibl.Convolver) error {
	inFile, err := os.Open(p)
	if err != nil {
		return err
	}
	defer close(inFile)

	src, err := ibl.DecodeEnvMap(inFile)
	if err != nil {
		return err
	}

	if src.BaseSize == 0 {
		return fmt.Errorf("image has zero size")
	}

	outFilename := outputFilename(p, ext)
	outFile, err := os.OpenFile(outFilename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	defer close(outFile)

	size := sz.Calc(src.BaseSize)
	if !cargs.quiet {
		fmt.Printf("Convolving to %dx%d cubemap ...\n", size, size)
	}

	env, err := conv.Convolve(src, size)
	if err != nil {
		return err
	}

	if !cargs.quiet {
		fmt.Printf("Writing %q ...\n", filepath.ToSlash(filepath.Clean(outFilename)))
	}

	err = ibl.EncodeEnvMap(outFile, env, ibl.OptCompress(cargs.compress-1))
	if err != nil {
		outFile.Close()
		os.Remove(outFilename)
		return err
	}

	return nil
}
