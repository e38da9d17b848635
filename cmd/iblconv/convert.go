package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"envlight/ibl"
	"envlight/librgbe"
)

type convertArgs struct {
	commonArgs
	size     size
	exposure bool
}

func createConvertCommand() *command {
	args := convertArgs{
		commonArgs: commonArgs{
			ext: ".envl",
		},
		size: size{
			unit:    unitPercent,
			percent: 25,
		},
		exposure: true,
	}

	flags := flag.NewFlagSet("convert", flag.ExitOnError)

	registerCommonFlags(flags, &args.commonArgs)
	registerSizeFlag(flags, &args.size)
	flags.BoolVar(&args.exposure, "exposure", args.exposure, "apply the exposure stored in the hdr header")

	return &command{
		Name: "convert",
		Help: "convert radiance hdr images to environment cubemaps",
		Run: func(self *command) {
			if self.Flags.NArg() < 1 || args.compress < 0 || args.compress > 10 {
				printCommandUsage(self, " file-glob...")
			}
			setCommonArgs(&args.commonArgs)

			runConvert(args, gatherInputFiles(self.Flags.Args()))
		},
		Flags: flags,
	}
}

func runConvert(args convertArgs, inputFiles []string) {
	ext := cargs.suffix + cargs.ext

	conv := ibl.NewConverter()
	defer conv.Release()

	success := 0
	start := time.Now()
	for i, p := range inputFiles {
		if !cargs.quiet {
			fmt.Printf("Processing file %d/%d %q ...\n", i+1, len(inputFiles), filepath.ToSlash(filepath.Clean(p)))
		}
		err := convertFile(args, p, ext, conv)
		softerr(err)
		if err == nil {
			success++
		}
	}
	if !cargs.quiet {
		took := float32(time.Since(start).Milliseconds()) / 1000
		fmt.Printf("Converted %d/%d files in %.3f seconds\n", success, len(inputFiles), took)
	}
}

func convertFile(args convertArgs, p string, ext string, conv ibl.Converter) error {
	data, err := os.ReadFile(p)
	if err != nil {
		return err
	}

	hdr, err := librgbe.Decode(data)
	if err != nil {
		return err
	}

	if args.exposure && hdr.Exposure != 1.0 {
		for i := 0; i < len(hdr.Pix); i += 4 {
			hdr.Pix[i+0] *= hdr.Exposure
			hdr.Pix[i+1] *= hdr.Exposure
			hdr.Pix[i+2] *= hdr.Exposure
		}
	}

	outFilename := outputFilename(p, ext)
	outFile, err := os.OpenFile(outFilename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	defer close(outFile)

	size := args.size.Calc(hdr.Width)
	if !cargs.quiet {
		fmt.Printf("Converting to %dx%d cubemap ...\n", size, size)
	}

	env, err := conv.Convert(hdr, size)
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
