package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strings"

	"envlight/ibl"
	"envlight/libio"
)

// raw output magic, "BRDF"
const magicNumberLut = 0x42524446

var args = struct {
	samples int
	size    int
	preview bool
}{
	samples: 1024,
	size:    512,
	preview: false,
}

func printGeneralUsage() {
	exe := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage: %s [arguments] <out>\n\n", exe)
	fmt.Fprintf(os.Stderr, "The arguments are:\n\n")
	flag.CommandLine.SetOutput(os.Stderr)
	flag.PrintDefaults()
	os.Exit(1)
}

func main() {
	flag.IntVar(&args.samples, "samples", args.samples, "samples of the integral")
	flag.IntVar(&args.size, "size", args.size, "size of the lut")
	flag.BoolVar(&args.preview, "preview", args.preview, "generate preview png")

	flag.Parse()

	if flag.NArg() != 1 || args.size < 1 || args.samples < 1 {
		printGeneralUsage()
	}

	pix := ibl.BakeBRDF(args.size, args.samples)

	fileext := path.Ext(flag.Arg(0))
	filename := strings.TrimSuffix(flag.Arg(0), fileext)

	harderr(saveLut(pix, filename+fileext))

	if args.preview {
		harderr(savePreview(pix, filename+".png"))
	}
}

func saveLut(pix []float32, filename string) error {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer file.Close()

	bw := &libio.BinaryWriter{Dst: file, Order: binary.LittleEndian}
	bw.WriteUInt32(magicNumberLut)
	bw.WriteUInt32(uint32(args.size))
	for _, v := range pix {
		bw.WriteFloat32(v)
	}
	return bw.Err
}

func savePreview(pix []float32, filename string) error {
	img := image.NewRGBA(image.Rect(0, 0, args.size, args.size))
	for y := 0; y < args.size; y++ {
		for x := 0; x < args.size; x++ {
			i := (y*args.size + x) * 4
			img.SetRGBA(x, y, color.RGBA{
				R: tobyte(pix[i+0]),
				G: tobyte(pix[i+1]),
				B: 0,
				A: 255,
			})
		}
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

func tobyte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func harderr(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
