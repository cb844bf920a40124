// Package main - probe.go
//
// Probe mode for offline detection debugging.
// Loads a screenshot, runs every cue the fishing loop uses against it, draws
// the hits and saves an annotated copy.
//
// Usage:
//  1. Take a screenshot of the game window and save it as probe.png
//  2. Run: fish-bot probe probe.png
//  3. Check result.png for the boxes and Debug.log for the match scores
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
)

// StaticCapturer serves captures from a fixed image instead of the screen.
// Regions are interpreted in the image's own coordinates.
type StaticCapturer struct {
	img *image.RGBA
}

// NewStaticCapturer wraps img
func NewStaticCapturer(img *image.RGBA) *StaticCapturer {
	return &StaticCapturer{img: img}
}

// CaptureRegion copies the part of the image covered by r
func (c *StaticCapturer) CaptureRegion(r Region) (*image.RGBA, bool) {
	if c.img == nil {
		return nil, false
	}
	b := c.img.Bounds()
	clip, ok := r.Clip(b.Dx(), b.Dy())
	if !ok {
		return nil, false
	}
	out := image.NewRGBA(image.Rect(0, 0, clip.Width, clip.Height))
	draw.Draw(out, out.Bounds(), c.img, clip.Rect().Min.Add(b.Min), draw.Src)
	return out, true
}

// ProbeHit is one cue evaluated against the probe image
type ProbeHit struct {
	Cue       string
	Threshold float64
	Match     MatchResult
}

// ProbeReport summarizes a probe run
type ProbeReport struct {
	Width     int
	Height    int
	Hits      []ProbeHit
	Arrow     Arrow
	ArrowConf float64
	FishName  string
	FishConf  float64
	Output    string
}

// probeCues lists every template cue with the threshold the loop uses for it
var probeCues = []struct {
	cue       string
	threshold float64
}{
	{CueDefaultScreen, 0.7},
	{CueBrokenPole, thresholdRare},
	{CueUseRod, thresholdRare},
	{CueCatchFish, thresholdRare},
	{CueContinue, thresholdContinue},
	{CueContinueHighlight, thresholdContinue},
}

// RunProbe evaluates all cues on the screenshot at path.
//
// Parameters:
//   - path: PNG screenshot of the game window
//   - imagesDir: Template root (images/)
//   - resolution: Resolution subfolder to load templates from
//   - reader: OCR reader for the fish name band (nil skips OCR)
//   - output: Annotated PNG to write ("" skips drawing)
//
// Returns:
//   - ProbeReport: Scores for every cue, arrow and fish name
func RunProbe(path, imagesDir, resolution string, reader LineReader, output string) (ProbeReport, error) {
	LogInfo("=== Probe Mode Started ===")

	img, err := loadPNG(path)
	if err != nil {
		return ProbeReport{}, fmt.Errorf("failed to load %s: %w", path, err)
	}
	b := img.Bounds()
	LogInfo("Image loaded: %dx%d", b.Dx(), b.Dy())

	analyzer := NewImageAnalyzer(NewStaticCapturer(img), reader, imagesDir,
		func() string { return resolution }, nil)
	defer analyzer.Close()

	rect := Region{Width: b.Dx(), Height: b.Dy()}
	report := ProbeReport{Width: rect.Width, Height: rect.Height, Output: output}

	for _, pc := range probeCues {
		m := analyzer.FindImage(rect, pc.cue, pc.threshold)
		LogInfo("%-28s found=%v score=%.3f", pc.cue, m.Found, m.Score)
		report.Hits = append(report.Hits, ProbeHit{Cue: pc.cue, Threshold: pc.threshold, Match: m})
	}

	report.Arrow, report.ArrowConf = analyzer.FindArrow(rect)
	LogInfo("Arrow: %s (%.3f)", report.Arrow, report.ArrowConf)

	if reader != nil {
		report.FishName, report.FishConf = analyzer.FindFishName(rect)
		LogInfo("Fish name: %q (%.2f)", report.FishName, report.FishConf)
	}

	if output != "" {
		annotated := drawProbeResults(img, report)
		if err := savePNG(output, annotated); err != nil {
			return report, fmt.Errorf("failed to save %s: %w", output, err)
		}
		LogInfo("Saved visualization to %s", output)
	}

	LogInfo("=== Probe Mode Completed ===")
	return report, nil
}

// loadPNG loads a PNG image from file
func loadPNG(filename string) (*image.RGBA, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba, nil
}

// savePNG saves an image to PNG file
func savePNG(filename string, img image.Image) error {
	dir := filepath.Dir(filename)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// drawProbeResults outlines every positive match plus the arrow and fish-name zones
func drawProbeResults(img *image.RGBA, report ProbeReport) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	for _, h := range report.Hits {
		if !h.Match.Found {
			continue
		}
		box := h.Match.Box(h.Cue, "#00FF00")
		drawRect(result, Region{Left: box.X, Top: box.Y, Width: box.Width, Height: box.Height},
			color.RGBA{R: 0, G: 255, B: 0, A: 255}, 2)
	}

	full := Region{Width: report.Width, Height: report.Height}
	arrowZone := full.RelativeCrop(arrowCrop[0], arrowCrop[1], arrowCrop[2], arrowCrop[3])
	drawRect(result, arrowZone, color.RGBA{R: 255, G: 255, B: 0, A: 255}, 1)
	nameZone := full.RelativeCrop(fishNameCrop[0], fishNameCrop[1], fishNameCrop[2], fishNameCrop[3])
	drawRect(result, nameZone, color.RGBA{R: 0, G: 255, B: 255, A: 255}, 1)

	return result
}

// drawRect draws a rectangle outline clipped to the image
func drawRect(img *image.RGBA, r Region, col color.RGBA, thickness int) {
	b := img.Bounds()
	set := func(x, y int) {
		if image.Pt(x, y).In(b) {
			img.SetRGBA(x, y, col)
		}
	}
	for t := 0; t < thickness; t++ {
		for x := r.Left; x < r.Left+r.Width; x++ {
			set(x, r.Top+t)
			set(x, r.Top+r.Height-t-1)
		}
		for y := r.Top; y < r.Top+r.Height; y++ {
			set(r.Left+t, y)
			set(r.Left+r.Width-t-1, y)
		}
	}
}
