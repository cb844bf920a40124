// Package main - analyzer.go
//
// Image analysis module for the fishing bot.
// Turns screen captures of the game window into state signals.
//
// Key responsibilities:
//   - Template matching of fixed cues (default screen, bite, continue, broken rod, ...)
//   - Minigame arrow detection with alpha-masked templates
//   - Fish-name recognition through the OCR reader
//   - Per-resolution template loading and caching
//
// Matching:
// Both the captured region and the template are converted to single-channel
// grayscale and compared with normalized cross-correlation (TM_CCOEFF_NORMED).
// The best offset wins; it is reported as found when score >= threshold.
//
// Failure Semantics:
// Missing templates, unreadable files, empty captures and templates that do not
// fit inside the region are all reported as a miss (found=false / score 0).
// Nothing in this file returns an error to the control loop.
package main

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
)

// Cue file names, one per recognizable on-screen state
const (
	CueDefaultScreen     = "default_screen.png"
	CueBrokenPole        = "broken_pole.png"
	CueUseRod            = "use_rod.png"
	CueCatchFish         = "catch_fish.png"
	CueContinue          = "continue.png"
	CueContinueHighlight = "continue_highlighted.png"
	CueArrowLeft         = "left-high.png"
	CueArrowRight        = "right-high.png"
)

// Relative crops of the captured window (x, y, width, height as fractions)
var (
	arrowCrop    = [4]float64{0.30, 0.40, 0.40, 0.20}
	fishNameCrop = [4]float64{0.56, 0.66, 0.30, 0.08}
)

// LineReader recognizes one line of text in an image
type LineReader interface {
	ReadLine(img image.Image) (string, float64)
}

// Match runs normalized cross-correlation of template over region.
//
// Parameters:
//   - region: Single-channel grayscale image to search
//   - template: Single-channel grayscale template
//   - mask: Optional mask (empty Mat for none); only pixels where mask > 0 count
//   - threshold: Minimum score for found=true
//
// Returns:
//   - MatchResult: Location is the template center in region-local coordinates
//
// A template that is not strictly smaller than the region on both axes is a miss.
func Match(region, template, mask gocv.Mat, threshold float64) MatchResult {
	if region.Empty() || template.Empty() {
		return MatchResult{}
	}
	tw, th := template.Cols(), template.Rows()
	if tw >= region.Cols() || th >= region.Rows() {
		return MatchResult{}
	}

	result := gocv.NewMat()
	defer result.Close()
	gocv.MatchTemplate(region, template, &result, gocv.TmCcoeffNormed, mask)
	if result.Empty() {
		return MatchResult{}
	}

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	score := float64(maxVal)
	if math.IsInf(score, 0) || math.IsNaN(score) {
		score = 0
	}

	return MatchResult{
		Found:    score >= threshold,
		Location: Point{X: maxLoc.X + tw/2, Y: maxLoc.Y + th/2},
		Score:    score,
		Size:     Point{X: tw, Y: th},
	}
}

// cvTemplate is a loaded grayscale template with its optional alpha mask
type cvTemplate struct {
	gray gocv.Mat
	mask gocv.Mat
}

func (t *cvTemplate) Close() {
	t.gray.Close()
	t.mask.Close()
}

// ImageAnalyzer implements the perception side of the control loop.
type ImageAnalyzer struct {
	capturer   Capturer
	reader     LineReader
	frames     *FrameDumper
	imagesDir  string
	resolution func() string

	cache   map[string]*cvTemplate
	lastRes string
	stale   bool // set by ResetTemplates, consumed by the next lookup
	mu      sync.Mutex
}

// NewImageAnalyzer creates an analyzer.
//
// Parameters:
//   - capturer: Screen capture provider
//   - reader: OCR reader for fish names (nil disables fish recognition)
//   - imagesDir: Root of the template folders (images/<resolution>/<cue>)
//   - resolution: Returns the current resolution folder; read on every lookup
//   - frames: Optional debug frame dumper (nil disables)
func NewImageAnalyzer(capturer Capturer, reader LineReader, imagesDir string, resolution func() string, frames *FrameDumper) *ImageAnalyzer {
	return &ImageAnalyzer{
		capturer:   capturer,
		reader:     reader,
		frames:     frames,
		imagesDir:  imagesDir,
		resolution: resolution,
		cache:      make(map[string]*cvTemplate),
	}
}

// Close releases every cached template
func (ia *ImageAnalyzer) Close() {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	ia.clearLocked()
}

// ResetTemplates marks the template cache stale so files are re-read on next use.
// The Mats are freed by the next lookup, on the goroutine that matches with them.
func (ia *ImageAnalyzer) ResetTemplates() {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	ia.stale = true
	LogInfo("[IMAGE] Template cache marked for reload")
}

func (ia *ImageAnalyzer) clearLocked() {
	for k, t := range ia.cache {
		t.Close()
		delete(ia.cache, k)
	}
}

// TemplatePath returns images/<resolution>/<cue>
func (ia *ImageAnalyzer) TemplatePath(cue string) string {
	return filepath.Join(ia.imagesDir, ia.resolution(), cue)
}

// template loads (or returns the cached) template for cue.
// withAlpha keeps the alpha channel as a mask when the file has one.
// Returns nil for missing or unreadable files; misses are not cached.
func (ia *ImageAnalyzer) template(cue string, withAlpha bool) *cvTemplate {
	ia.mu.Lock()
	defer ia.mu.Unlock()

	if res := ia.resolution(); res != ia.lastRes || ia.stale {
		ia.clearLocked()
		ia.lastRes = res
		ia.stale = false
	}

	path := ia.TemplatePath(cue)
	if t, ok := ia.cache[path]; ok {
		return t
	}
	if _, err := os.Stat(path); err != nil {
		LogDebug("[IMAGE] Template missing: %s", path)
		return nil
	}

	var t *cvTemplate
	if withAlpha {
		t = loadMaskedTemplate(path)
	} else {
		gray := gocv.IMRead(path, gocv.IMReadGrayScale)
		if gray.Empty() {
			gray.Close()
			t = nil
		} else {
			t = &cvTemplate{gray: gray, mask: gocv.NewMat()}
		}
	}
	if t == nil {
		LogWarn("[IMAGE] Failed to load template %s", path)
		return nil
	}
	ia.cache[path] = t
	return t
}

// loadMaskedTemplate reads a template unchanged. A 4-channel image yields a
// gray template from its BGR channels plus a mask where alpha > 1.
func loadMaskedTemplate(path string) *cvTemplate {
	img := gocv.IMRead(path, gocv.IMReadUnchanged)
	defer img.Close()
	if img.Empty() {
		return nil
	}

	switch img.Channels() {
	case 4:
		channels := gocv.Split(img)
		defer func() {
			for _, c := range channels {
				c.Close()
			}
		}()
		if len(channels) < 4 {
			return nil
		}
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.Merge(channels[:3], &bgr)

		gray := gocv.NewMat()
		gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
		mask := gocv.NewMat()
		gocv.Threshold(channels[3], &mask, 1, 255, gocv.ThresholdBinary)
		return &cvTemplate{gray: gray, mask: mask}
	case 3:
		gray := gocv.NewMat()
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
		return &cvTemplate{gray: gray, mask: gocv.NewMat()}
	default:
		return &cvTemplate{gray: img.Clone(), mask: gocv.NewMat()}
	}
}

// captureGray captures rect and returns it as a grayscale Mat.
// The caller closes the Mat. ok is false on any capture or conversion failure.
func (ia *ImageAnalyzer) captureGray(rect Region) (gocv.Mat, bool) {
	img, ok := ia.capturer.CaptureRegion(rect)
	if !ok {
		return gocv.NewMat(), false
	}
	return imageToGrayMat(img)
}

// imageToGrayMat converts any image into a single-channel Mat
func imageToGrayMat(img image.Image) (gocv.Mat, bool) {
	bgr, err := gocv.ImageToMatRGB(img)
	if err != nil {
		LogDebug("[IMAGE] Mat conversion failed: %v", err)
		return gocv.NewMat(), false
	}
	defer bgr.Close()
	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	if gray.Empty() {
		gray.Close()
		return gocv.NewMat(), false
	}
	return gray, true
}

// FindImage looks for cue inside the window rect.
//
// Returns:
//   - MatchResult: Location is the click center in absolute screen coordinates
func (ia *ImageAnalyzer) FindImage(rect Region, cue string, threshold float64) MatchResult {
	t := ia.template(cue, false)
	if t == nil {
		return MatchResult{}
	}
	frame, ok := ia.captureGray(rect)
	defer frame.Close()
	if !ok {
		return MatchResult{}
	}

	m := Match(frame, t.gray, t.mask, threshold)
	if m.Found {
		LogDebug("[IMAGE] FOUND '%s' at (%d, %d) with score=%.3f >= threshold=%.2f",
			cue, m.Location.X, m.Location.Y, m.Score, threshold)
		ia.frames.Dump(frame, cue, []DetectionBox{m.Box(cue, "#00FF00")})
		m.Location = m.Location.Add(rect.Origin())
	} else {
		LogDebug("[IMAGE] '%s' NOT FOUND - score=%.3f < threshold=%.2f", cue, m.Score, threshold)
	}
	return m
}

// FindArrow detects the minigame direction arrow.
//
// Algorithm:
//   1. Capture the window and crop x 30-70%, y 40-60%
//   2. Match left-high.png then right-high.png, each with its alpha mask
//   3. Keep the template with the strictly higher score (left wins ties)
//
// Returns:
//   - Arrow: ArrowNone when no template loaded or matched
//   - float64: Best score (0 with ArrowNone)
func (ia *ImageAnalyzer) FindArrow(rect Region) (Arrow, float64) {
	defer NewTimer("find arrow").Stop()
	frame, ok := ia.captureGray(rect)
	defer frame.Close()
	if !ok {
		return ArrowNone, 0
	}

	full := Region{Width: frame.Cols(), Height: frame.Rows()}
	c := full.RelativeCrop(arrowCrop[0], arrowCrop[1], arrowCrop[2], arrowCrop[3])
	c, ok = c.Clip(full.Width, full.Height)
	if !ok {
		return ArrowNone, 0
	}
	crop := frame.Region(c.Rect())
	defer crop.Close()

	best, bestScore := ArrowNone, 0.0
	var bestMatch MatchResult
	for _, cand := range []struct {
		cue   string
		arrow Arrow
	}{
		{CueArrowLeft, ArrowLeft},
		{CueArrowRight, ArrowRight},
	} {
		t := ia.template(cand.cue, true)
		if t == nil {
			continue
		}
		m := Match(crop, t.gray, t.mask, 0)
		if m.Size.X == 0 {
			continue
		}
		if m.Score > bestScore {
			best, bestScore, bestMatch = cand.arrow, m.Score, m
		}
	}

	if best != ArrowNone {
		LogDebug("[MINIGAME] Arrow %s score=%.3f", best, bestScore)
		ia.frames.Dump(crop, "arrow", []DetectionBox{bestMatch.Box(best.String(), "#FFFF00")})
	}
	return best, bestScore
}

// FindFishName reads the fish name from the result overlay.
//
// Returns:
//   - string: Normalized fish identifier ("" when nothing was read)
//   - float64: DefaultOCRConfidence for non-empty text, 0 otherwise
func (ia *ImageAnalyzer) FindFishName(rect Region) (string, float64) {
	if ia.reader == nil {
		return "", 0
	}
	img, ok := ia.capturer.CaptureRegion(rect)
	if !ok {
		LogDebug("[FISH_DETECT] Failed to capture window for fish detection")
		return "", 0
	}
	crop, ok := fishNameRegion(img)
	if !ok {
		LogDebug("[FISH_DETECT] Crop region out of bounds")
		return "", 0
	}
	return ia.reader.ReadLine(crop)
}

// fishNameRegion crops the fish-name band (x 56%+30%, y 66%+8%) as grayscale.
func fishNameRegion(img image.Image) (image.Image, bool) {
	b := img.Bounds()
	full := Region{Width: b.Dx(), Height: b.Dy()}
	c := full.RelativeCrop(fishNameCrop[0], fishNameCrop[1], fishNameCrop[2], fishNameCrop[3])
	if c.Empty() || c.Left+c.Width > full.Width || c.Top+c.Height > full.Height {
		return nil, false
	}

	src := c.Rect().Add(b.Min)
	gray := image.NewGray(image.Rect(0, 0, c.Width, c.Height))
	draw.Draw(gray, gray.Bounds(), img, src.Min, draw.Src)
	return gray, true
}
