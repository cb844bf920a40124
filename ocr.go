// Package main - ocr.go
//
// This file implements fish-name recognition with tesseract (gosseract).
//
// Pipeline:
//   1. Crop the fish-name band out of the captured window (done by ImageAnalyzer)
//   2. Upscale by ocr.upscale with Catmull-Rom (small UI text reads poorly at 1x)
//   3. PNG-encode and run single-line recognition (PSM 7)
//   4. Normalize: trim, spaces -> "_", strip "#", lowercase
//
// Confidence:
// tesseract's per-word confidences are not reliable for this overlay text, so a
// non-empty result is reported with DefaultOCRConfidence and an empty one with 0.
package main

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract"
	"golang.org/x/image/draw"
)

// DefaultOCRConfidence is reported for every non-empty recognition
const DefaultOCRConfidence = 0.8

// NormalizeFishName turns raw OCR text into a catalog identifier
func NormalizeFishName(text string) string {
	s := strings.TrimSpace(text)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "#", "")
	return strings.ToLower(s)
}

// TextReader recognizes single lines of text.
//
// The gosseract client is created lazily on first use and reused; it is not
// safe for concurrent use, so calls are serialized.
type TextReader struct {
	language string
	upscale  int
	client   *gosseract.Client
	mu       sync.Mutex
}

// NewTextReader creates a reader for language with the given upscale factor
func NewTextReader(language string, upscale int) *TextReader {
	if upscale < 1 {
		upscale = 1
	}
	return &TextReader{language: language, upscale: upscale}
}

// Close releases the tesseract client
func (t *TextReader) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		t.client.Close()
		t.client = nil
	}
}

func (t *TextReader) ensureClient() *gosseract.Client {
	if t.client == nil {
		c := gosseract.NewClient()
		if err := c.SetLanguage(t.language); err != nil {
			LogWarn("[FISH_DETECT] Failed to set OCR language %q: %v", t.language, err)
		}
		if err := c.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
			LogWarn("[FISH_DETECT] Failed to set page segmentation mode: %v", err)
		}
		t.client = c
	}
	return t.client
}

// ReadLine recognizes img and returns the normalized text and its confidence.
// Any failure is reported as ("", 0).
func (t *TextReader) ReadLine(img image.Image) (string, float64) {
	if img == nil || img.Bounds().Empty() {
		return "", 0
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, upscaleImage(img, t.upscale)); err != nil {
		LogDebug("[FISH_DETECT] PNG encode failed: %v", err)
		return "", 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	client := t.ensureClient()
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		LogDebug("[FISH_DETECT] OCR image load failed: %v", err)
		return "", 0
	}
	text, err := client.Text()
	if err != nil {
		LogDebug("[FISH_DETECT] OCR failed: %v", err)
		return "", 0
	}

	name := NormalizeFishName(text)
	if name == "" {
		return "", 0
	}
	LogDebug("[FISH_DETECT] OCR raw=%q normalized=%q", text, name)
	return name, DefaultOCRConfidence
}

// upscaleImage scales img by factor using Catmull-Rom; factor 1 returns img.
func upscaleImage(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
