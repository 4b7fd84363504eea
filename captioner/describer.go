package captioner

import (
	"context"
	"fmt"
	"image"
	"sort"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Describer is the built-in captioner. It decodes the image and composes a
// caption from orientation, luminance, and dominant color analysis, so the
// service works end to end without a remote model.
type Describer struct {
	logger *zap.Logger
}

func NewDescriber(logger *zap.Logger) *Describer {
	return &Describer{logger: logger}
}

func (d *Describer) Caption(ctx context.Context, imagePath string) (string, error) {
	src, err := imaging.Open(imagePath)
	if err != nil {
		d.logger.Error("Failed to open image",
			zap.String("path", imagePath),
			zap.Error(err),
		)
		return "", fmt.Errorf("open image: %w", err)
	}

	// Analysis runs on a small thumbnail; full resolution adds nothing here.
	thumb := imaging.Resize(src, 64, 0, imaging.Lanczos)

	orientation := describeOrientation(src.Bounds())
	tone := describeTone(thumb)
	colors := dominantColors(thumb, 2)

	caption := fmt.Sprintf("a %s %s image", tone, orientation)
	switch len(colors) {
	case 1:
		caption += fmt.Sprintf(" in mostly %s tones", colors[0])
	case 2:
		caption += fmt.Sprintf(" in %s and %s tones", colors[0], colors[1])
	}

	d.logger.Debug("Generated caption",
		zap.String("path", imagePath),
		zap.String("caption", caption),
	)

	return caption, nil
}

func describeOrientation(bounds image.Rectangle) string {
	w, h := bounds.Dx(), bounds.Dy()
	switch {
	case float64(w) > float64(h)*1.2:
		return "landscape"
	case float64(h) > float64(w)*1.2:
		return "portrait"
	default:
		return "square"
	}
}

func describeTone(img image.Image) string {
	bounds := img.Bounds()
	var sum, count float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			sum += 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			count++
		}
	}
	if count == 0 {
		return "plain"
	}
	switch lum := sum / count; {
	case lum > 170:
		return "bright"
	case lum < 85:
		return "dark"
	default:
		return "muted"
	}
}

func dominantColors(img image.Image, limit int) []string {
	counts := map[string]int{}
	bounds := img.Bounds()
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			counts[colorName(uint8(r>>8), uint8(g>>8), uint8(b>>8))]++
			total++
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	var picked []string
	for _, name := range names {
		// A color must cover at least a tenth of the image to be worth naming.
		if counts[name]*10 < total {
			break
		}
		picked = append(picked, name)
		if len(picked) == limit {
			break
		}
	}
	return picked
}

func colorName(r, g, b uint8) string {
	max := maxByte(r, maxByte(g, b))
	min := minByte(r, minByte(g, b))
	spread := int(max) - int(min)

	if spread < 30 {
		switch {
		case max > 200:
			return "white"
		case max < 60:
			return "black"
		default:
			return "gray"
		}
	}

	switch {
	case r >= g && r >= b:
		if int(g) > int(b)+40 {
			return "orange"
		}
		if int(b) > int(g)+40 {
			return "pink"
		}
		return "red"
	case g >= r && g >= b:
		if int(b) > int(r)+40 {
			return "teal"
		}
		if int(r) > int(b)+40 {
			return "yellow"
		}
		return "green"
	default:
		if int(r) > int(g)+40 {
			return "purple"
		}
		return "blue"
	}
}

func maxByte(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

func minByte(a, b uint8) uint8 {
	if a < b {
		return a
	}
	return b
}
