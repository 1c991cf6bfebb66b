// Package color derives stable avatar colors for users without a photo.
package color

import (
	"fmt"
	"hash/fnv"
	"math"
)

const (
	avatarSaturation = 0.45
	avatarLightness  = 0.6
)

// ForUser returns a hex color such as "#7FB08A" for uid.
// The same uid always maps to the same color.
func ForUser(uid string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(uid))
	hue := float64(h.Sum32() % 360)

	r, g, b := hsl(hue, avatarSaturation, avatarLightness)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// hsl converts hue (0-360), saturation and lightness (0-1) to RGB.
func hsl(h, s, l float64) (r, g, b uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r1, g1, b1 float64
	switch {
	case h < 60:
		r1, g1, b1 = c, x, 0
	case h < 120:
		r1, g1, b1 = x, c, 0
	case h < 180:
		r1, g1, b1 = 0, c, x
	case h < 240:
		r1, g1, b1 = 0, x, c
	case h < 300:
		r1, g1, b1 = x, 0, c
	default:
		r1, g1, b1 = c, 0, x
	}
	return channel(r1 + m), channel(g1 + m), channel(b1 + m)
}

func channel(v float64) uint8 {
	return uint8(math.Round(v * 255))
}
