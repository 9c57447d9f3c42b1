// Package mock simulates the scanning hardware so the server can run on a
// machine without a camera or turntable.
package mock

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"log"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"
)

const previewWidth, previewHeight = 320, 240

// Rig is a simulated camera and turntable. Frames show a lit object whose
// highlight follows the current bed angle.
type Rig struct {
	mu    sync.Mutex
	angle float64
	shots int
	delay time.Duration
	rng   *rand.Rand
}

// NewRig returns a simulated rig; every operation takes delay to complete.
func NewRig(delay time.Duration) *Rig {
	return &Rig{
		delay: delay,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Rig) sleep(ctx context.Context) error {
	if r.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(r.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Angle is the bed position in [0, 360).
func (r *Rig) Angle() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.angle
}

// Shots counts pictures taken by Capture.
func (r *Rig) Shots() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shots
}

func (r *Rig) Rotate(ctx context.Context, degrees float64) error {
	if err := r.sleep(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	r.angle = math.Mod(r.angle+degrees, 360)
	if r.angle < 0 {
		r.angle += 360
	}
	r.mu.Unlock()
	return nil
}

func (r *Rig) Capture(ctx context.Context, path string, width, height int) error {
	if err := r.sleep(ctx); err != nil {
		return err
	}
	data, err := r.frame(width, height)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	r.mu.Lock()
	r.shots++
	r.mu.Unlock()
	return nil
}

func (r *Rig) Preview(ctx context.Context) ([]byte, error) {
	if err := r.sleep(ctx); err != nil {
		return nil, err
	}
	return r.frame(previewWidth, previewHeight)
}

// Ready logs the simulated hardware as available.
func (r *Rig) Ready() {
	log.Println("Mock rig ready (no hardware attached)")
}

func (r *Rig) frame(width, height int) ([]byte, error) {
	r.mu.Lock()
	angle := r.angle * math.Pi / 180
	noise := r.rng.Intn(16)
	r.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	cx, cy := float64(width)/2, float64(height)/2
	rx, ry := float64(width)/5, float64(height)/3
	// Highlight position on the object moves with the bed.
	hx, hy := cx+rx*0.6*math.Sin(angle), cy-ry*0.3

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			fx, fy := float64(x), float64(y)
			dx, dy := (fx-cx)/rx, (fy-cy)/ry
			if dx*dx+dy*dy <= 1 {
				d := math.Hypot(fx-hx, fy-hy) / (rx * 1.5)
				shade := uint8(math.Max(40, 230-200*d))
				img.Set(x, y, color.RGBA{shade, uint8(float64(shade) * 0.8), uint8(float64(shade) * 0.6), 255})
				continue
			}
			bg := uint8(30 + 60*fy/float64(height) + float64(noise))
			img.Set(x, y, color.RGBA{bg, bg, bg + 10, 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
