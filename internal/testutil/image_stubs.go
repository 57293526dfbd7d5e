// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"agora/internal/models"
)

// MemoryImages is an ImageRepository held in a map keyed by hash.
type MemoryImages struct {
	mu     sync.Mutex
	byHash map[string]models.Image
	lastID uint
	Saves  int
}

func NewMemoryImages() *MemoryImages {
	return &MemoryImages{byHash: make(map[string]models.Image)}
}

func (m *MemoryImages) Save(_ context.Context, img *models.Image) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves++
	if stored, ok := m.byHash[img.Hash]; ok {
		*img = stored
		return false, nil
	}
	m.lastID++
	img.ID = m.lastID
	img.CreatedAt = time.Now().UTC()
	m.byHash[img.Hash] = *img
	return true, nil
}

func (m *MemoryImages) FindByHash(_ context.Context, hash string) (*models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byHash[hash]
	if !ok {
		return nil, models.NewNotFoundError("Image", hash)
	}
	return &stored, nil
}

// Len returns how many distinct images are stored.
func (m *MemoryImages) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byHash)
}

// TinyPNG encodes a w×h PNG with a red top row, so the image is not blank.
func TinyPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
