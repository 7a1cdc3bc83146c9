package engine

import (
	"image"
	"math"
	"testing"

	iface "LaserRange/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// region builds a contour summary with a w×h bounding box.
func region(w, h int, area, perimeter float64) iface.Region {
	return iface.Region{Area: area, Perimeter: perimeter, Bounds: image.Rect(0, 0, w, h)}
}

func diskRegion(d int) iface.Region {
	r := float64(d) / 2
	return region(d, d, math.Pi*r*r, 2*math.Pi*r)
}

func TestCircularity(t *testing.T) {
	assert.InDelta(t, 1.0, Circularity(math.Pi*100, 2*math.Pi*10), 1e-9)
	assert.InDelta(t, math.Pi/4, Circularity(100, 40), 1e-9)
	assert.Equal(t, 0.0, Circularity(10, 0))
}

func TestClassify(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name    string
		regions []iface.Region
		ok      bool
		width   int
	}{
		{"empty", nil, false, 0},
		{"disk", []iface.Region{diskRegion(20)}, true, 20},
		{"area at threshold rejected", []iface.Region{region(8, 8, 50, 2*math.Sqrt(50*math.Pi))}, false, 0},
		{"zero perimeter skipped", []iface.Region{region(20, 20, 400, 0), diskRegion(30)}, true, 30},
		{"elongated rejected", []iface.Region{region(100, 10, 1000, 220)}, false, 0},
		{"aspect at lower edge rejected", []iface.Region{region(8, 10, 300, 62)}, false, 0},
		{"aspect at upper edge rejected", []iface.Region{region(12, 10, 300, 62)}, false, 0},
		{"aspect inside band", []iface.Region{region(11, 10, 300, 62)}, true, 11},
		{"zero height skipped", []iface.Region{region(10, 0, 300, 62)}, false, 0},
		{"first match wins", []iface.Region{diskRegion(40), diskRegion(20)}, true, 40},
		{"later match after rejects", []iface.Region{region(100, 10, 1000, 220), diskRegion(24)}, true, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := Classify(tt.regions, p)
			require.Equal(t, tt.ok, ok)
			if !ok {
				assert.Equal(t, iface.Candidate{}, c)
				return
			}
			assert.Equal(t, tt.width, c.ApparentWidth)
			assert.Equal(t, tt.width, c.Bounds.Dx())
			assert.Greater(t, c.Circularity, p.CircularityMin)
			assert.Greater(t, c.AspectRatio, p.AspectMin)
			assert.Less(t, c.AspectRatio, p.AspectMax)
		})
	}
}

func TestClassify_CustomThresholds(t *testing.T) {
	p := DefaultParams()
	p.MinArea = 1000
	_, ok := Classify([]iface.Region{diskRegion(20)}, p)
	assert.False(t, ok)

	p = DefaultParams()
	p.CircularityMin = 0.2
	_, ok = Classify([]iface.Region{region(11, 10, 110, 60)}, p)
	assert.True(t, ok)
}

func TestHueBand_Contains(t *testing.T) {
	assert.True(t, RedLow.Contains(0, 150, 150))
	assert.True(t, RedLow.Contains(10, 255, 255))
	assert.False(t, RedLow.Contains(11, 200, 200))
	assert.False(t, RedLow.Contains(5, 149, 200))
	assert.True(t, RedHigh.Contains(170, 150, 150))
	assert.True(t, RedHigh.Contains(180, 255, 255))
	assert.False(t, RedHigh.Contains(169, 200, 200))
	assert.False(t, RedHigh.Contains(175, 200, 149))
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"no bands", func(p *Params) { p.HueBands = nil }},
		{"inverted band", func(p *Params) { p.HueBands = []HueBand{{HueMin: 20, HueMax: 10, SatMax: 255, ValMax: 255}} }},
		{"hue out of range", func(p *Params) { p.HueBands = []HueBand{{HueMin: 170, HueMax: 200, SatMax: 255, ValMax: 255}} }},
		{"even blur kernel", func(p *Params) { p.BlurKernel = 4 }},
		{"zero morph kernel", func(p *Params) { p.MorphKernel = 0 }},
		{"negative iterations", func(p *Params) { p.MorphIterations = -1 }},
		{"negative area", func(p *Params) { p.MinArea = -1 }},
		{"circularity above one", func(p *Params) { p.CircularityMin = 1.5 }},
		{"empty aspect band", func(p *Params) { p.AspectMin, p.AspectMax = 1.2, 0.8 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}
