package chart

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

func row(cat string, est, act int64) variance.Row {
	e, a := decimal.NewFromInt(est), decimal.NewFromInt(act)
	v := a.Sub(e)
	return variance.Row{Category: cat, Estimated: e, Actual: a, Variance: v, VariancePct: variance.PercentOf(v, e)}
}

func decode(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	return img
}

// firstRow returns the topmost y holding an exact want pixel, or -1.
func firstRow(img image.Image, want [3]uint8) int {
	bnd := img.Bounds()
	for y := bnd.Min.Y; y < bnd.Max.Y; y++ {
		for x := bnd.Min.X; x < bnd.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if uint8(r>>8) == want[0] && uint8(g>>8) == want[1] && uint8(b>>8) == want[2] {
				return y
			}
		}
	}
	return -1
}

var (
	red   = [3]uint8{0xd3, 0x2f, 0x2f}
	green = [3]uint8{0x38, 0x8e, 0x3c}
)

func TestRenderColorsAndOrder(t *testing.T) {
	rows := []variance.Row{
		row("Labor", 1000, 1100),
		row("Materials", 500, 450),
		row("Marketing", 200, 0),
	}
	b, err := Render("Kitchen Remodel", rows)
	require.NoError(t, err)
	img := decode(t, b)

	redY, greenY := firstRow(img, red), firstRow(img, green)
	require.GreaterOrEqual(t, redY, 0, "over budget bar missing")
	require.GreaterOrEqual(t, greenY, 0, "under budget bar missing")
	// ascending from the bottom: the overrun sits above every underrun
	assert.Less(t, redY, greenY)
}

func TestRenderHeightGrowsWithRows(t *testing.T) {
	one, err := Render("p", []variance.Row{row("A", 1, 2)})
	require.NoError(t, err)
	five, err := Render("p", []variance.Row{
		row("A", 1, 2), row("B", 1, 2), row("C", 2, 1), row("D", 3, 3), row("E", 0, 9),
	})
	require.NoError(t, err)
	a, b := decode(t, one).Bounds(), decode(t, five).Bounds()
	assert.Equal(t, a.Dx(), b.Dx())
	assert.Greater(t, b.Dy(), a.Dy())
	assert.Greater(t, Height(5), Height(1))
}

func TestSortedRows(t *testing.T) {
	rows := []variance.Row{row("Labor", 1000, 1100), row("Materials", 500, 450), row("Marketing", 200, 0), row("Tie", 50, 0)}
	got := sortedRows(rows)
	var cats []string
	for _, r := range got {
		cats = append(cats, r.Category)
	}
	assert.Equal(t, []string{"Marketing", "Materials", "Tie", "Labor"}, cats)
	assert.Equal(t, "Labor", rows[0].Category, "input must not be reordered")
}

func TestRenderAllOnBudget(t *testing.T) {
	b, err := Render("Flat", []variance.Row{row("X", 5, 5)})
	require.NoError(t, err)
	img := decode(t, b)
	assert.Equal(t, -1, firstRow(img, red))
	assert.Equal(t, -1, firstRow(img, green))
}

func TestRenderNoRows(t *testing.T) {
	_, err := Render("x", nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestMoneyTicks(t *testing.T) {
	ticks := moneyTicks{}.Ticks(-200, 300)
	require.NotEmpty(t, ticks)
	for _, tk := range ticks {
		if tk.Label != "" {
			assert.Contains(t, tk.Label, "$")
		}
	}
}

func TestDataURI(t *testing.T) {
	b, err := Render("p", []variance.Row{row("X", 1, 2)})
	require.NoError(t, err)
	uri := DataURI(b)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, b, raw)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 20))
	assert.Equal(t, "abcd~", clip("abcdefgh", 5))
}
