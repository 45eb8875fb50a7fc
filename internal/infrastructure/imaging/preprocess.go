package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

type Normalization string

const (
	NormalizeZeroOne     Normalization = "zero_one"
	NormalizeMinusOneOne Normalization = "minus_one_one"
)

type Config struct {
	InputSize     int
	MinSide       int
	MinVariance   float64
	Normalization Normalization
}

func DefaultConfig() Config {
	return Config{
		InputSize:     224,
		MinSide:       50,
		MinVariance:   100,
		Normalization: NormalizeZeroOne,
	}
}

// Preprocessor decodes uploads and turns them into NHWC float32 tensors.
type Preprocessor struct {
	cfg Config
}

func NewPreprocessor(cfg Config) *Preprocessor {
	defaults := DefaultConfig()
	if cfg.InputSize <= 0 {
		cfg.InputSize = defaults.InputSize
	}
	if cfg.MinSide < 0 {
		cfg.MinSide = defaults.MinSide
	}
	if cfg.MinVariance < 0 {
		cfg.MinVariance = defaults.MinVariance
	}
	if cfg.Normalization == "" {
		cfg.Normalization = defaults.Normalization
	}
	return &Preprocessor{cfg: cfg}
}

func (p *Preprocessor) Preprocess(ctx context.Context, data []byte) (domain.ImageTensor, error) {
	if err := ctx.Err(); err != nil {
		return domain.ImageTensor{}, err
	}
	if len(data) == 0 {
		return domain.ImageTensor{}, domain.WrapError(domain.ErrImagePreprocess, "decode image", fmt.Errorf("empty payload"))
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.ImageTensor{}, domain.WrapError(domain.ErrImagePreprocess, "decode image", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() < p.cfg.MinSide || bounds.Dy() < p.cfg.MinSide {
		return domain.ImageTensor{}, domain.WrapError(
			domain.ErrImagePreprocess,
			"validate image",
			fmt.Errorf("%s image %dx%d is smaller than %dpx", format, bounds.Dx(), bounds.Dy(), p.cfg.MinSide),
		)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)

	if variance := MeanChannelVariance(rgba); variance < p.cfg.MinVariance {
		return domain.ImageTensor{}, domain.WrapError(
			domain.ErrImagePreprocess,
			"validate image",
			fmt.Errorf("color variance %.1f below %.1f, image looks uniform", variance, p.cfg.MinVariance),
		)
	}

	size := p.cfg.InputSize
	resized := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(resized, resized.Bounds(), rgba, rgba.Bounds(), draw.Src, nil)

	return domain.ImageTensor{
		Data:     p.toTensor(resized),
		Width:    size,
		Height:   size,
		Channels: 3,
	}, nil
}

func (p *Preprocessor) toTensor(img *image.RGBA) []float32 {
	b := img.Bounds()
	out := make([]float32, 0, b.Dx()*b.Dy()*3)
	scale, shift := 1.0/255.0, 0.0
	if p.cfg.Normalization == NormalizeMinusOneOne {
		scale, shift = 2.0/255.0, -1.0
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			px := row[x*4 : x*4+3]
			out = append(out,
				float32(float64(px[0])*scale+shift),
				float32(float64(px[1])*scale+shift),
				float32(float64(px[2])*scale+shift),
			)
		}
	}
	return out
}

// MeanChannelVariance is the per-channel pixel variance averaged over R, G
// and B on the 0..255 scale. Alpha is ignored.
func MeanChannelVariance(img *image.RGBA) float64 {
	b := img.Bounds()
	n := float64(b.Dx() * b.Dy())
	if n == 0 {
		return 0
	}
	var sum, sumSq [3]float64
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			for c := 0; c < 3; c++ {
				v := float64(row[x*4+c])
				sum[c] += v
				sumSq[c] += v * v
			}
		}
	}
	total := 0.0
	for c := 0; c < 3; c++ {
		mean := sum[c] / n
		total += sumSq[c]/n - mean*mean
	}
	return total / 3
}
