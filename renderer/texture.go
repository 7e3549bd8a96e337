package renderer

import (
	"fmt"
	"image"
	"image/draw"
	"math/bits"

	"github.com/pkg/errors"

	"GPU_render_graph/hal"
)

const TEXTURE_FORMAT = hal.FormatR8G8B8A8Srgb

// Texture is a sampled RGBA image living in ShaderReadOnly layout once created.
type Texture struct {
	dev       hal.Device
	Image     hal.Image
	View      hal.ImageView
	Extent    hal.Extent3D
	Format    hal.Format
	MipLevels uint32
}

// MipLevels is the length of the full mip chain of a w by h image.
func MipLevels(w, h uint32) uint32 {
	m := max(w, h)
	if m == 0 {
		return 1
	}
	return uint32(bits.Len32(m))
}

// toRGBA returns the pixels of img as tightly packed RGBA rows.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*rgba.Rect.Dx() && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// NewTexture uploads img and, when mips is set, generates the full mip chain with blits.
func NewTexture(ctx *Context, img image.Image, mips bool) (*Texture, error) {
	rgba := toRGBA(img)
	w, h := uint32(rgba.Rect.Dx()), uint32(rgba.Rect.Dy())
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("texture of zero size %dx%d", w, h)
	}
	dev := ctx.Device()
	levels := uint32(1)
	if mips {
		levels = MipLevels(w, h)
	}

	staging, err := NewBuffer(dev, uint64(len(rgba.Pix)), hal.BufferUsageTransferSrc, hal.MemoryCPUToGPU)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()
	if err := staging.Write(0, rgba.Pix); err != nil {
		return nil, errors.Wrap(err, "failed to fill texture staging buffer")
	}

	t := &Texture{
		dev:       dev,
		Extent:    hal.Extent3D{Width: w, Height: h, Depth: 1},
		Format:    TEXTURE_FORMAT,
		MipLevels: levels,
	}
	t.Image, err = dev.CreateImage(hal.ImageDesc{
		Extent:    t.Extent,
		Format:    t.Format,
		Usage:     hal.UsageSampled | hal.UsageTransferDst | hal.UsageTransferSrc,
		MipLevels: levels,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create texture image")
	}

	err = ctx.SubmitImmediate(func(rec *CommandRecorder) {
		rec.TransitionMips(t.Image, hal.AspectColor, hal.LayoutUndefined, hal.LayoutTransferDst, 0, levels)
		rec.CopyBufferToImage(staging.Handle, t.Image, t.Extent)
		t.generateMips(rec)
	})
	if err != nil {
		t.Destroy()
		return nil, errors.Wrap(err, "failed to upload texture")
	}

	t.View, err = dev.CreateImageView(t.Image, t.Format, hal.AspectColor, levels)
	if err != nil {
		t.Destroy()
		return nil, errors.Wrap(err, "failed to create texture view")
	}
	Logger().Debug("texture created", "width", w, "height", h, "mips", levels)
	return t, nil
}

// generateMips expects every level in TransferDst with level 0 filled, and leaves every level in
// ShaderReadOnly.
func (t *Texture) generateMips(rec *CommandRecorder) {
	size := t.Extent
	for level := uint32(1); level < t.MipLevels; level++ {
		next := hal.Extent3D{Width: max(size.Width/2, 1), Height: max(size.Height/2, 1), Depth: 1}
		rec.TransitionMips(t.Image, hal.AspectColor, hal.LayoutTransferDst, hal.LayoutTransferSrc, level-1, 1)
		rec.BlitMip(t.Image, t.Image, size, next, level-1, level, hal.AspectColor)
		rec.TransitionMips(t.Image, hal.AspectColor, hal.LayoutTransferSrc, hal.LayoutShaderReadOnly, level-1, 1)
		size = next
	}
	rec.TransitionMips(t.Image, hal.AspectColor, hal.LayoutTransferDst, hal.LayoutShaderReadOnly, t.MipLevels-1, 1)
}

func (t *Texture) Destroy() {
	if t.View != 0 {
		t.dev.DestroyImageView(t.View)
		t.View = 0
	}
	if t.Image != 0 {
		t.dev.DestroyImage(t.Image)
		t.Image = 0
	}
}

// Sampler wraps a device sampler.
type Sampler struct {
	dev    hal.Device
	Handle hal.Sampler
	Desc   hal.SamplerDesc
}

// DefaultSamplerDesc is trilinear, repeating and anisotropic.
func DefaultSamplerDesc() hal.SamplerDesc {
	return hal.SamplerDesc{
		MinFilter:   hal.FilterLinear,
		MagFilter:   hal.FilterLinear,
		MipFilter:   hal.FilterLinear,
		AddressMode: hal.AddressRepeat,
		MaxLod:      16,
		Anisotropy:  true,
	}
}

func NewSampler(dev hal.Device, desc hal.SamplerDesc) (*Sampler, error) {
	h, err := dev.CreateSampler(desc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sampler")
	}
	return &Sampler{dev: dev, Handle: h, Desc: desc}, nil
}

func (s *Sampler) Destroy() {
	if s.Handle != 0 {
		s.dev.DestroySampler(s.Handle)
		s.Handle = 0
	}
}
