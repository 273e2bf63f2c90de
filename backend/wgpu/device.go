// Package wgpu implements the render.Device interface over the
// gogpu/wgpu HAL. It owns the glyph quad render pipeline and turns
// submitted frames into command buffers with asynchronous fence-based
// completion.
package wgpu

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/textframe"
	"github.com/gogpu/textframe/atlas"
	"github.com/gogpu/textframe/render"
)

// Embedded glyph quad shader source.
//
//go:embed shaders/text.wgsl
var textShaderSource string

// Backend errors.
var (
	// ErrNilHALDevice is returned when constructing without a device.
	ErrNilHALDevice = errors.New("wgpu: hal device is nil")

	// ErrNoHALProvider is returned when a device provider does not expose
	// HAL types.
	ErrNoHALProvider = errors.New("wgpu: provider does not expose HAL types")
)

// uniformSize is the byte size of the per-draw uniform buffer.
// Layout: transform (mat4x4<f32>) = 64 bytes +
// color (vec4<f32>) = 16 bytes + params (vec4<f32>) = 16 bytes = 96 bytes.
const uniformSize = 96

// completionWait bounds how long the completion goroutine waits on the
// frame fence before reporting the frame lost.
const completionWait = 5 * time.Second

// Device renders text frames through the wgpu HAL. Create one with New
// or FromProvider; it implements render.Device.
//
// Device is safe for concurrent use. Submission serializes through the
// HAL queue; per-frame resources are owned by the frame that created
// them and released from its completion goroutine.
type Device struct {
	device hal.Device
	queue  hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
	sampler    hal.Sampler
}

// New creates a Device over an existing HAL device and queue, compiling
// the glyph shader and building the render pipeline up front. A nil
// device or pipeline construction failure means accelerated text is
// unavailable on this host.
func New(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}

	d := &Device{device: device, queue: queue}
	if err := d.createPipeline(); err != nil {
		d.Destroy()
		return nil, err
	}
	return d, nil
}

// FromProvider creates a Device from a host device provider (e.g. a
// gogpu App). The provider must expose HalDevice() any and HalQueue()
// any returning wgpu/hal types.
func FromProvider(provider any) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALProvider)
	}
	return New(device, queue)
}

// createPipeline compiles the glyph shader and creates the render
// pipeline with premultiplied alpha blending.
func (d *Device) createPipeline() error {
	shader, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "textframe_shader",
		Source: hal.ShaderSource{WGSL: textShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile text shader: %w", err)
	}
	d.shader = shader

	// Bind group layout:
	//   Binding 0: TextUniforms (uniform buffer, vertex+fragment)
	//   Binding 1: coverage atlas texture (texture_2d, fragment)
	//   Binding 2: sampler (fragment)
	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "textframe_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create text bind layout: %w", err)
	}
	d.bindLayout = bindLayout

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "textframe_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{d.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create text pipeline layout: %w", err)
	}
	d.pipeLayout = pipeLayout

	sampler, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "textframe_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("create text sampler: %w", err)
	}
	d.sampler = sampler

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "textframe_pipeline",
		Layout: d.pipeLayout,
		Vertex: hal.VertexState{
			Module:     d.shader,
			EntryPoint: "vs_main",
			Buffers:    textVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     d.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    gputypes.TextureFormatRGBA8Unorm,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create text pipeline: %w", err)
	}
	d.pipeline = pipeline

	return nil
}

// Destroy releases all pipeline resources in reverse creation order.
// Safe to call on a partially constructed Device.
func (d *Device) Destroy() {
	if d.device == nil {
		return
	}
	if d.pipeline != nil {
		d.device.DestroyRenderPipeline(d.pipeline)
		d.pipeline = nil
	}
	if d.sampler != nil {
		d.device.DestroySampler(d.sampler)
		d.sampler = nil
	}
	if d.pipeLayout != nil {
		d.device.DestroyPipelineLayout(d.pipeLayout)
		d.pipeLayout = nil
	}
	if d.bindLayout != nil {
		d.device.DestroyBindGroupLayout(d.bindLayout)
		d.bindLayout = nil
	}
	if d.shader != nil {
		d.device.DestroyShaderModule(d.shader)
		d.shader = nil
	}
}

// textVertexLayout returns the vertex buffer layout for the glyph
// pipeline. Matches VertexInput in text.wgsl:
//
//	location 0: position (vec2<f32>)
//	location 1: tex_coord (vec2<f32>)
func textVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: render.VertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1}, // tex_coord
			},
		},
	}
}

// surface is an offscreen RGBA8 render target.
type surface struct {
	dev    *Device
	tex    hal.Texture
	view   hal.TextureView
	width  int
	height int
	scale  float64
}

func (s *surface) Width() int     { return s.width }
func (s *surface) Height() int    { return s.height }
func (s *surface) Scale() float64 { return s.scale }

func (s *surface) Destroy() {
	if s.view != nil {
		s.dev.device.DestroyTextureView(s.view)
		s.view = nil
	}
	if s.tex != nil {
		s.dev.device.DestroyTexture(s.tex)
		s.tex = nil
	}
}

// CreateSurface allocates an offscreen RGBA8 render target.
func (d *Device) CreateSurface(width, height int, scale float64) (render.Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("wgpu: invalid surface size %dx%d", width, height)
	}

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: "textframe_target",
		Size: hal.Extent3D{
			Width:              uint32(width),  //nolint:gosec // validated positive
			Height:             uint32(height), //nolint:gosec // validated positive
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create target texture: %w", err)
	}

	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "textframe_target_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpu: create target view: %w", err)
	}

	return &surface{dev: d, tex: tex, view: view, width: width, height: height, scale: scale}, nil
}

// atlasTexture is a single-channel coverage texture glyph bitmaps are
// uploaded into.
type atlasTexture struct {
	dev    *Device
	tex    hal.Texture
	view   hal.TextureView
	width  int
	height int
}

func (t *atlasTexture) Width() int  { return t.width }
func (t *atlasTexture) Height() int { return t.height }

// Upload copies coverage pixels into the given region via the queue.
func (t *atlasTexture) Upload(x, y, w, h int, pix []byte) error {
	if len(pix) != w*h {
		return fmt.Errorf("wgpu: upload size mismatch: %d bytes for %dx%d", len(pix), w, h)
	}
	if w == 0 || h == 0 {
		return nil
	}

	t.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  t.tex,
			MipLevel: 0,
			Origin: hal.Origin3D{
				X: uint32(x), //nolint:gosec // atlas coordinates are non-negative
				Y: uint32(y), //nolint:gosec // atlas coordinates are non-negative
			},
		},
		pix,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(w), //nolint:gosec // bounded by atlas size
			RowsPerImage: uint32(h), //nolint:gosec // bounded by atlas size
		},
		&hal.Extent3D{
			Width:              uint32(w), //nolint:gosec // bounded by atlas size
			Height:             uint32(h), //nolint:gosec // bounded by atlas size
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

// CreateAtlasTexture allocates a single-channel (R8) texture for glyph
// coverage storage.
func (d *Device) CreateAtlasTexture(width, height int) (atlas.Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("wgpu: invalid atlas size %dx%d", width, height)
	}

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: "textframe_atlas",
		Size: hal.Extent3D{
			Width:              uint32(width),  //nolint:gosec // validated positive
			Height:             uint32(height), //nolint:gosec // validated positive
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatR8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create atlas texture: %w", err)
	}

	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "textframe_atlas_view",
		Format:        gputypes.TextureFormatR8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("wgpu: create atlas view: %w", err)
	}

	return &atlasTexture{dev: d, tex: tex, view: view, width: width, height: height}, nil
}

// drawResources holds the per-draw GPU buffers and bind group for one
// frame. Released from the completion goroutine after the fence signals.
type drawResources struct {
	vertBuf    hal.Buffer
	idxBuf     hal.Buffer
	uniformBuf hal.Buffer
	bindGroup  hal.BindGroup
	indexCount uint32
}

func (r *drawResources) destroy(device hal.Device) {
	if r.bindGroup != nil {
		device.DestroyBindGroup(r.bindGroup)
	}
	if r.uniformBuf != nil {
		device.DestroyBuffer(r.uniformBuf)
	}
	if r.idxBuf != nil {
		device.DestroyBuffer(r.idxBuf)
	}
	if r.vertBuf != nil {
		device.DestroyBuffer(r.vertBuf)
	}
}

// SubmitDrawBatch encodes the frame's clear and draw calls into a single
// command buffer and submits it. done fires from a completion goroutine
// once the frame fence signals (or the wait fails).
func (d *Device) SubmitDrawBatch(f *render.Frame, done func(render.CompletionInfo)) error {
	target, ok := f.Target.(*surface)
	if !ok || target.view == nil {
		return fmt.Errorf("wgpu: frame target is not a wgpu surface")
	}

	// Build per-draw buffers and bind groups before encoding so a
	// failure leaves nothing submitted.
	resources := make([]*drawResources, 0, len(f.Draws))
	cleanup := func() {
		for _, r := range resources {
			r.destroy(d.device)
		}
	}
	for i := range f.Draws {
		res, err := d.buildDrawResources(&f.Draws[i], target)
		if err != nil {
			cleanup()
			return fmt.Errorf("wgpu: draw %d: %w", i, err)
		}
		resources = append(resources, res)
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "textframe_encoder",
	})
	if err != nil {
		cleanup()
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("textframe_frame"); err != nil {
		cleanup()
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	bg := f.Background.Premultiply()
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "textframe_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       target.view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: bg.R, G: bg.G, B: bg.B, A: bg.A},
		}},
	})

	for _, res := range resources {
		if res.indexCount == 0 {
			continue
		}
		rp.SetPipeline(d.pipeline)
		rp.SetBindGroup(0, res.bindGroup, nil)
		rp.SetVertexBuffer(0, res.vertBuf, 0)
		rp.SetIndexBuffer(res.idxBuf, gputypes.IndexFormatUint16, 0)
		rp.DrawIndexed(res.indexCount, 1, 0, 0, 0)
	}

	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		cleanup()
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}

	fence, err := d.device.CreateFence()
	if err != nil {
		d.device.FreeCommandBuffer(cmdBuf)
		cleanup()
		return fmt.Errorf("wgpu: create fence: %w", err)
	}

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		d.device.DestroyFence(fence)
		d.device.FreeCommandBuffer(cmdBuf)
		cleanup()
		return fmt.Errorf("wgpu: submit: %w", err)
	}

	go func() {
		fenceOK, waitErr := d.device.Wait(fence, 1, completionWait)

		d.device.DestroyFence(fence)
		d.device.FreeCommandBuffer(cmdBuf)
		cleanup()

		var info render.CompletionInfo
		if waitErr != nil {
			info.Err = fmt.Errorf("wgpu: wait for frame: %w", waitErr)
		} else if !fenceOK {
			info.Err = fmt.Errorf("wgpu: frame fence timed out after %v", completionWait)
		}
		done(info)
	}()

	return nil
}

// buildDrawResources creates the vertex, index and uniform buffers plus
// the bind group for one draw call.
func (d *Device) buildDrawResources(draw *render.Draw, target *surface) (*drawResources, error) {
	tex, ok := draw.Atlas.(*atlasTexture)
	if !ok || tex.view == nil {
		return nil, fmt.Errorf("atlas is not a wgpu texture")
	}
	if draw.IndexCount == 0 {
		return &drawResources{}, nil
	}

	vertBuf, err := d.createAndUploadBuffer("textframe_verts", draw.Vertices,
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, fmt.Errorf("create vertex buffer: %w", err)
	}

	idxBuf, err := d.createAndUploadBuffer("textframe_indices", draw.Indices,
		gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst)
	if err != nil {
		d.device.DestroyBuffer(vertBuf)
		return nil, fmt.Errorf("create index buffer: %w", err)
	}

	uniformData := makeTextUniform(draw.Color, target.width, target.height, float32(tex.width))
	uniformBuf, err := d.createAndUploadBuffer("textframe_uniform", uniformData,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		d.device.DestroyBuffer(idxBuf)
		d.device.DestroyBuffer(vertBuf)
		return nil, fmt.Errorf("create uniform buffer: %w", err)
	}

	bindGroup, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "textframe_bind",
		Layout: d.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: uniformSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{
				TextureView: tex.view.NativeHandle(),
			}},
			{Binding: 2, Resource: gputypes.SamplerBinding{
				Sampler: d.sampler.NativeHandle(),
			}},
		},
	})
	if err != nil {
		d.device.DestroyBuffer(uniformBuf)
		d.device.DestroyBuffer(idxBuf)
		d.device.DestroyBuffer(vertBuf)
		return nil, fmt.Errorf("create bind group: %w", err)
	}

	return &drawResources{
		vertBuf:    vertBuf,
		idxBuf:     idxBuf,
		uniformBuf: uniformBuf,
		bindGroup:  bindGroup,
		indexCount: draw.IndexCount,
	}, nil
}

// createAndUploadBuffer creates a GPU buffer and uploads data.
func (d *Device) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	d.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// makeTextUniform creates the 96-byte uniform buffer for one draw call.
// The transform maps device pixel coordinates to clip space:
// x_clip = 2x/w - 1, y_clip = 1 - 2y/h.
func makeTextUniform(color textframe.RGBA, w, h int, atlasSize float32) []byte {
	buf := make([]byte, uniformSize)
	off := 0

	// Column i of the matrix occupies bytes [i*16, i*16+16); the shader
	// multiplies row-vector style, so each column holds one output
	// component's coefficients.
	t := [16]float32{
		2 / float32(w), 0, 0, -1,
		0, -2 / float32(h), 0, 1,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	for _, v := range t {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}

	premul := color.Premultiply()
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(premul.R)))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(premul.G)))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(premul.B)))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(premul.A)))
	off += 4

	// Params: [atlas_size, reserved, reserved, reserved]
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(atlasSize))

	return buf
}

// Ensure Device implements render.Device.
var _ render.Device = (*Device)(nil)
