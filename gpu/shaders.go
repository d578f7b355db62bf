package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// Embedded WGSL shader sources.

//go:embed shaders/dab.wgsl
var dabShaderSource string

//go:embed shaders/blend.wgsl
var blendShaderSource string

//go:embed shaders/quad.wgsl
var quadShaderSource string

// compileShaderModule compiles WGSL to SPIR-V through naga and wraps it
// in a HAL shader module.
func compileShaderModule(device hal.Device, label, wgslSource string) (hal.ShaderModule, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("gpu: compile %s: %w", label, err)
	}
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirvCode},
	})
}

// blendKind selects the fixed-function blend state of a pipeline.
type blendKind uint8

const (
	blendReplace blendKind = iota // overwrite destination
	blendMax                      // coverage accumulation
	blendOver                     // premultiplied source-over
	blendDstOut                   // destination-out (eraser)
)

// pipelineKey identifies one cached render pipeline configuration.
type pipelineKey struct {
	shader string // "dab", "blend", "quad"
	format gputypes.TextureFormat
	blend  blendKind
}

// shaderSet owns the compiled modules, bind group layouts, sampler, and
// the pipeline cache shared by every rasterizer and surface of one
// backend. Pipelines are built lazily on first use of a configuration
// and live until Close.
type shaderSet struct {
	device hal.Device

	dabModule   hal.ShaderModule
	blendModule hal.ShaderModule
	quadModule  hal.ShaderModule

	// dabLayout binds only the uniform buffer; texLayout adds the
	// sampled texture and sampler used by blend and quad shaders.
	dabLayout     hal.BindGroupLayout
	texLayout     hal.BindGroupLayout
	dabPipeLayout hal.PipelineLayout
	texPipeLayout hal.PipelineLayout

	nearest hal.Sampler

	pipelines map[pipelineKey]hal.RenderPipeline
}

func newShaderSet(device hal.Device) (*shaderSet, error) {
	s := &shaderSet{
		device:    device,
		pipelines: make(map[pipelineKey]hal.RenderPipeline),
	}

	var err error
	if s.dabModule, err = compileShaderModule(device, "easel_dab", dabShaderSource); err != nil {
		return nil, err
	}
	if s.blendModule, err = compileShaderModule(device, "easel_blend", blendShaderSource); err != nil {
		s.destroy()
		return nil, err
	}
	if s.quadModule, err = compileShaderModule(device, "easel_quad", quadShaderSource); err != nil {
		s.destroy()
		return nil, err
	}

	s.dabLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "easel_dab_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("gpu: create dab layout: %w", err)
	}

	s.texLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "easel_tex_layout",
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
		s.destroy()
		return nil, fmt.Errorf("gpu: create tex layout: %w", err)
	}

	s.dabPipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "easel_dab_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{s.dabLayout},
	})
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("gpu: create dab pipeline layout: %w", err)
	}

	s.texPipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "easel_tex_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{s.texLayout},
	})
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("gpu: create tex pipeline layout: %w", err)
	}

	// Nearest sampling keeps mask and surface reads pixel-exact.
	s.nearest, err = device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "easel_nearest",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("gpu: create sampler: %w", err)
	}

	return s, nil
}

// pipeline returns the cached render pipeline for the configuration,
// building it on first use.
func (s *shaderSet) pipeline(key pipelineKey) (hal.RenderPipeline, error) {
	if p, ok := s.pipelines[key]; ok {
		return p, nil
	}

	var module hal.ShaderModule
	var layout hal.PipelineLayout
	var buffers []gputypes.VertexBufferLayout
	switch key.shader {
	case "dab":
		module = s.dabModule
		layout = s.dabPipeLayout
		buffers = dabVertexLayout()
	case "blend":
		module = s.blendModule
		layout = s.texPipeLayout
		buffers = quadVertexLayout()
	case "quad":
		module = s.quadModule
		layout = s.texPipeLayout
		buffers = quadVertexLayout()
	default:
		return nil, fmt.Errorf("gpu: unknown shader %q", key.shader)
	}

	target := gputypes.ColorTargetState{
		Format:    key.format,
		WriteMask: gputypes.ColorWriteMaskAll,
	}
	switch key.blend {
	case blendReplace:
		// no blend state: source overwrites
	case blendMax:
		target.Blend = &gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOne,
				Operation: gputypes.BlendOperationMax,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOne,
				Operation: gputypes.BlendOperationMax,
			},
		}
	case blendOver:
		premul := gputypes.BlendStatePremultiplied()
		target.Blend = &premul
	case blendDstOut:
		target.Blend = &gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorZero,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorZero,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
		}
	}

	p, err := s.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("easel_%s_%d_%d", key.shader, key.format, key.blend),
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    buffers,
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets:    []gputypes.ColorTargetState{target},
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
		return nil, fmt.Errorf("gpu: create %s pipeline: %w", key.shader, err)
	}
	s.pipelines[key] = p
	return p, nil
}

func (s *shaderSet) destroy() {
	if s.device == nil {
		return
	}
	for _, p := range s.pipelines {
		s.device.DestroyRenderPipeline(p)
	}
	s.pipelines = nil
	if s.nearest != nil {
		s.device.DestroySampler(s.nearest)
		s.nearest = nil
	}
	if s.texPipeLayout != nil {
		s.device.DestroyPipelineLayout(s.texPipeLayout)
		s.texPipeLayout = nil
	}
	if s.dabPipeLayout != nil {
		s.device.DestroyPipelineLayout(s.dabPipeLayout)
		s.dabPipeLayout = nil
	}
	if s.texLayout != nil {
		s.device.DestroyBindGroupLayout(s.texLayout)
		s.texLayout = nil
	}
	if s.dabLayout != nil {
		s.device.DestroyBindGroupLayout(s.dabLayout)
		s.dabLayout = nil
	}
	if s.quadModule != nil {
		s.device.DestroyShaderModule(s.quadModule)
		s.quadModule = nil
	}
	if s.blendModule != nil {
		s.device.DestroyShaderModule(s.blendModule)
		s.blendModule = nil
	}
	if s.dabModule != nil {
		s.device.DestroyShaderModule(s.dabModule)
		s.dabModule = nil
	}
	s.device = nil
}

// dabVertexLayout matches VertexInput in dab.wgsl: position, local
// offset from the dab center, radius, feather.
func dabVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: 24,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
				{Format: gputypes.VertexFormatFloat32, Offset: 16, ShaderLocation: 2},
				{Format: gputypes.VertexFormatFloat32, Offset: 20, ShaderLocation: 3},
			},
		},
	}
}

// quadVertexLayout matches VertexInput in blend.wgsl and quad.wgsl:
// position and texture coordinate.
func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: 16,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
			},
		},
	}
}
