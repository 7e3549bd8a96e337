package renderer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"GPU_render_graph/hal"
)

type ShaderMember struct {
	Name   string `json:"name"`
	Offset uint32 `json:"offset"`
	Size   uint32 `json:"size"`
}

// ShaderScope is one descriptor set of a shader. Every scope owns a set number of its own and holds a single
// binding: a uniform block or an array of combined image samplers.
type ShaderScope struct {
	Name    string         `json:"name"`
	Set     uint32         `json:"set"`
	Binding uint32         `json:"binding"`
	Type    string         `json:"type"`
	Stage   string         `json:"stage"`
	Size    uint32         `json:"size,omitempty"`
	Count   uint32         `json:"count,omitempty"`
	Members []ShaderMember `json:"members,omitempty"`
}

type ShaderAttribute struct {
	Location uint32 `json:"location"`
	Format   string `json:"format"`
	Offset   uint32 `json:"offset"`
}

// ShaderDescription is the JSON file next to a shader's SPIR-V modules. Module paths are relative to it.
type ShaderDescription struct {
	Name              string            `json:"name"`
	Vertex            string            `json:"vertex"`
	Fragment          string            `json:"fragment"`
	Stride            uint32            `json:"stride"`
	Attributes        []ShaderAttribute `json:"attributes"`
	Topology          string            `json:"topology"`
	PolygonMode       string            `json:"polygon_mode"`
	CullMode          string            `json:"cull_mode"`
	Blend             bool              `json:"blend"`
	ColorWrite        *bool             `json:"color_write,omitempty"`
	DepthTest         bool              `json:"depth_test"`
	DepthWrite        bool              `json:"depth_write"`
	PushConstantSize  uint32            `json:"push_constant_size"`
	PushConstantStage string            `json:"push_constant_stage"`
	Scopes            []ShaderScope     `json:"scopes"`
}

var topologies = map[string]hal.Topology{
	"":               hal.TopologyTriangleList,
	"triangle_list":  hal.TopologyTriangleList,
	"triangle_strip": hal.TopologyTriangleStrip,
	"line_list":      hal.TopologyLineList,
	"point_list":     hal.TopologyPointList,
}

var polygonModes = map[string]hal.PolygonMode{
	"":      hal.PolygonFill,
	"fill":  hal.PolygonFill,
	"line":  hal.PolygonLine,
	"point": hal.PolygonPoint,
}

var cullModes = map[string]hal.CullMode{
	"":      hal.CullNone,
	"none":  hal.CullNone,
	"front": hal.CullFront,
	"back":  hal.CullBack,
}

// ParseShaderDescription decodes and validates a shader description.
func ParseShaderDescription(data []byte) (*ShaderDescription, error) {
	var d ShaderDescription
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(err, "failed to decode shader description")
	}
	if err := d.validate(); err != nil {
		return nil, errors.Wrapf(err, "shader %q", d.Name)
	}
	return &d, nil
}

func (d *ShaderDescription) validate() error {
	if d.Vertex == "" {
		return fmt.Errorf("no vertex module")
	}
	if _, ok := topologies[d.Topology]; !ok {
		return fmt.Errorf("unknown topology %q", d.Topology)
	}
	if _, ok := polygonModes[d.PolygonMode]; !ok {
		return fmt.Errorf("unknown polygon mode %q", d.PolygonMode)
	}
	if _, ok := cullModes[d.CullMode]; !ok {
		return fmt.Errorf("unknown cull mode %q", d.CullMode)
	}
	for _, a := range d.Attributes {
		if _, ok := hal.ParseFormat(a.Format); !ok {
			return fmt.Errorf("attribute %d: unknown format %q", a.Location, a.Format)
		}
	}
	if d.PushConstantSize > 0 {
		if _, ok := hal.ParseShaderStage(d.PushConstantStage); !ok {
			return fmt.Errorf("unknown push constant stage %q", d.PushConstantStage)
		}
	}
	sets := make([]bool, len(d.Scopes))
	names := map[string]bool{}
	for _, s := range d.Scopes {
		if names[s.Name] {
			return fmt.Errorf("scope %q declared twice", s.Name)
		}
		names[s.Name] = true
		if int(s.Set) >= len(sets) || sets[s.Set] {
			return fmt.Errorf("scope %q: sets must be unique and numbered from 0, got %d", s.Name, s.Set)
		}
		sets[s.Set] = true
		if _, ok := hal.ParseShaderStage(s.Stage); !ok {
			return fmt.Errorf("scope %q: unknown stage %q", s.Name, s.Stage)
		}
		t, ok := hal.ParseDescriptorType(s.Type)
		switch {
		case !ok:
			return fmt.Errorf("scope %q: unknown type %q", s.Name, s.Type)
		case t == hal.DescriptorUniformBuffer:
			if s.Size == 0 {
				return fmt.Errorf("scope %q: uniform block without size", s.Name)
			}
			for _, m := range s.Members {
				if m.Offset+m.Size > s.Size {
					return fmt.Errorf("scope %q: member %q overruns the block", s.Name, m.Name)
				}
			}
		case t == hal.DescriptorCombinedImageSampler:
		default:
			return fmt.Errorf("scope %q: unsupported type %s", s.Name, s.Type)
		}
	}
	return nil
}

// ShaderTarget is the attachment formats a pipeline renders into.
type ShaderTarget struct {
	ColorFormats []hal.Format
	DepthFormat  hal.Format
}

// GraphTarget is the target of a pass rendering into colors graph color attachments, plus a depth attachment
// when depth is set.
func GraphTarget(ctx *Context, colors int, depth bool) ShaderTarget {
	t := ShaderTarget{}
	for i := 0; i < colors; i++ {
		t.ColorFormats = append(t.ColorFormats, COLOR_ATTACHMENT_FORMAT)
	}
	if depth {
		t.DepthFormat = ctx.DepthFormat()
	}
	return t
}

type uniformScope struct {
	ShaderScope
	stages  hal.ShaderStage
	buffers []*Buffer
	sets    []hal.DescriptorSet
}

type textureScope struct {
	ShaderScope
	stages hal.ShaderStage
	layout hal.DescriptorSetLayout
	set    hal.DescriptorSet
}

// Material is a named group of textures bound together as one sampler array.
type Material struct {
	Name     string
	Textures []*Texture
}

// Shader is a graphics pipeline together with the uniform buffers and descriptor sets feeding it. Uniform
// blocks have one buffer and one set per frame slot, so writing them never races the GPU.
type Shader struct {
	ctx      *Context
	Desc     *ShaderDescription
	Layout   hal.PipelineLayout
	Pipeline hal.Pipeline
	sampler  *Sampler
	uniforms map[string]*uniformScope
	textures map[string]*textureScope
	// indexed by set number
	setLayouts []hal.DescriptorSetLayout
}

// LoadShader reads a shader description and its SPIR-V modules and builds the shader.
func LoadShader(ctx *Context, path string, target ShaderTarget) (*Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read shader description")
	}
	desc, err := ParseShaderDescription(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	dir := filepath.Dir(path)
	vert, err := os.ReadFile(filepath.Join(dir, desc.Vertex))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read vertex module")
	}
	var frag []byte
	if desc.Fragment != "" {
		if frag, err = os.ReadFile(filepath.Join(dir, desc.Fragment)); err != nil {
			return nil, errors.Wrap(err, "failed to read fragment module")
		}
	}
	Logger().Info("loaded shader", "name", desc.Name, "path", path)
	return NewShader(ctx, desc, vert, frag, target)
}

// NewShader creates the descriptor layouts, uniform buffers and pipeline for a parsed description.
func NewShader(ctx *Context, desc *ShaderDescription, vert, frag []byte, target ShaderTarget) (*Shader, error) {
	s := &Shader{
		ctx:        ctx,
		Desc:       desc,
		uniforms:   map[string]*uniformScope{},
		textures:   map[string]*textureScope{},
		setLayouts: make([]hal.DescriptorSetLayout, len(desc.Scopes)),
	}
	if err := s.createScopes(); err != nil {
		s.Destroy()
		return nil, err
	}
	if err := s.createPipeline(vert, frag, target); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

func (s *Shader) createScopes() error {
	dev := s.ctx.Device()
	slots := s.ctx.Frames().Count()
	for _, sc := range s.Desc.Scopes {
		stages, _ := hal.ParseShaderStage(sc.Stage)
		t, _ := hal.ParseDescriptorType(sc.Type)
		if t == hal.DescriptorCombinedImageSampler {
			count := max(sc.Count, 1)
			layout, err := s.ctx.LayoutCache().Create([]hal.DescriptorBinding{
				{Binding: sc.Binding, Type: t, Count: count, Stages: stages},
			})
			if err != nil {
				return err
			}
			sc.Count = count
			s.textures[sc.Name] = &textureScope{ShaderScope: sc, stages: stages, layout: layout}
			s.setLayouts[sc.Set] = layout
			continue
		}

		u := &uniformScope{ShaderScope: sc, stages: stages}
		for i := 0; i < slots; i++ {
			buf, err := NewBuffer(dev, uint64(sc.Size), hal.BufferUsageUniform, hal.MemoryCPUToGPU)
			if err != nil {
				return err
			}
			u.buffers = append(u.buffers, buf)
			set, layout, err := BuildBufferSet(s.ctx.LayoutCache(), s.ctx.Allocator(), buf.Handle, buf.Size,
				sc.Binding, t, stages)
			if err != nil {
				return errors.Wrapf(err, "uniform scope %s", sc.Name)
			}
			u.sets = append(u.sets, set)
			s.setLayouts[sc.Set] = layout
		}
		s.uniforms[sc.Name] = u
	}
	return nil
}

func (s *Shader) createPipeline(vert, frag []byte, target ShaderTarget) error {
	dev := s.ctx.Device()
	pushStage, _ := hal.ParseShaderStage(s.Desc.PushConstantStage)
	layout, err := dev.CreatePipelineLayout(s.setLayouts, s.Desc.PushConstantSize, pushStage)
	if err != nil {
		return errors.Wrap(err, "failed to create pipeline layout")
	}
	s.Layout = layout

	attrs := make([]hal.VertexAttribute, 0, len(s.Desc.Attributes))
	for _, a := range s.Desc.Attributes {
		f, _ := hal.ParseFormat(a.Format)
		attrs = append(attrs, hal.VertexAttribute{Location: a.Location, Format: f, Offset: a.Offset})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Location < attrs[j].Location })

	colorWrite := true
	if s.Desc.ColorWrite != nil {
		colorWrite = *s.Desc.ColorWrite
	}
	s.Pipeline, err = dev.CreateGraphicsPipeline(hal.PipelineDesc{
		Vertex:         vert,
		Fragment:       frag,
		Layout:         layout,
		Stride:         s.Desc.Stride,
		Attributes:     attrs,
		Topology:       topologies[s.Desc.Topology],
		Polygon:        polygonModes[s.Desc.PolygonMode],
		Cull:           cullModes[s.Desc.CullMode],
		Blend:          s.Desc.Blend,
		ColorWrite:     colorWrite,
		DepthTest:      s.Desc.DepthTest,
		DepthWrite:     s.Desc.DepthWrite,
		ColorFormats:   target.ColorFormats,
		DepthFormat:    target.DepthFormat,
		PushConstSize:  s.Desc.PushConstantSize,
		PushConstStage: pushStage,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create pipeline for shader %s", s.Desc.Name)
	}
	return nil
}

// Bind binds the pipeline and every descriptor set of the shader for the current frame slot.
func (s *Shader) Bind(rec *CommandRecorder) {
	slot := s.ctx.Frames().FrameNumber()
	rec.BindPipeline(s.Pipeline)
	for _, u := range s.uniforms {
		rec.BindDescriptorSet(s.Layout, u.Set, u.sets[slot])
	}
	for _, t := range s.textures {
		if t.set == 0 {
			Logger().Debug("texture scope has nothing bound", "shader", s.Desc.Name, "scope", t.Name)
			continue
		}
		rec.BindDescriptorSet(s.Layout, t.Set, t.set)
	}
}

func (s *Shader) PushConstants(rec *CommandRecorder, data []byte) {
	stage, _ := hal.ParseShaderStage(s.Desc.PushConstantStage)
	rec.PushConstants(s.Layout, stage, data)
}

// SetUniform writes data into member of scope in the current frame slot's buffer.
func (s *Shader) SetUniform(scope, member string, data []byte) {
	s.SetUniformAt(scope, member, data, 0)
}

// SetUniformAt writes data at offset bytes past the start of member. It addresses elements of array members.
// Unknown names and writes past the end of the block are logged and ignored.
func (s *Shader) SetUniformAt(scope, member string, data []byte, offset uint32) {
	u, ok := s.uniforms[scope]
	if !ok {
		Logger().Warn("unknown uniform scope", "shader", s.Desc.Name, "scope", scope)
		return
	}
	var m *ShaderMember
	for i := range u.Members {
		if u.Members[i].Name == member {
			m = &u.Members[i]
			break
		}
	}
	if m == nil {
		Logger().Warn("unknown uniform member", "shader", s.Desc.Name, "scope", scope, "member", member)
		return
	}
	at := uint64(m.Offset) + uint64(offset)
	if (offset == 0 && uint32(len(data)) > m.Size) || at+uint64(len(data)) > uint64(u.Size) {
		Logger().Warn("uniform write out of bounds", "shader", s.Desc.Name, "scope", scope, "member", member,
			"bytes", len(data), "offset", offset)
		return
	}
	slot := s.ctx.Frames().FrameNumber()
	if err := u.buffers[slot].Write(at, data); err != nil {
		Logger().Error("uniform write failed", "shader", s.Desc.Name, "scope", scope, "err", err)
	}
}

// SetTexture binds a single texture to a sampler scope.
func (s *Shader) SetTexture(name string, tex *Texture) {
	s.SetMaterial(name, &Material{Name: name, Textures: []*Texture{tex}})
}

// SetMaterial binds the textures of mat to a sampler array scope. Missing array elements repeat the first
// texture. Extra textures are dropped.
func (s *Shader) SetMaterial(name string, mat *Material) {
	t, ok := s.textures[name]
	if !ok {
		Logger().Warn("unknown texture scope", "shader", s.Desc.Name, "scope", name)
		return
	}
	if mat == nil || len(mat.Textures) == 0 {
		Logger().Warn("material without textures", "shader", s.Desc.Name, "scope", name)
		return
	}
	if uint32(len(mat.Textures)) > t.Count {
		Logger().Warn("material has more textures than the scope holds", "scope", name,
			"textures", len(mat.Textures), "count", t.Count)
	}
	views := make([]hal.ImageView, t.Count)
	for i := range views {
		if i < len(mat.Textures) {
			views[i] = mat.Textures[i].View
		} else {
			views[i] = mat.Textures[0].View
		}
	}
	sampler, err := s.defaultSampler()
	if err != nil {
		Logger().Error("no sampler for texture scope", "scope", name, "err", err)
		return
	}
	set, _, err := BuildTextureArraySet(s.ctx.LayoutCache(), s.ctx.Allocator(), views, sampler.Handle,
		t.Binding, t.stages)
	if err != nil {
		Logger().Error("texture set allocation failed", "shader", s.Desc.Name, "scope", name, "err", err)
		return
	}
	t.set = set
}

func (s *Shader) defaultSampler() (*Sampler, error) {
	if s.sampler != nil {
		return s.sampler, nil
	}
	sampler, err := NewSampler(s.ctx.Device(), DefaultSamplerDesc())
	if err != nil {
		return nil, err
	}
	s.sampler = sampler
	return sampler, nil
}

// UniformBuffer exposes the buffer of scope for a frame slot.
func (s *Shader) UniformBuffer(scope string, slot uint32) (*Buffer, bool) {
	u, ok := s.uniforms[scope]
	if !ok || int(slot) >= len(u.buffers) {
		return nil, false
	}
	return u.buffers[slot], true
}

// Destroy releases the pipeline and buffers. Descriptor sets return with the allocator's pools and layouts
// stay in the cache.
func (s *Shader) Destroy() {
	dev := s.ctx.Device()
	if s.Pipeline != 0 {
		dev.DestroyPipeline(s.Pipeline)
		s.Pipeline = 0
	}
	if s.Layout != 0 {
		dev.DestroyPipelineLayout(s.Layout)
		s.Layout = 0
	}
	for _, u := range s.uniforms {
		for _, b := range u.buffers {
			b.Destroy()
		}
	}
	if s.sampler != nil {
		s.sampler.Destroy()
		s.sampler = nil
	}
}
