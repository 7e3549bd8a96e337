package common

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"

	"GPU_render_graph/hal"
)

func (dc *Device) CreatePipelineLayout(sets []hal.DescriptorSetLayout, pushConstSize uint32, pushConstStage hal.ShaderStage) (hal.PipelineLayout, error) {
	setLayouts := make([]vk.DescriptorSetLayout, len(sets))
	for i, s := range sets {
		setLayouts[i] = dc.setLayouts.mustGet(uint64(s), "descriptor set layout")
	}
	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	if pushConstSize > 0 {
		pipelineLayoutInfo.PushConstantRangeCount = 1
		pipelineLayoutInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: toVkStages(pushConstStage),
			Offset:     0,
			Size:       pushConstSize,
		}}
	}
	l, err := VkCreatePipelineLayout(dc.D, &pipelineLayoutInfo, nil)
	if err != nil {
		return 0, err
	}
	return hal.PipelineLayout(dc.pipeLayouts.add(l)), nil
}

func (dc *Device) DestroyPipelineLayout(h hal.PipelineLayout) {
	if l, ok := dc.pipeLayouts.remove(uint64(h)); ok {
		vk.DestroyPipelineLayout(dc.D, l, nil)
	}
}

// CreateGraphicsPipeline builds a pipeline with dynamic viewport and scissor against a render pass compatible
// with the described attachment formats.
func (dc *Device) CreateGraphicsPipeline(desc hal.PipelineDesc) (hal.Pipeline, error) {
	// Shader modules can be deleted right after pipeline creation
	vertMod, err := dc.createShaderModule(desc.Vertex)
	if err != nil {
		return 0, errors.Wrap(err, "vertex shader")
	}
	defer vk.DestroyShaderModule(dc.D, vertMod, nil)

	shaderStages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertMod,
			PName:  "main\x00", // entrypoint -> function name in the shader
		},
	}
	// depth only pipelines run without a fragment stage
	if len(desc.Fragment) > 0 {
		fragMod, err := dc.createShaderModule(desc.Fragment)
		if err != nil {
			return 0, errors.Wrap(err, "fragment shader")
		}
		defer vk.DestroyShaderModule(dc.D, fragMod, nil)
		shaderStages = append(shaderStages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragMod,
			PName:  "main\x00",
		})
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if len(desc.Attributes) > 0 {
		attributeDesc := make([]vk.VertexInputAttributeDescription, len(desc.Attributes))
		for i, a := range desc.Attributes {
			attributeDesc[i] = vk.VertexInputAttributeDescription{
				Location: a.Location,
				Binding:  0,
				Format:   toVkFormat(a.Format),
				Offset:   a.Offset,
			}
		}
		vertexInputInfo.VertexBindingDescriptionCount = 1
		vertexInputInfo.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    desc.Stride,
			InputRate: vk.VertexInputRateVertex,
		}}
		vertexInputInfo.VertexAttributeDescriptionCount = uint32(len(attributeDesc))
		vertexInputInfo.PVertexAttributeDescriptions = attributeDesc
	}

	inputAssemblyInfo := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               toVkTopology(desc.Topology),
		PrimitiveRestartEnable: vk.False,
	}
	viewportStateInfo := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizerInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             toVkPolygonMode(desc.Polygon),
		CullMode:                toVkCullMode(desc.Cull),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}
	multisamplingInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1.0,
	}

	var writeMask vk.ColorComponentFlagBits
	if desc.ColorWrite {
		writeMask = vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit
	}
	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(desc.ColorFormats))
	for i := range blendAttachments {
		blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vk.False,
			SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
			DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: vk.BlendFactorOne,
			DstAlphaBlendFactor: vk.BlendFactorZero,
			AlphaBlendOp:        vk.BlendOpAdd,
			ColorWriteMask:      vk.ColorComponentFlags(writeMask),
		}
		if desc.Blend {
			blendAttachments[i].BlendEnable = vk.True
		}
	}
	colorBlendingInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(desc.DepthTest),
		DepthWriteEnable:      vkBool(desc.DepthWrite),
		DepthCompareOp:        vk.CompareOpLessOrEqual,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MinDepthBounds:        0,
		MaxDepthBounds:        1,
	}

	rp, err := dc.passes.renderPass(pipelineKey(desc.ColorFormats, desc.DepthFormat))
	if err != nil {
		return 0, errors.Wrap(err, "failed to create compatible render pass")
	}

	pipelineInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(shaderStages)),
		PStages:             shaderStages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssemblyInfo,
		PViewportState:      &viewportStateInfo,
		PRasterizationState: &rasterizerInfo,
		PMultisampleState:   &multisamplingInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendingInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              dc.pipeLayouts.mustGet(uint64(desc.Layout), "pipeline layout"),
		RenderPass:          rp,
		Subpass:             0,
		BasePipelineIndex:   -1,
	}
	pipelines, err := VkCreateGraphicsPipelines(dc.D, nil, 1, []vk.GraphicsPipelineCreateInfo{pipelineInfo}, nil)
	if err != nil {
		return 0, err
	}
	return hal.Pipeline(dc.pipelines.add(pipelines[0])), nil
}

func (dc *Device) DestroyPipeline(h hal.Pipeline) {
	if p, ok := dc.pipelines.remove(uint64(h)); ok {
		vk.DestroyPipeline(dc.D, p, nil)
	}
}

func (dc *Device) createShaderModule(code []byte) (vk.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Errorf("SPIR-V code of %d bytes is not a whole number of words", len(code))
	}
	createInfo := &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    AsUint32Arr(code),
	}
	return VkCreateShaderModule(dc.D, createInfo, nil)
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
