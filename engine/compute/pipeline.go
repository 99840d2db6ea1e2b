package compute

import (
	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal"
)

// Pipeline is the executable combination of one shader unit and one
// descriptor layout. Stateless once built; this workload dispatches it
// exactly once.
type Pipeline struct {
	Module hal.ShaderModule
	Layout hal.PipelineLayout
	Handle hal.Pipeline
}

// BuildPipeline creates the shader module, a pipeline layout
// referencing exactly one descriptor layout (no push constants) and the
// compute pipeline itself. The module is created here rather than at
// shader load so handle creation order matches the teardown invariant.
// A driver rejection means the binary does not agree with the declared
// bindings; that is fatal, never retried.
func BuildPipeline(dev hal.Device, lc *Lifecycle, unit *ShaderUnit, descriptorLayout hal.DescriptorLayout) (*Pipeline, error) {
	module, err := dev.CreateShaderModule(unit.Words)
	if err != nil {
		return nil, core.PipelineBuildError(err, "driver rejected shader module")
	}
	lc.PushDestroy("shader module", func() { dev.DestroyShaderModule(module) })

	layout, err := dev.CreatePipelineLayout(descriptorLayout)
	if err != nil {
		return nil, core.PipelineBuildError(err, "unable to create pipeline layout")
	}
	lc.PushDestroy("pipeline layout", func() { dev.DestroyPipelineLayout(layout) })

	handle, err := dev.CreateComputePipeline(module, unit.EntryPoint, layout)
	if err != nil {
		return nil, core.PipelineBuildError(err, "driver rejected shader/layout combination")
	}
	lc.PushDestroy("pipeline", func() { dev.DestroyPipeline(handle) })

	core.LogDebug("compute pipeline created")
	return &Pipeline{
		Module: module,
		Layout: layout,
		Handle: handle,
	}, nil
}
