package engine

import (
	"fmt"
	"path/filepath"

	"github.com/spaghettifunk/magma/engine/assets"
	"github.com/spaghettifunk/magma/engine/compute"
	"github.com/spaghettifunk/magma/engine/config"
	"github.com/spaghettifunk/magma/engine/core"
	"github.com/spaghettifunk/magma/engine/hal"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	cfg          *config.Config
	driver       hal.Driver
	assetManager *assets.AssetManager
	dispatcher   *compute.Dispatcher
	isRunning    bool

	shaderChanged chan string
	quit          chan struct{}
}

func New(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	driver := hal.Lookup(cfg.Device.Driver)
	if driver == nil {
		return nil, core.ConfigurationError("unknown driver '%s' (registered: %v)", cfg.Device.Driver, hal.Drivers())
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage:  EngineStageBooting,
		cfg:           cfg,
		driver:        driver,
		assetManager:  am,
		dispatcher:    compute.NewDispatcher(driver, cfg, cfg.Execution.Validation),
		isRunning:     false,
		shaderChanged: make(chan string, 8),
		quit:          make(chan struct{}, 1),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	// initialize events
	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	core.EventRegister(core.EVENT_CODE_SHADER_CHANGED, e.onShaderChanged)

	if err := e.assetManager.Initialize(filepath.Dir(e.cfg.Shader.Path)); err != nil {
		return err
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// Run performs a single dispatch and returns its result.
func (e *Engine) Run() (*compute.RunResult, error) {
	e.currentStage = EngineStageRunning

	result, err := e.dispatch()
	if err != nil {
		return nil, err
	}

	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_DISPATCH_COMPLETED,
		Data: result,
	})
	return result, nil
}

// Watch dispatches once, then re-dispatches every time the shader
// binary changes on disk, until a quit event arrives. A failed
// re-dispatch is logged, not fatal; the next change gets a fresh try.
func (e *Engine) Watch() error {
	e.currentStage = EngineStageRunning
	e.isRunning = true

	if _, err := e.Run(); err != nil {
		core.LogError("initial dispatch failed: %s", err.Error())
	}

	core.LogInfo("watching '%s' for changes", e.cfg.Shader.Path)
	for e.isRunning {
		select {
		case path := <-e.shaderChanged:
			core.LogInfo("shader '%s' changed, re-dispatching", path)
			if _, err := e.Run(); err != nil {
				core.LogError("dispatch failed: %s", err.Error())
			}
		case <-e.quit:
			e.isRunning = false
		}
	}
	return nil
}

func (e *Engine) dispatch() (*compute.RunResult, error) {
	resource, err := e.assetManager.LoadShaderBinary(e.cfg.Shader.Path)
	if err != nil {
		return nil, err
	}
	return e.dispatcher.Run(resource.Data)
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	select {
	case e.quit <- struct{}{}:
	default:
	}

	e.assetManager.Shutdown()
	if err := core.EventSystemShutdown(); err != nil {
		return err
	}
	return nil
}

func (e *Engine) onEvent(context core.EventContext) {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		select {
		case e.quit <- struct{}{}:
		default:
		}
	}
}

func (e *Engine) onShaderChanged(context core.EventContext) {
	path, ok := context.Data.(string)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	// Only the configured shader triggers a re-dispatch.
	if filepath.Clean(path) != filepath.Clean(e.cfg.Shader.Path) {
		return
	}
	select {
	case e.shaderChanged <- path:
	default:
	}
}
