package providers

import (
	"github.com/samber/do/v2"

	"github.com/catalogmerge/dedupengine/internal/config"
	"github.com/catalogmerge/dedupengine/internal/dedup"
	"github.com/catalogmerge/dedupengine/internal/formatmapper"
	"github.com/catalogmerge/dedupengine/internal/logger"
	"github.com/catalogmerge/dedupengine/internal/recordfactory"
)

// EngineHandle wraps the dedup engine's worker pool with shutdown
// capability.
type EngineHandle struct {
	*dedup.Engine
}

// Shutdown implements do.Shutdownable.
func (h *EngineHandle) Shutdown() error {
	h.Engine.Stop()
	return nil
}

// ProvideEngine provides the dedup engine and starts its worker pool.
func ProvideEngine(i do.Injector) (*EngineHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	factory := do.MustInvoke[*recordfactory.Factory](i)
	mapper := do.MustInvoke[*formatmapper.Mapper](i)

	e := dedup.NewEngine(storeHandle.Store, factory, mapper, dedup.Config{
		Workers:            cfg.Engine.Workers,
		QueueSize:          cfg.Engine.QueueSize,
		ProbeGuardCapacity: cfg.Engine.ProbeGuardCapacity,
	}, log.Logger)

	e.Start()

	log.Info("dedup engine started", "workers", cfg.Engine.Workers)

	return &EngineHandle{Engine: e}, nil
}
