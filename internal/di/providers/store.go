package providers

import (
	"github.com/samber/do/v2"

	"github.com/catalogmerge/dedupengine/internal/config"
	"github.com/catalogmerge/dedupengine/internal/logger"
	"github.com/catalogmerge/dedupengine/internal/store"
)

// StoreHandle wraps the document store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the Badger-backed document store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := store.New(cfg.Store.Path, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("document store opened", "path", cfg.Store.Path)

	return &StoreHandle{Store: db}, nil
}
