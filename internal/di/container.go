// Package di provides dependency injection configuration for the dedup engine.
package di

import (
	"github.com/samber/do/v2"

	"github.com/catalogmerge/dedupengine/internal/config"
	"github.com/catalogmerge/dedupengine/internal/di/providers"
	"github.com/catalogmerge/dedupengine/internal/formatmapper"
	"github.com/catalogmerge/dedupengine/internal/logger"
	"github.com/catalogmerge/dedupengine/internal/recordfactory"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)

	// Dedup collaborators
	do.Provide(injector, providers.ProvideRecordFactory)
	do.Provide(injector, providers.ProvideFormatMapper)

	// Engine
	do.Provide(injector, providers.ProvideEngine)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization.
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*recordfactory.Factory](injector)
	_ = do.MustInvoke[*formatmapper.Mapper](injector)

	// Engine, workers started as part of provision.
	_ = do.MustInvoke[*providers.EngineHandle](injector)

	return nil
}
