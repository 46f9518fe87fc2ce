// Package hubctx defines HubContext, the one explicit handle every cmd/hub
// verb threads through instead of reaching for package-level state (spec §9:
// "inject an explicit HubContext handle"). Unlike pkg/config's own
// process-wide singleton, a HubContext is constructed once per repo root an
// invocation operates on and passed down by value/pointer, never read back
// out of a global.
package hubctx

import (
	"autorunner/internal/destination"
	"autorunner/internal/eventbus"
	"autorunner/internal/statestore"
	"autorunner/internal/supervisor"
	"autorunner/pkg/config"
)

// HubContext bundles the handles a flow run, delivery dispatch, or agent
// session needs: the repo's StateStore, the hub's shared EventBus, the
// AgentSupervisor tracking live sessions, the DestinationExecutor driving
// agent processes, and the loaded Config.
type HubContext struct {
	Store       *statestore.Store
	Bus         *eventbus.Bus
	Supervisor  *supervisor.Supervisor
	Destination destination.Launcher
	Config      *config.HubConfig
}

// New assembles a HubContext from its already-constructed parts. Callers
// build the parts (opening a Store, resolving a Launcher, loading Config)
// and hand them here rather than HubContext reaching out to build its own —
// keeping every dependency visible at the call site that owns it.
func New(store *statestore.Store, bus *eventbus.Bus, sup *supervisor.Supervisor, launcher destination.Launcher, cfg *config.HubConfig) *HubContext {
	return &HubContext{
		Store:       store,
		Bus:         bus,
		Supervisor:  sup,
		Destination: launcher,
		Config:      cfg,
	}
}
