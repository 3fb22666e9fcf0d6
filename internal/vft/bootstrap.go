package vft

import (
	"github.com/meshfs/meshfs/internal/clock"
	"github.com/meshfs/meshfs/internal/provider"
)

// LocalFilesProviderID is the well-known id the native-filesystem provider
// is always registered under, regardless of what else is configured.
const LocalFilesProviderID provider.ID = "Local files"

// System bundles the wired-together core: the tree, hydrator, bridge, and
// provider registry a mounted filesystem operates over.
type System struct {
	Tree      *Tree
	Hydrator  *Hydrator
	Bridge    *Bridge
	Providers *provider.Registry
}

// Bootstrap seeds a fresh Tree with one root per provider in the registry,
// in registration order. It does not add the native-filesystem provider
// itself; cmd's buildRegistry registers it under LocalFilesProviderID
// before calling Bootstrap.
func Bootstrap(providers *provider.Registry, clk clock.Clock) *System {
	ids := providers.IDs()
	tree := NewTree(ids, clk)

	return &System{
		Tree:      tree,
		Hydrator:  NewHydrator(tree, providers),
		Bridge:    NewBridge(providers),
		Providers: providers,
	}
}
