package resources

import "eam/pkg/models"

// Capability is what a resource kind allows.
type Capability struct {
	Deletable          bool   `mapstructure:"deletable"`
	InventoryImpacting bool   `mapstructure:"inventory_impacting"`
	IDPrefix           string `mapstructure:"id_prefix"`
}

type Capabilities map[models.ResourceKind]Capability

// DefaultCapabilities lets technicians remove labor rows only. Material and
// tool rows move stock and need a separate reversal.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		models.KindLabor:    {Deletable: true, IDPrefix: "labor-"},
		models.KindMaterial: {InventoryImpacting: true, IDPrefix: "material-"},
		models.KindTool:     {InventoryImpacting: true, IDPrefix: "tool-"},
	}
}

func (c Capabilities) For(kind models.ResourceKind) (Capability, bool) {
	capability, ok := c[kind]
	return capability, ok
}

// WithDeletable overrides the deletable flag for the given kinds.
func (c Capabilities) WithDeletable(kinds ...models.ResourceKind) Capabilities {
	out := make(Capabilities, len(c))
	for kind, capability := range c {
		capability.Deletable = false
		out[kind] = capability
	}
	for _, kind := range kinds {
		if capability, ok := out[kind]; ok {
			capability.Deletable = true
			out[kind] = capability
		}
	}
	return out
}
