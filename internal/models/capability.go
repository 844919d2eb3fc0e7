package models

import "sort"

// Capability is a named permission grant checked per operation.
type Capability string

const (
	CapViewOwn        Capability = "view_own"
	CapViewAll        Capability = "view_all"
	CapCreate         Capability = "create"
	CapEditOwn        Capability = "edit_own"
	CapEditAll        Capability = "edit_all"
	CapDelete         Capability = "delete"
	CapDeleteOwn      Capability = "delete_own"
	CapExport         Capability = "export"
	CapUseAI          Capability = "use_ai"
	CapManageSchools  Capability = "manage_schools"
	CapManageSettings Capability = "manage_settings"
	CapApprove        Capability = "approve"
)

// AllCapabilities lists every capability in a stable order.
var AllCapabilities = []Capability{
	CapViewOwn, CapViewAll, CapCreate, CapEditOwn, CapEditAll, CapDelete,
	CapDeleteOwn, CapExport, CapUseAI, CapManageSchools, CapManageSettings, CapApprove,
}

// CapabilitySet is an immutable set of grants.
type CapabilitySet map[Capability]struct{}

func newCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

var roleCapabilities = map[UserRole]CapabilitySet{
	RoleSuperAdmin: newCapabilitySet(AllCapabilities...),
	RoleAdmin:      newCapabilitySet(AllCapabilities...),
	RoleRegionalDirector: newCapabilitySet(
		CapManageSchools, CapViewAll, CapCreate, CapEditOwn, CapDeleteOwn, CapExport, CapUseAI,
	),
	RoleQAOfficer: newCapabilitySet(
		CapViewAll, CapCreate, CapEditOwn, CapDeleteOwn, CapExport, CapUseAI,
	),
	RoleProgramManager: newCapabilitySet(CapViewOwn, CapExport),
}

// CapabilitiesFor returns the grants for a role; unknown roles get none.
func CapabilitiesFor(role UserRole) CapabilitySet {
	if set, ok := roleCapabilities[role]; ok {
		return set
	}
	return CapabilitySet{}
}

// Has reports whether the set contains the capability.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Map renders every known capability as a boolean map, the shape clients consume.
func (s CapabilitySet) Map() map[Capability]bool {
	out := make(map[Capability]bool, len(AllCapabilities))
	for _, c := range AllCapabilities {
		out[c] = s.Has(c)
	}
	return out
}

// List returns the granted capabilities sorted by name.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
