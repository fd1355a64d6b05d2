package domain

import "fmt"

// PartyRole names a participant of a policy.
type PartyRole string

const (
	RolePolicyHolder PartyRole = "POLICY_HOLDER"
	RoleInsured      PartyRole = "INSURED"
	RoleBeneficiary  PartyRole = "BENEFICIARY"
	RoleVehicleOwner PartyRole = "VEHICLE_OWNER"
)

// PartyKind tags which variant a Party holds.
type PartyKind string

const (
	PartyExplicit PartyKind = "EXPLICIT"
	PartyInherit  PartyKind = "INHERIT"
)

// Party is either explicit person data or a reference to another role's data.
// The zero value inherits from the policy holder.
type Party struct {
	Kind        PartyKind `json:"kind,omitempty"`
	Person      *Person   `json:"person,omitempty"`
	InheritFrom PartyRole `json:"inheritFrom,omitempty"`
}

// ExplicitParty wraps person data.
func ExplicitParty(p Person) Party {
	return Party{Kind: PartyExplicit, Person: &p}
}

// InheritParty points at another role.
func InheritParty(role PartyRole) Party {
	return Party{Kind: PartyInherit, InheritFrom: role}
}

// Resolved normalizes the zero value and malformed variants to a concrete form.
func (p Party) Resolved() Party {
	switch p.Kind {
	case PartyExplicit:
		if p.Person != nil {
			return p
		}
	case PartyInherit:
		if p.InheritFrom != "" {
			return p
		}
	}
	if p.Person != nil {
		return ExplicitParty(*p.Person)
	}
	return InheritParty(RolePolicyHolder)
}

// IsExplicit reports whether the party carries its own person data.
func (p Party) IsExplicit() bool {
	return p.Resolved().Kind == PartyExplicit
}

func (p Party) String() string {
	r := p.Resolved()
	if r.Kind == PartyExplicit {
		return fmt.Sprintf("explicit(%s %s)", r.Person.FirstName, r.Person.LastName)
	}
	return fmt.Sprintf("inherit(%s)", r.InheritFrom)
}
