package fragment

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/fragforge/fragstore/types"
)

var ErrFragmentNotRegistered = eris.New("fragment not registered")

// Manager assigns dense FragmentIDs and keeps the schema captured at first
// registration so a conflicting re-registration of the same name is caught.
type Manager struct {
	registeredFragments map[string]types.FragmentMetadata
	schemas             map[string][]byte
	nextFragmentID      types.FragmentID
}

// NewManager creates a new fragment manager.
func NewManager() *Manager {
	return &Manager{
		registeredFragments: make(map[string]types.FragmentMetadata),
		schemas:             make(map[string][]byte),
		nextFragmentID:      1,
	}
}

// RegisterFragment registers fragment metadata with the manager. There can
// only be one fragment with a given name, which is declared by the user by
// implementing the Name() method. A duplicate name is only accepted when its
// schema matches the one stored at first registration.
func (m *Manager) RegisterFragment(fragMetadata types.FragmentMetadata) error {
	name := fragMetadata.Name()
	storedSchema, ok := m.schemas[name]
	if ok {
		existing := m.registeredFragments[name]
		ok2, err := types.IsSchemaValid(fragMetadata.GetSchema(), storedSchema)
		if err != nil {
			return eris.Wrap(err, "error when validating fragment schema against stored schema")
		}
		if !ok2 {
			return eris.Errorf("fragment %q does not match the schema stored at registration", name)
		}
		// Same name, same schema: reuse the already assigned ID.
		return fragMetadata.SetID(existing.ID())
	}

	if err := fragMetadata.SetID(m.nextFragmentID); err != nil {
		return err
	}
	m.registeredFragments[name] = fragMetadata
	m.schemas[name] = fragMetadata.GetSchema()
	m.nextFragmentID++

	return nil
}

// GetFragments returns a list of all registered fragments.
// Note: The order of the fragments in the list is not deterministic.
func (m *Manager) GetFragments() []types.FragmentMetadata {
	registeredFragments := make([]types.FragmentMetadata, 0, len(m.registeredFragments))
	for _, frag := range m.registeredFragments {
		registeredFragments = append(registeredFragments, frag)
	}
	return registeredFragments
}

// GetFragmentByName returns the fragment metadata for the given name.
func (m *Manager) GetFragmentByName(name string) (types.FragmentMetadata, error) {
	frag, ok := m.registeredFragments[name]
	if !ok {
		return nil, eris.Wrap(ErrFragmentNotRegistered, fmt.Sprintf("fragment %q is not registered", name))
	}
	return frag, nil
}
