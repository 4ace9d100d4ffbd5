package service

import (
	"regexp"

	"github.com/npclabs/merchantd/internal/domain"
	"github.com/npclabs/merchantd/internal/engine"
	"github.com/npclabs/merchantd/internal/store"
)

var identityRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// FactoryService produces new ledger instances by cloning a single
// template and drives each clone through its one-time initialization
// handshake. It also owns the agent registry: only identities the
// registrar has recognized may create instances.
type FactoryService struct {
	registrarID string
	template    *engine.Ledger
	instances   *store.InstanceStore
	agents      *store.AgentStore
	notifier    *NotifierService
}

// NewFactoryService creates a FactoryService around the given template.
func NewFactoryService(
	registrarID string,
	template *engine.Ledger,
	instances *store.InstanceStore,
	agents *store.AgentStore,
	notifier *NotifierService,
) *FactoryService {
	return &FactoryService{
		registrarID: registrarID,
		template:    template,
		instances:   instances,
		agents:      agents,
		notifier:    notifier,
	}
}

// TemplateID returns the clone-source template's instance identifier.
func (s *FactoryService) TemplateID() string {
	return s.template.ID()
}

// RegisterAgent records an identity as a recognized agent. Only the
// registrar may register agents.
func (s *FactoryService) RegisterAgent(callerID, agentID string) error {
	if callerID != s.registrarID {
		return domain.ErrNotAuthorized
	}
	if !identityRegex.MatchString(agentID) {
		return &domain.ValidationError{
			Message: "agent_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	s.agents.Register(agentID)
	return nil
}

// Create clones the template into a new, uninitialized instance and
// registers it. The caller must be a recognized agent and the template
// reference must name the factory's valid clone source.
func (s *FactoryService) Create(agentID, templateRef string) (*store.InstanceEntry, error) {
	if !s.agents.IsRegistered(agentID) {
		return nil, domain.ErrNotAuthorized
	}
	if templateRef == "" || templateRef != s.template.ID() || !s.template.IsTemplate() {
		return nil, domain.ErrInvalidTemplate
	}

	clone := s.template.Clone()
	return s.instances.Add(clone, agentID), nil
}

// InitializeResult describes a completed initialization handshake.
type InitializeResult struct {
	InstanceID string
	MerchantID uint64
	Owner      string
	Name       string
}

// Initialize performs the one-time initialization of a created
// instance: it binds the owner, mints the first merchant record, and
// emits an instance.initialized notification. A second call against
// the same instance fails with domain.ErrAlreadyInitialized and leaves
// state untouched.
func (s *FactoryService) Initialize(instanceID, owner, name string) (*InitializeResult, error) {
	if owner != "" && !identityRegex.MatchString(owner) {
		return nil, &domain.ValidationError{
			Message: "owner must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}

	entry, err := s.instances.Get(instanceID)
	if err != nil {
		return nil, err
	}

	merchantID, err := entry.Ledger.Initialize(owner, name)
	if err != nil {
		return nil, err
	}

	if err := s.instances.BindOwner(instanceID, owner); err != nil {
		return nil, err
	}

	result := &InitializeResult{
		InstanceID: instanceID,
		MerchantID: merchantID,
		Owner:      owner,
		Name:       name,
	}

	if s.notifier != nil {
		s.notifier.DispatchInstanceInitialized(result)
	}
	return result, nil
}

// ListInstances returns a page of all created instances in creation
// order, plus the total count. Pagination is 1-based.
func (s *FactoryService) ListInstances(page, limit int) ([]*store.InstanceEntry, int, error) {
	if page < 1 {
		return nil, 0, &domain.ValidationError{Message: "page must be >= 1"}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}
	entries, total := s.instances.List(page, limit)
	return entries, total, nil
}

// ListInstancesByOwner returns every instance bound to the owner.
func (s *FactoryService) ListInstancesByOwner(owner string) ([]*store.InstanceEntry, error) {
	if !identityRegex.MatchString(owner) {
		return nil, &domain.ValidationError{
			Message: "owner must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	return s.instances.ListByOwner(owner), nil
}
