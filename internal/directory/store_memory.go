package directory

import (
	"context"
	"sync"

	id "auditflow/pkg/domain"
)

// MemoryDirectory is a fixture-style directory for tests and single-node
// runs. Grants and roles are seeded explicitly.
type MemoryDirectory struct {
	mu         sync.RWMutex
	users      map[id.UserID]User
	caps       map[id.UserID]map[string]bool
	roles      map[id.UserID]string
	management map[id.UserID]bool
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		users:      make(map[id.UserID]User),
		caps:       make(map[id.UserID]map[string]bool),
		roles:      make(map[id.UserID]string),
		management: make(map[id.UserID]bool),
	}
}

// AddUser registers a user; subsequent Grant/SetDefaultRole/SetManagement
// calls reference it.
func (d *MemoryDirectory) AddUser(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *MemoryDirectory) Grant(userID id.UserID, capability string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.caps[userID] == nil {
		d.caps[userID] = make(map[string]bool)
	}
	d.caps[userID][capability] = true
}

func (d *MemoryDirectory) SetDefaultRole(userID id.UserID, role string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles[userID] = role
}

func (d *MemoryDirectory) SetManagement(userID id.UserID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.management[userID] = true
}

func (d *MemoryDirectory) UsersWithCapability(ctx context.Context, tenantID id.TenantID, capability string) ([]User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []User
	for userID, caps := range d.caps {
		u, ok := d.users[userID]
		if ok && u.TenantID == tenantID && caps[capability] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *MemoryDirectory) UsersWithDefaultRole(ctx context.Context, tenantID id.TenantID, role string) ([]User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []User
	for userID, r := range d.roles {
		u, ok := d.users[userID]
		if ok && u.TenantID == tenantID && r == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *MemoryDirectory) UsersWithManagementRole(ctx context.Context, tenantID id.TenantID) ([]User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []User
	for userID := range d.management {
		u, ok := d.users[userID]
		if ok && u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}
