// Package roles is the capability table the engine consults at call time:
// principal → role set. Authorization is never cached across calls; a revoked
// issuer loses the ability to have new vouchers honored immediately.
package roles

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Role names.
const (
	RoleAdmin  = "admin"
	RoleMinter = "minter"
)

// Table maps principals to their granted roles.
type Table struct {
	mu     sync.RWMutex
	grants map[common.Address]map[string]struct{}
}

func NewTable() *Table {
	return &Table{grants: make(map[common.Address]map[string]struct{})}
}

// NewTableWithAdmin seeds the table with an initial admin who also holds the
// minter role (deployer semantics).
func NewTableWithAdmin(admin common.Address) *Table {
	t := NewTable()
	t.Grant(admin, RoleAdmin)
	t.Grant(admin, RoleMinter)
	return t
}

func (t *Table) Grant(principal common.Address, role string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.grants[principal]
	if !ok {
		set = make(map[string]struct{})
		t.grants[principal] = set
	}
	set[role] = struct{}{}
}

func (t *Table) Revoke(principal common.Address, role string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if set, ok := t.grants[principal]; ok {
		delete(set, role)
	}
}

func (t *Table) HasRole(principal common.Address, role string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.grants[principal][role]
	return ok
}

// IsAuthorizedIssuer reports whether the principal may currently sign
// vouchers the engine will honor.
func (t *Table) IsAuthorizedIssuer(principal common.Address) bool {
	return t.HasRole(principal, RoleMinter)
}

// IsAdmin reports whether the principal may use the administrative surface
// (toggles, reserved minting, withdrawal, role management).
func (t *Table) IsAdmin(principal common.Address) bool {
	return t.HasRole(principal, RoleAdmin)
}
