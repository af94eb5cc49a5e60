// Package authz holds the role → operation table enforced by the HTTP layer.
// Services never look at roles; a request that reaches them has already been
// allowed here.
package authz

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Role string

const (
	RoleOwner      Role = "owner"
	RoleManager    Role = "manager"
	RoleCashier    Role = "cashier"
	RoleReception  Role = "reception"
	RoleWaiter     Role = "waiter"
	RoleKitchen    Role = "kitchen"
	RoleAccountant Role = "accountant"
	// RoleTableUser is the guest seated at a table, authenticated by a
	// session token instead of a JWT.
	RoleTableUser Role = "table_user"
)

type Operation string

const (
	OrdersCreate       Operation = "orders:create"
	OrdersRead         Operation = "orders:read"
	OrdersUpdateStatus Operation = "orders:update_status"
	PaymentsCreate     Operation = "payments:create"
	TablesWrite        Operation = "tables:write"
	KitchenRead        Operation = "kitchen:read"
	InventoryRead      Operation = "inventory:read"
	InventoryWrite     Operation = "inventory:write"
	AccountingRead     Operation = "accounting:read"

	// All grants every operation.
	All Operation = "*"
)

// Operations lists every concrete operation, in route order.
var Operations = []Operation{
	OrdersCreate, OrdersRead, OrdersUpdateStatus, PaymentsCreate, TablesWrite,
	KitchenRead, InventoryRead, InventoryWrite, AccountingRead,
}

// Policy maps a role to the operations it may perform.
type Policy map[Role]map[Operation]bool

func grant(ops ...Operation) map[Operation]bool {
	m := make(map[Operation]bool, len(ops))
	for _, op := range ops {
		m[op] = true
	}
	return m
}

// DefaultPolicy returns the built-in table.
func DefaultPolicy() Policy {
	return Policy{
		RoleOwner: grant(All),
		RoleManager: grant(
			OrdersCreate, OrdersRead, OrdersUpdateStatus, PaymentsCreate, TablesWrite,
			KitchenRead, InventoryRead, InventoryWrite, AccountingRead,
		),
		RoleCashier:    grant(OrdersRead, OrdersUpdateStatus, PaymentsCreate, TablesWrite),
		RoleReception:  grant(OrdersRead, OrdersUpdateStatus, PaymentsCreate, TablesWrite),
		RoleWaiter:     grant(OrdersCreate, OrdersRead, OrdersUpdateStatus, PaymentsCreate, KitchenRead),
		RoleKitchen:    grant(OrdersRead, OrdersUpdateStatus, KitchenRead),
		RoleAccountant: grant(OrdersRead, AccountingRead),
		RoleTableUser:  grant(OrdersCreate),
	}
}

// Allowed reports whether role may perform op. Unknown roles get nothing.
func (p Policy) Allowed(role Role, op Operation) bool {
	ops, ok := p[role]
	if !ok {
		return false
	}
	return ops[All] || ops[op]
}

// policyFile is the on-disk shape:
//
//	roles:
//	  waiter: [orders:create, orders:read]
//	  host: [tables:write]
type policyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadPolicy starts from DefaultPolicy and replaces the grants of every role
// named in the YAML file at path. An empty path returns the defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return p.merge(data)
}

func (p Policy) merge(data []byte) (Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rbac policy: %w", err)
	}
	known := grant(Operations...)
	known[All] = true
	for role, names := range f.Roles {
		ops := make(map[Operation]bool, len(names))
		for _, n := range names {
			op := Operation(n)
			if !known[op] {
				return nil, fmt.Errorf("rbac policy: role %q: unknown operation %q", role, n)
			}
			ops[op] = true
		}
		p[Role(role)] = ops
	}
	return p, nil
}
