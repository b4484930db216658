// Package policy holds the role/operation table consulted by the auth gate and
// the order workflow.
package policy

import (
	"fmt"

	"aeroclub-shop/models"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/rs/zerolog/log"
)

// Operation is an (object, action) pair checked against a role
type Operation struct {
	Object string
	Action string
}

func (o Operation) String() string {
	return o.Object + ":" + o.Action
}

var (
	OrdersReadAny      = Operation{"orders", "read_any"}
	OrdersListAll      = Operation{"orders", "list_all"}
	OrdersUpdateStatus = Operation{"orders", "update_status"}
	OrdersDeleteAny    = Operation{"orders", "delete_any"}
	OrdersStats        = Operation{"orders", "stats"}
	UsersManage        = Operation{"users", "manage"}
)

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Owner operations are gated by ownership in the order workflow, not by role.
var defaultRules = map[string][]Operation{
	models.RoleAdmin: {
		OrdersReadAny, OrdersListAll, OrdersUpdateStatus,
		OrdersDeleteAny, OrdersStats, UsersManage,
	},
}

// Authorizer answers whether a role may perform an operation
type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
}

// New builds the default table. Administrators also hold the user role.
func New() (*Authorizer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	var rules [][]string
	for role, ops := range defaultRules {
		for _, op := range ops {
			rules = append(rules, []string{role, op.Object, op.Action})
		}
	}
	if _, err := e.AddPolicies(rules); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}
	if _, err := e.AddGroupingPolicy(models.RoleAdmin, models.RoleUser); err != nil {
		return nil, fmt.Errorf("failed to load role hierarchy: %w", err)
	}

	return &Authorizer{enforcer: e}, nil
}

// Allowed reports whether role may perform op. An empty role is never allowed
// anything.
func (a *Authorizer) Allowed(role string, op Operation) bool {
	if role == "" {
		return false
	}
	ok, err := a.enforcer.Enforce(role, op.Object, op.Action)
	if err != nil {
		log.Error().Err(err).Str("role", role).Stringer("operation", op).Msg("policy check failed")
		return false
	}
	return ok
}

// IsAdmin reports whether role carries administrative privilege
func (a *Authorizer) IsAdmin(role string) bool {
	return a.Allowed(role, OrdersReadAny)
}
