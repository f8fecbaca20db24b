/*
Copyright 2025 Vendahub Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package middleware

import (
	"net/http"
	"strings"
)

// Resource and Action are the two halves of an API key scope. A scope
// string reads "resource:action" and either half may be the * wildcard.
type Resource string

type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionAll    Action = "*"
)

const (
	ResourceWithdrawals    Resource = "withdrawals"
	ResourceBalances       Resource = "balances"
	ResourceLedger         Resource = "ledger"
	ResourceSales          Resource = "sales"
	ResourceFiscalKeys     Resource = "fiscal-keys"
	ResourceSecurityAudits Resource = "security-audits"
	ResourceAPIKeys        Resource = "api-keys"
	ResourceSearch         Resource = "search"
	ResourceBackup         Resource = "backup"
	ResourceAll            Resource = "*"
)

// methodToAction folds HTTP methods into the three scope actions.
// Methods outside this map never pass a permission check.
var methodToAction = map[string]Action{
	http.MethodGet:    ActionRead,
	http.MethodHead:   ActionRead,
	http.MethodPost:   ActionWrite,
	http.MethodPut:    ActionWrite,
	http.MethodPatch:  ActionWrite,
	http.MethodDelete: ActionDelete,
}

// BuildScope renders the scope string for a resource and action.
func BuildScope(resource Resource, action Action) string {
	return string(resource) + ":" + string(action)
}

// ParseScope splits a scope string. Anything not shaped exactly like
// resource:action comes back empty on both halves.
func ParseScope(scope string) (Resource, Action) {
	r, a, found := strings.Cut(scope, ":")
	if !found || strings.Contains(a, ":") {
		return "", ""
	}
	return Resource(r), Action(a)
}

// scopeAllows reports whether a single scope grants action on
// resource, honoring wildcards on either half.
func scopeAllows(scope string, resource Resource, action Action) bool {
	r, a := ParseScope(scope)
	if r != resource && r != ResourceAll {
		return false
	}
	return a == action || a == ActionAll
}

// HasPermission reports whether any scope in the set grants the HTTP
// method on the resource.
func HasPermission(scopes []string, resource Resource, method string) bool {
	action := methodToAction[method]
	if action == "" {
		return false
	}
	for _, scope := range scopes {
		if scopeAllows(scope, resource, action) {
			return true
		}
	}
	return false
}
