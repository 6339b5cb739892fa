// Copyright 2026 The LedgerView Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package permission

// Permission names used by the dashboard. The authoritative set comes
// from the permissions endpoint; these constants only keep call sites
// typo-free.
const (
	AccountsView    = "accounts:view"
	AccountsManage  = "accounts:manage"
	PaymentsView    = "payments:view"
	PaymentsCreate  = "payments:create"
	PaymentsApprove = "payments:approve"
	ReportsView     = "reports:view"
	ReportsExport   = "reports:export"
	UsersManage     = "users:manage"
	CompaniesManage = "companies:manage"
	SettingsManage  = "settings:manage"
)

type reqKind int

const (
	reqNone reqKind = iota
	reqSingle
	reqAnyOf
	reqAllOf
)

// Requirement is a gating rule: one permission, any of a list, or all
// of a list. The combinator is explicit rather than inferred from the
// argument's runtime shape, so evaluation is exhaustively checked.
type Requirement struct {
	kind  reqKind
	names []string
}

// None is the empty requirement; it is always satisfied.
func None() Requirement {
	return Requirement{kind: reqNone}
}

// Single requires one named permission. An empty name means no gating.
func Single(name string) Requirement {
	if name == "" {
		return None()
	}
	return Requirement{kind: reqSingle, names: []string{name}}
}

// AnyOf requires at least one of names. An empty list imposes nothing.
func AnyOf(names ...string) Requirement {
	if len(names) == 0 {
		return None()
	}
	return Requirement{kind: reqAnyOf, names: names}
}

// AllOf requires every one of names. An empty list imposes nothing.
func AllOf(names ...string) Requirement {
	if len(names) == 0 {
		return None()
	}
	return Requirement{kind: reqAllOf, names: names}
}
