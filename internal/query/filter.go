package query

import (
	"fmt"
	"strings"

	"ninex/internal/models"
)

// Creators is the access allow-list of CreatedBy values. nil means unrestricted.
type Creators []string

func (c Creators) Unrestricted() bool { return c == nil }

func (c Creators) Contains(username string) bool {
	for _, u := range c {
		if u == username {
			return true
		}
	}
	return false
}

const (
	PaymentAll    = ""
	PaymentPaid   = "paid"
	PaymentUnpaid = "unpaid"
)

// Filter is the structured form of a filterByFormula expression.
// Empty fields add no clause.
type Filter struct {
	Creators  Creators
	Search    string
	Payment   string
	Roles     []models.Role
	CreatedBy string
	Username  string
}

// BuildFilter is the list-view filter: access scope, username search and payment status.
func BuildFilter(creators Creators, search, payment string) string {
	return Filter{Creators: creators, Search: search, Payment: payment}.Formula()
}

// Formula renders the filter. One clause is emitted bare, several are AND-ed, none gives "".
func (f Filter) Formula() string {
	var clauses []string

	if f.Creators != nil {
		parts := make([]string, 0, len(f.Creators))
		for _, u := range f.Creators {
			parts = append(parts, fmt.Sprintf("{CreatedBy}='%s'", Escape(u)))
		}
		clauses = append(clauses, "OR("+strings.Join(parts, ",")+")")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		clauses = append(clauses, fmt.Sprintf("SEARCH('%s',{Username})", Escape(s)))
	}
	switch f.Payment {
	case PaymentPaid:
		clauses = append(clauses, "AND({AccountType}='admin',{PaymentStatus}='Paid')")
	case PaymentUnpaid:
		clauses = append(clauses, "AND({AccountType}='admin',OR({PaymentStatus}='Unpaid',{PaymentStatus}=''))")
	}
	if len(f.Roles) == 1 {
		clauses = append(clauses, fmt.Sprintf("{AccountType}='%s'", Escape(string(f.Roles[0]))))
	} else if len(f.Roles) > 1 {
		parts := make([]string, 0, len(f.Roles))
		for _, r := range f.Roles {
			parts = append(parts, fmt.Sprintf("{AccountType}='%s'", Escape(string(r))))
		}
		clauses = append(clauses, "OR("+strings.Join(parts, ",")+")")
	}
	if f.CreatedBy != "" {
		clauses = append(clauses, fmt.Sprintf("{CreatedBy}='%s'", Escape(f.CreatedBy)))
	}
	if f.Username != "" {
		clauses = append(clauses, fmt.Sprintf("{Username}='%s'", Escape(f.Username)))
	}

	switch len(clauses) {
	case 0:
		return ""
	case 1:
		return clauses[0]
	default:
		return "AND(" + strings.Join(clauses, ",") + ")"
	}
}

// Match evaluates the filter against an account the same way the store would.
func (f Filter) Match(a *models.Account) bool {
	if f.Creators != nil && !f.Creators.Contains(a.CreatedBy) {
		return false
	}
	// SEARCH() чувствителен к регистру
	if s := strings.TrimSpace(f.Search); s != "" && !strings.Contains(a.Username, s) {
		return false
	}
	switch f.Payment {
	case PaymentPaid:
		if a.AccountType != models.RoleAdmin || a.PaymentStatus != models.PaymentPaid {
			return false
		}
	case PaymentUnpaid:
		if a.AccountType != models.RoleAdmin || (a.PaymentStatus != models.PaymentUnpaid && a.PaymentStatus != "") {
			return false
		}
	}
	if len(f.Roles) > 0 {
		ok := false
		for _, r := range f.Roles {
			if a.AccountType == r {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.CreatedBy != "" && a.CreatedBy != f.CreatedBy {
		return false
	}
	if f.Username != "" && a.Username != f.Username {
		return false
	}
	return true
}

// Escape quotes a value for a single-quoted formula literal.
func Escape(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}
