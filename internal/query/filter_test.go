package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ninex/internal/airtable"
	"ninex/internal/models"
)

func TestBuildFilter_UnrestrictedWithoutSearchMatchesAll(t *testing.T) {
	assert.Equal(t, "", BuildFilter(nil, "", ""))
	assert.Equal(t, "", BuildFilter(nil, "   ", "bogus"))
}

func TestBuildFilter_Clauses(t *testing.T) {
	assert.Equal(t, "OR({CreatedBy}='alice')", BuildFilter(Creators{"alice"}, "", ""))
	assert.Equal(t,
		"AND(OR({CreatedBy}='alice',{CreatedBy}='bob'),SEARCH('jo',{Username}))",
		BuildFilter(Creators{"alice", "bob"}, "jo", ""))
	assert.Equal(t,
		"AND({AccountType}='admin',{PaymentStatus}='Paid')",
		BuildFilter(nil, "", PaymentPaid))
	assert.Equal(t,
		"AND(SEARCH('x',{Username}),AND({AccountType}='admin',OR({PaymentStatus}='Unpaid',{PaymentStatus}='')))",
		BuildFilter(nil, "x", PaymentUnpaid))
}

func TestFormula_EscapesQuotes(t *testing.T) {
	assert.Equal(t, `SEARCH('o\'neil',{Username})`, BuildFilter(nil, "o'neil", ""))
	assert.Equal(t, `{Username}='a\'b'`, Filter{Username: "a'b"}.Formula())
}

func TestFormula_RolesAndCreator(t *testing.T) {
	f := Filter{Roles: []models.Role{models.RoleSeller, models.RoleReseller}, CreatedBy: "boss"}
	assert.Equal(t, "AND(OR({AccountType}='seller',{AccountType}='reseller'),{CreatedBy}='boss')", f.Formula())

	f = Filter{Creators: Creators{"boss"}, Roles: []models.Role{models.RoleUser}}
	assert.Equal(t, "AND(OR({CreatedBy}='boss'),{AccountType}='user')", f.Formula())
}

func TestMatch(t *testing.T) {
	admin := &models.Account{Username: "Zed", AccountType: models.RoleAdmin, CreatedBy: "god"}

	assert.True(t, Filter{}.Match(admin))
	assert.True(t, Filter{Payment: PaymentUnpaid}.Match(admin))
	assert.False(t, Filter{Payment: PaymentPaid}.Match(admin))
	assert.False(t, Filter{Search: "zed"}.Match(admin))
	assert.True(t, Filter{Search: "Ze"}.Match(admin))
	assert.False(t, Filter{Creators: Creators{}}.Match(admin))
	assert.True(t, Filter{Creators: Creators{"god"}}.Match(admin))
	assert.False(t, Filter{Roles: []models.Role{models.RoleUser}}.Match(admin))
}

func TestSortFor(t *testing.T) {
	assert.Equal(t, []airtable.SortField{{Field: "createdTime", Direction: airtable.Desc}}, SortFor(""))
	assert.Equal(t, []airtable.SortField{{Field: "createdTime", Direction: airtable.Desc}}, SortFor("nope"))
	assert.Equal(t, []airtable.SortField{{Field: "createdTime", Direction: airtable.Asc}}, SortFor(SortOldest))
	assert.Equal(t, []airtable.SortField{{Field: "Username", Direction: airtable.Desc}}, SortFor(SortZA))
	assert.Equal(t, []airtable.SortField{{Field: "Expiry", Direction: airtable.Desc}}, SortFor(SortExpiryDesc))
	assert.Equal(t, SortLatest, NormalizeSort("nope"))

	// значения, перечисленные в документации параметра sort
	for _, opt := range []string{"latest", "oldest", "az", "za", "expiry_desc"} {
		assert.Equal(t, opt, NormalizeSort(opt))
	}
	assert.Equal(t, SortLatest, NormalizeSort("expiry"))
}
