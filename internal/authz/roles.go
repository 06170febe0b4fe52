package authz

import "ninex/internal/models"

var known = map[models.Role]bool{
	models.RoleUser:     true,
	models.RoleReseller: true,
	models.RoleSeller:   true,
	models.RoleAdmin:    true,
	models.RoleGod:      true,
}

// кого может создавать каждая роль
var creatable = map[models.Role][]models.Role{
	models.RoleGod:      {models.RoleAdmin, models.RoleSeller, models.RoleReseller, models.RoleUser},
	models.RoleAdmin:    {models.RoleSeller, models.RoleReseller, models.RoleUser},
	models.RoleSeller:   {models.RoleReseller, models.RoleUser},
	models.RoleReseller: {models.RoleUser},
}

// кому можно переводить кредиты
var creditTargets = map[models.Role][]models.Role{
	models.RoleGod:    {models.RoleAdmin, models.RoleSeller, models.RoleReseller},
	models.RoleAdmin:  {models.RoleSeller, models.RoleReseller},
	models.RoleSeller: {models.RoleSeller, models.RoleReseller},
}

// чьи записи роль видит помимо собственных
var subordinates = map[models.Role][]models.Role{
	models.RoleAdmin:  {models.RoleSeller, models.RoleReseller},
	models.RoleSeller: {models.RoleReseller},
}

func Valid(r models.Role) bool { return known[r] }

func IsGod(r models.Role) bool { return r == models.RoleGod }

// IsPrivileged covers the roles that neither pay for creations nor carry an expiry.
func IsPrivileged(r models.Role) bool { return r == models.RoleGod || r == models.RoleAdmin }

// CanLogin reports whether the panel accepts sign-ins from the role.
func CanLogin(r models.Role) bool {
	switch r {
	case models.RoleGod, models.RoleAdmin, models.RoleSeller, models.RoleReseller:
		return true
	}
	return false
}

func CanCreate(actor, target models.Role) bool {
	return contains(creatable[actor], target)
}

// CreatableRoles lists the account types the actor may create, in display order.
func CreatableRoles(actor models.Role) []models.Role {
	return append([]models.Role(nil), creatable[actor]...)
}

func CanGiveCredits(actor, target models.Role) bool {
	return contains(creditTargets[actor], target)
}

// SubordinateRoles lists the creator roles whose records the actor can see.
func SubordinateRoles(actor models.Role) []models.Role {
	return append([]models.Role(nil), subordinates[actor]...)
}

// NeedsTelegram reports whether accounts of the role must carry a Telegram ID.
func NeedsTelegram(r models.Role) bool {
	return r == models.RoleAdmin || r == models.RoleSeller || r == models.RoleReseller
}

func contains(list []models.Role, r models.Role) bool {
	for _, x := range list {
		if x == r {
			return true
		}
	}
	return false
}
