package rbac

// Default role policy. Reviewers are additionally scoped to one assessment
// by the auth middleware; the permission only opens the endpoint group.
var RolePermissions = map[string][]string{
	"student": {
		"course:view",
		"assessment:view",
		"reflection:create",
		"reflection:view-own",
		"competency:score",
		"submission:create",
		"submission:view",
		"user:change_password",
	},
	"reviewer": {
		"assessment:view",
		"overview:view",
		"scores:edit",
		"submission:view",
	},
	"teacher": {
		"course:*",
		"team:*",
		"student:*",
		"assessment:*",
		"scores:*",
		"overview:view",
		"export:run",
		"submission:*",
		"reflection:view-all",
		"competency:*",
		"note:*",
		"invite:*",
		"gradesync:run",
		"audit:view",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
