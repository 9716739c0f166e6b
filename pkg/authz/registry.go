package authz

const (
	RoleTenantAdmin  = "tenant-admin"
	RoleTenantViewer = "tenant-viewer"
	RoleAnonymous    = "anonymous"
	RoleSuperadmin   = "superadmin"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"
	ActionAdmin = "admin"
)

const DomainGlobal = "global"

const (
	ObjectIAMPing           = "iam.ping"
	ObjectIAMSession        = "iam.session"
	ObjectAssistTemplates   = "assist.templates"
	ObjectAssistQuery       = "assist.query"
	ObjectAssistChat        = "assist.chat"
	ObjectPricebookItems    = "pricebook.items"
	ObjectPricebookPrices   = "pricebook.prices"
	ObjectExpenseRecords    = "expense.records"
	ObjectExpenseRecurring  = "expense.recurring"
	ObjectSuperadminTenants = "superadmin.tenants"
	ObjectSuperadminSession = "superadmin.session"
)
