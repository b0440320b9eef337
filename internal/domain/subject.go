package domain

// SubjectType identifies the kind of authenticated caller.
type SubjectType string

const (
	SubjectTypeCustomer SubjectType = "CUSTOMER"
	SubjectTypeAgent    SubjectType = "AGENT"
	SubjectTypeService  SubjectType = "SERVICE"
)
