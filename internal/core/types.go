package core

import "roster/pkg/domain"

type (
	EntityType         = domain.EntityType
	Employee           = domain.Employee
	EmployeeFields     = domain.EmployeeFields
	Gender             = domain.Gender
	User               = domain.User
	Severity           = domain.Severity
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	RuleView           = domain.RuleView
	Rule               = domain.Rule
	DurableStorage     = domain.DurableStorage
	ErrNotFound        = domain.ErrNotFound
)

const (
	EntityEmployee = domain.EntityEmployee
	EntitySession  = domain.EntitySession
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

const (
	GenderMale   = domain.GenderMale
	GenderFemale = domain.GenderFemale
	GenderOther  = domain.GenderOther
)
