package database

// Exported for tests.
var (
	MergeCompany = mergeCompany
	NewCompany   = newCompany
)
