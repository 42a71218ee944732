// Package schema declares entity types and their associations and resolves
// them into a Registry.
//
// Types name their table, ordered columns and primary key; associations are
// belongs_to, has_one or has_many, optionally through another association of
// the same owner. Missing names are filled in from conventions:
//
//	Type "Emp"              table "emps", primary key ["id"]
//	belongs_to "job"        target "Job", foreign key ["job_id"]
//	has_many "employees"    target "Employee", foreign key ["<owner>_id"]
//
// A Registry is immutable and safe for concurrent use.
package schema
