// Package task stores the tasks that belong to projects.
//
// Every task belongs to exactly one project and has at most one assignee.
// Deleting the project deletes its tasks; deleting the assignee leaves the
// task unassigned.
package task
