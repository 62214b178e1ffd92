// Package project stores projects, their manager and their member set.
//
// A project has exactly one manager and any number of members. Both are
// user IDs; the repository joins usernames in for display. Project names are
// unique. The start date is the creation day and the end date is optional.
//
// SQLiteRepository also implements auth.TargetResolver so the access control
// enforcer can check manager and member relations without importing this
// package.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use from multiple goroutines.
package project
