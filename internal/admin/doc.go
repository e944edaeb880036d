// Package admin implements workflow-admin, an operator tool for tasks that
// have no HTTP route: seeding the first administrator, purging expired reset
// tokens and checking which connection strategy reaches the database.
package admin
