// Package cli implements the adminkit command-line client.
//
// # Commands
//
// login: Run the OAuth2 password grant against /users/login and save the
// access token (mode 0600) under the user config directory
//
//	adminkit login -server https://admin.example.com -user admin
//
// users: list, get, me and export
//
//	adminkit users list -page 2 -name ad
//	adminkit users export -out users.xlsx
//
// roles and resources
//
//	adminkit roles list
//	adminkit roles set-resources 2 1,3,4
//	adminkit resources tree
//
// todos: list, add, done and rm
//
//	adminkit todos add -description "before friday" write report
//	adminkit todos done 7
//
// # Environment
//
// ADMINKIT_SERVER and ADMINKIT_TOKEN provide defaults for -server and
// -token; ADMINKIT_SESSION_FILE moves the saved session.
package cli
