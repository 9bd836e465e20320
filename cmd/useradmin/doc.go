// Command useradmin manages the users whose libraries the photo library
// scans.
//
// Usage:
//
//	useradmin add <username> [root]
//	useradmin passwd <username>
//	useradmin root <username> <path>
//	useradmin list
//
// Passwords are read from the terminal without echo and stored as bcrypt
// hashes. A user without a library root exists but is skipped by scans.
//
// Environment:
//
//	DATABASE_DIR - Path to database directory (default: /database)
package main
