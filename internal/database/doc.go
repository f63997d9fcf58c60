// Package database opens the application's SQLite database and migrates
// its schema.
//
// Tables:
//
//	accounts      identity backend accounts
//	sign_ins      persisted sign-ins per application client
//	documents     document store (sqlite backend)
//	audit_events  authentication audit trail, see database/audit
//	sessions      browser sessions, created by web.NewSessionManager
//
// Domain code receives db.DB and builds its own repository on top:
//
//	db, err := database.NewDatabase(cfg.Database.Path, database.WithLogger(logger))
//	auditRepo := audit.NewRepository(db.DB)
package database
