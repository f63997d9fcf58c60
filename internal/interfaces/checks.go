package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/healthbook/internal/audit"
	"github.com/mrlokans/healthbook/internal/clients"
	"github.com/mrlokans/healthbook/internal/database"
	"github.com/mrlokans/healthbook/internal/docstore"
	"github.com/mrlokans/healthbook/internal/docstore/memstore"
	"github.com/mrlokans/healthbook/internal/docstore/redisstore"
	"github.com/mrlokans/healthbook/internal/docstore/sqlstore"
	"github.com/mrlokans/healthbook/internal/http"
	"github.com/mrlokans/healthbook/internal/identity"
	"github.com/mrlokans/healthbook/internal/identity/local"
	"github.com/mrlokans/healthbook/internal/scheduler"
	"github.com/mrlokans/healthbook/internal/tasks"
)

// =============================================================================
// Identity
// =============================================================================

// Service implementations
var _ identity.Service = (*local.Client)(nil)
var _ clients.Service = (*local.Client)(nil)

// =============================================================================
// Document Stores
// =============================================================================

var _ docstore.Store = (*sqlstore.Store)(nil)
var _ docstore.Store = (*redisstore.Store)(nil)
var _ docstore.Store = (*memstore.Store)(nil)

// =============================================================================
// Health Checks
// =============================================================================

var _ http.Pinger = (*database.Database)(nil)
var _ http.Pinger = (*redisstore.Store)(nil)

// =============================================================================
// Background Work
// =============================================================================

// Task processors
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ tasks.SignInPurger = (*local.Backend)(nil)

// Scheduler collaborators
var _ scheduler.Evictor = (*clients.Registry)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)
