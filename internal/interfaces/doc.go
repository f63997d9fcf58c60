// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Identity
//
//   - identity.Service: auth-state stream plus credential operations
//     (internal/identity/service.go). The session provider is the only consumer.
//   - clients.Opener: opens one identity client per browser (internal/clients/registry.go)
//
// ## Persistence
//
//   - docstore.Store: document writes keyed by collection and key (internal/docstore/store.go)
//
// ## Background Work
//
//   - tasks.AuditEventCleaner, tasks.SignInPurger: targets of queued cleanups
//   - scheduler.Evictor, scheduler.Enqueuer: collaborators of periodic jobs
//
// # Adding a New Document Store
//
//  1. Create a sub-package of internal/docstore/
//
//     type Store struct { client *etcd.Client }
//
//     func (s *Store) WriteDocument(ctx context.Context, collection, key string, value any) error {
//         if err := docstore.Validate(collection, key); err != nil {
//             return &docstore.Error{Op: "write", Collection: collection, Key: key, Err: err}
//         }
//         // encode value as JSON and replace the stored document
//     }
//
//  2. Add a config.StoreBackend value and a case in entrypoint's openStore
//
//  3. Add compile-time check in checks.go:
//
//     var _ docstore.Store = (*etcdstore.Store)(nil)
//
// # Adding a New Identity Backend
//
// Implement identity.Service plus Close, so clients.Registry can tear it down.
// Subscribe must deliver the current identity to a new listener, and every
// later change in order. Errors should be *identity.Error values so the HTTP
// layer can map their codes.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for examples.
package interfaces
