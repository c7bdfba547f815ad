// Package identity is the user identity and credential core: accounts,
// their lifecycle, password authentication, bearer tokens, password resets
// and the access policy that sits on top of them.
//
// Components:
//   - Store is the persistence contract. NewBunStore implements it over
//     bun on PostgreSQL or SQLite and turns unique constraint violations
//     into AlreadyExists errors naming the field.
//   - UserManager owns create, update, delete, lookups, status changes and
//     password changes. Each call runs in one Store unit of work.
//   - UserStateMachine holds the single status transition function. The
//     default policy allows every transition; inject a guarded one with
//     WithTransitionPolicy.
//   - Authenticator registers accounts and exchanges credentials for tokens
//     from a TokenService. It never looks at status.
//   - PasswordResetter mails single use reset tokens and consumes them.
//   - Allow and Authorizer decide who may act on which identity. Authorizer
//     re-reads the caller so suspended accounts are denied even with a
//     valid token.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter for registration, login,
//     lifecycle and password events. Sinks run best-effort (errors are
//     logged) so you can forward to a database or queue without blocking.
//
// Configuration:
//   - LoadConfig reads IDENTITY_* variables and optional .env files.
//     ResolveSigningKey applies the per environment key strategy and fails
//     when staging or production lack their secret.
package identity
