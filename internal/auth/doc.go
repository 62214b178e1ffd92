// Package auth provides authentication and authorisation for PMFlow Core.
//
// It implements a 3-tier role model (MEMBER, PROJECT_MANAGER, ADMIN) with:
//   - Argon2id password hashing with constant-time comparison
//   - HS256 session tokens with an exclusive expiry check
//   - An in-process revocation registry so logout takes effect immediately
//   - A declarative operation table evaluated by the Enforcer
//   - Optional login throttling, in memory or shared through Redis
//
// Authorisation is two-stage: a static role check from the table, then a
// relation check (self, manager, participant, manager-or-assignee) against
// the target resource. ADMIN skips the relation stage only where a rule sets
// AdminOverride; manager-scoped views are never overridden.
package auth
