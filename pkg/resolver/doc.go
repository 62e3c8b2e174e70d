// Package resolver merges the three access sources — billing entitlement,
// welcome grant, and local override — into one authoritative AccessStatus
// per user session.
//
// # Overview
//
// A Resolver owns one user's session: it reads the override flag once at
// start, performs the initial entitlement query, watches the grant record
// for changes, and listens for billing pushes. Every event triggers a full
// recomputation from current source snapshots; consumers only ever see a
// complete, internally consistent AccessStatus.
//
// While the welcome tier is active a 60-second ticker forces periodic
// re-evaluation so the countdown flips to free without an external event.
// The ticker runs only under that condition and is stopped the moment the
// tier changes away from welcome.
//
// The Manager keeps one Resolver per active session in an LRU cache,
// closing evicted or expired resolvers so their tickers and listeners never
// outlive the session.
//
// # Priority Order
//
// Resolution is strict first-match-wins:
//
//  1. Override flag set        -> premium
//  2. Entitlement active       -> premium
//  3. Welcome grant active     -> welcome
//  4. Otherwise                -> free
package resolver
