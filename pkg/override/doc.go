// Package override holds the local premium-override flag: a persisted
// boolean, default false, used only by test and QA builds to force the
// premium tier regardless of billing state. The flag is read once when a
// session resolver starts; it is not a live production input.
package override
