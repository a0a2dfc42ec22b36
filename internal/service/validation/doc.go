// Package validation implements the email validation pipeline.
//
// A single address moves through format check, typo correction, known-valid
// lookup and the common-domain heuristic, producing a domain.Verdict. Every
// run is appended to the result log, and addresses confirmed by the heuristic
// are cached in the known-valid store.
//
// The service depends only on the KnownValidStore and ResultLog interfaces in
// repository.go. Storage failures never reach the caller: they are logged and
// the verdict degrades to "needs recheck".
package validation
