// Package command owns the command surface contract.
//
// Ownership boundary:
// - wire envelopes for both transports
// - transport and safety-tier enums
// - the startup-time command registry
//
// The registry is the single place a command's transport eligibility is
// decided. Listeners consult it; they never hold eligibility rules of
// their own.
package command
