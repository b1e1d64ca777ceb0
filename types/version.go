package types

// Version is the canonical project version.
// All components (CLI, HTTP surface, adapter payloads) share this version
// per the lockstep versioning policy.
const Version = "0.1.0"
