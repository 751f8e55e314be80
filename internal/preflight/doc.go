// Package preflight runs readiness checks before a harvest: external tool
// availability, directory access, LLM endpoint health, and ntfy reachability.
// Checks report results instead of failing fast so the CLI can show the whole
// picture at once.
package preflight
