package model

// Outcome classifies a version comparison between a client-sent version
// vc and the server-stored version vs, per the rule in spec §4.1: a row
// is conflicting iff vs > vc; vc == 0 with no existing row is a create;
// anything else is an update that must bump server_ver by one.
type Outcome int

const (
	// OutcomeCreate: no row exists yet on the server.
	OutcomeCreate Outcome = iota
	// OutcomeUpdate: a row exists and the client is not behind it.
	OutcomeUpdate
	// OutcomeConflict: the server has moved ahead of what the client saw.
	OutcomeConflict
)

// Reconcile implements the version-check rule of spec §4.1 for the server
// push path (C3). The client apply path (C4) gates on ShouldSkipApply
// instead.
func Reconcile(rowExists bool, vc, vs int64) Outcome {
	if !rowExists {
		return OutcomeCreate
	}
	if vs > vc {
		return OutcomeConflict
	}
	return OutcomeUpdate
}

// ShouldSkipApply implements the client-side apply gate from spec §4.4.2:
// a local row is skipped when it has already advanced to or past the
// incoming server version. This is the rule that prevents regressions
// (property P3).
func ShouldSkipApply(localExists bool, localVer, incomingVer int64) bool {
	return localExists && localVer >= incomingVer
}
