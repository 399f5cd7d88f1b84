package flows

// Deps groups the flow dependency sets the Engine builds once at startup.
// API key validation deps are assembled per call because they capture the
// looked-up records.
type Deps struct {
	Login   LoginDeps
	Refresh RefreshDeps
}
