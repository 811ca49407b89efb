package badger

// NewMemoryRunRepository creates an in-memory ledger for testing.
// Caller must close the repository when done.
func NewMemoryRunRepository() (*RunRepository, error) {
	backend, err := OpenBackend("", InMemory())
	if err != nil {
		return nil, err
	}
	return &RunRepository{backend: backend, ownsBackend: true}, nil
}
