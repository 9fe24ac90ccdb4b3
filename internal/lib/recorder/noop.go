package recorder

// NoopRecorder is used when no history database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordOutcome(_ *TxOutcome) error            { return nil }
func (n *NoopRecorder) Recent(_ string, _ int) ([]TxOutcome, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                { return nil }
