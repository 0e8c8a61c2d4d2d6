package algofi

// StateRecorder keeps application global state snapshots by round.
type StateRecorder interface {
	RecordState(appID, round uint64, entries []StateEntry) error
}

// StateDatabase records snapshots and serves them back as of a round.
type StateDatabase interface {
	StateRecorder
	HistoricalStateSource
	StorageAddressStore

	// RoundSpan is the lowest and highest recorded round for appID, or zeros
	// when nothing was recorded.
	RoundSpan(appID uint64) (first, last uint64, err error)
}
