package txdownload

import "time"

// Config enumerates every tunable the coordinator exposes, per spec.md §6.
type Config struct {
	MaxOrphanTxs          int
	ReservedPeerWeight    int64
	MaxPeerAnnouncements  int
	MaxPeerInFlight       int
	TxidRelayDelay        time.Duration
	NonPreferredDelay     time.Duration
	OverloadedDelay       time.Duration
	GetdataTxInterval     time.Duration
	OrphanAncestorGetdataInterval time.Duration

	RecentRejectsN     uint64
	RecentRejectsP     float64
	RecentConfirmedN   uint64
	RecentConfirmedP   float64

	// MaxReconsiderableRejects bounds the small FIFO set of wtxids held
	// for package-relay reconsideration (spec.md's "small set" language).
	MaxReconsiderableRejects int
}

// DefaultConfig matches every default named in spec.md §6.
func DefaultConfig() Config {
	return Config{
		MaxOrphanTxs:                  100,
		ReservedPeerWeight:            404_000,
		MaxPeerAnnouncements:          5_000,
		MaxPeerInFlight:               100,
		TxidRelayDelay:                2 * time.Second,
		NonPreferredDelay:             2 * time.Second,
		OverloadedDelay:               2 * time.Second,
		GetdataTxInterval:             60 * time.Second,
		OrphanAncestorGetdataInterval: 60 * time.Second,

		RecentRejectsN:   120_000,
		RecentRejectsP:   1e-6,
		RecentConfirmedN: 48_000,
		RecentConfirmedP: 1e-6,

		MaxReconsiderableRejects: 1000,
	}
}
