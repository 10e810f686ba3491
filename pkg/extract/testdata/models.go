// Package testdata contains tagged types for schema extraction tests.
package testdata

// State is the lifecycle state of a volume.
type State int32

const (
	StateUnknown State = iota
	StateActive
	StateDeleted
)

// Tier is a storage tier.
type Tier uint8

const (
	TierHot  Tier = 0
	TierCold Tier = 1
)

// Count has no constants and stays a plain integer.
type Count uint32

// Volume is a storage volume.
type Volume struct {
	Name      string            `wire:"1"`
	SizeBytes uint64            `wire:"2"`
	Labels    map[string]string `wire:"3"`
	State     State             `wire:"4"`
	Snapshots []*Snapshot       `wire:"5"`
	BlockIDs  []int64           `wire:"6,zigzag,packed"`
	NFSPath   string            `wire:"7,oneof=source"`
	ISCSILun  uint32            `wire:"8,oneof=source"`
	Checksum  [32]byte          `wire:"9"`
	Tier      Tier              `wire:"10"`
	Replicas  Count             `wire:"11"`
	Offset    int64             `wire:"12,fixed"`
	OldPool   string            `wire:"13,deprecated,name=pool"`
	Cache     string            `wire:"-"`
	Callback  func()            `wire:"14"`
}

// Snapshot is a point-in-time copy of a volume.
type Snapshot struct {
	ID        string
	CreatedAt int64
	Parent    *Snapshot
}

// Pool groups volumes.
type Pool struct {
	Name    string             `wire:"1"`
	Volumes map[string]*Volume `wire:"2"`
	Weights []float64          `wire:"3"`
	Ratio   float32            `wire:"4"`
	Enabled bool               `wire:"5"`
	Extra   string
}

// privateType is an unexported type that is excluded by default.
type privateType struct {
	Value int64 `wire:"1"`
}
