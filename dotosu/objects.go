package dotosu

type ObjectKind uint8

const (
	KindNote ObjectKind = iota
	KindHold
)

type HitSoundFlags uint8

const (
	HitSoundNormal  HitSoundFlags = 1 << iota // 1
	HitSoundWhistle                           // 2
	HitSoundFinish                            // 4
	HitSoundClap                              // 8
)

type SampleSet uint8

const (
	SampleNone SampleSet = iota
	SampleNormal
	SampleSoft
	SampleDrum
)

type HitObjectTypeFlags int

const (
	TypeCircle   HitObjectTypeFlags = 1 << iota // 1
	TypeSlider                                  // 2
	TypeNewCombo                                // 4
	TypeSpinner                                 // 8
	TypeHold     HitObjectTypeFlags = 1 << 7    // 128
)

type HitSampleSpec struct {
	NormalSet   SampleSet
	AdditionSet SampleSet
	Index       int
	Volume      int
	Filename    string
}

type HitObject interface {
	Kind() ObjectKind
	StartTime() int
	// EndTime equals StartTime for a plain note.
	EndTime() int
	X() int
	HitSound() HitSoundFlags
	Sample() HitSampleSpec
}

type BaseHO struct {
	PosX     int
	Time     int
	Sound    HitSoundFlags
	SampleHS HitSampleSpec
}

func (b BaseHO) StartTime() int          { return b.Time }
func (b BaseHO) X() int                  { return b.PosX }
func (b BaseHO) HitSound() HitSoundFlags { return b.Sound }
func (b BaseHO) Sample() HitSampleSpec   { return b.SampleHS }

type Note struct{ BaseHO }

func (Note) Kind() ObjectKind { return KindNote }
func (n Note) EndTime() int    { return n.Time }

type Hold struct {
	BaseHO
	End int
}

func (Hold) Kind() ObjectKind { return KindHold }
func (h Hold) EndTime() int    { return h.End }
