package model

import (
	"fmt"
	"math"
)

// ModeKind tags the rate-control variant held by a Mode.
type ModeKind int

const (
	ModeCRF ModeKind = iota
	ModeLimit
	ModeBitrate
)

func (k ModeKind) String() string {
	switch k {
	case ModeCRF:
		return "crf"
	case ModeLimit:
		return "limit"
	case ModeBitrate:
		return "bitrate"
	default:
		return fmt.Sprintf("mode(%d)", int(k))
	}
}

// Mode is exactly one of CRF(quality), Limit(size in kibibits) or
// CustomBitrate(kbps).
type Mode struct {
	kind  ModeKind
	value int64
}

// CRF returns a constant-quality mode.
func CRF(quality int) Mode {
	return Mode{kind: ModeCRF, value: int64(quality)}
}

// Limit returns a size-fitting mode. The size is in kibibits so that
// dividing by seconds yields kbps.
func Limit(kbit int64) Mode {
	return Mode{kind: ModeLimit, value: kbit}
}

// CustomBitrate returns a fixed video bitrate mode.
func CustomBitrate(kbps int) Mode {
	return Mode{kind: ModeBitrate, value: int64(kbps)}
}

// ModeFromFlags collapses the legacy modeCRF/modeLimit toggles into a Mode.
// CRF wins when both are set.
func ModeFromFlags(modeCRF, modeLimit bool, quality int, limitKbit int64, kbps int) Mode {
	switch {
	case modeCRF:
		return CRF(quality)
	case modeLimit:
		return Limit(limitKbit)
	default:
		return CustomBitrate(kbps)
	}
}

// MaxLimitMiB is the largest size limit whose kibibit count fits in an int64.
const MaxLimitMiB = math.MaxInt64 / 8192

// MiBToKbit converts a size limit in MiB to kibibits, saturating at
// MaxLimitMiB.
func MiBToKbit(mib float64) int64 {
	if mib >= MaxLimitMiB {
		return MaxLimitMiB * 8192
	}
	return int64(mib * 8192)
}

func (m Mode) Kind() ModeKind { return m.kind }

// Quality is the CRF value. Zero for other kinds.
func (m Mode) Quality() int {
	if m.kind != ModeCRF {
		return 0
	}
	return int(m.value)
}

// LimitKbit is the size limit. Zero for other kinds.
func (m Mode) LimitKbit() int64 {
	if m.kind != ModeLimit {
		return 0
	}
	return m.value
}

// Kbps is the literal bitrate. Zero for other kinds.
func (m Mode) Kbps() int {
	if m.kind != ModeBitrate {
		return 0
	}
	return int(m.value)
}

func (m Mode) String() string {
	switch m.kind {
	case ModeCRF:
		return fmt.Sprintf("crf %d", m.value)
	case ModeLimit:
		return fmt.Sprintf("limit %.2f MiB", float64(m.value)/8192)
	case ModeBitrate:
		return fmt.Sprintf("bitrate %dk", m.value)
	default:
		return m.kind.String()
	}
}
