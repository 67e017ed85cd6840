package metadata

import (
	"fmt"
	"strings"
)

// AbnormalType classifies the failure reported on a corrective maintenance work order.
type AbnormalType string

const (
	AbnormalNoise      AbnormalType = "Abnormal Noise"
	AbnormalVibration  AbnormalType = "Abnormal Vibration"
	AbnormalOverheat   AbnormalType = "Overheating"
	AbnormalLeakage    AbnormalType = "Leakage"
	AbnormalElectrical AbnormalType = "Electrical Fault"
	AbnormalCorrosion  AbnormalType = "Corrosion"
	AbnormalOther      AbnormalType = "Other"
)

var abnormalTypes = []AbnormalType{
	AbnormalNoise,
	AbnormalVibration,
	AbnormalOverheat,
	AbnormalLeakage,
	AbnormalElectrical,
	AbnormalCorrosion,
	AbnormalOther,
}

func (a AbnormalType) IsValid() bool {
	for _, known := range abnormalTypes {
		if a == known {
			return true
		}
	}
	return false
}

// NewAbnormalType matches value case-insensitively against the known types and
// returns the canonical spelling.
func NewAbnormalType(value string) (AbnormalType, error) {
	normalized := strings.Join(strings.Fields(value), " ")
	for _, known := range abnormalTypes {
		if strings.EqualFold(normalized, string(known)) {
			return known, nil
		}
	}

	names := make([]string, len(abnormalTypes))
	for i, known := range abnormalTypes {
		names[i] = string(known)
	}
	return AbnormalType(normalized), fmt.Errorf(
		"value not valid, only valid values are: %s", strings.Join(names, ", "),
	)
}

func AbnormalTypes() []AbnormalType {
	out := make([]AbnormalType, len(abnormalTypes))
	copy(out, abnormalTypes)
	return out
}

func (a AbnormalType) String() string {
	return string(a)
}
