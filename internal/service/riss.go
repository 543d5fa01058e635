package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/imwg-risk-calculator/internal/domain"
)

// Values accepted for the R-ISS categorical inputs.
const (
	LDHNormal    = "normal"
	LDHElevated  = "elevated"
	FISHStandard = "standard"
	FISHHigh     = "high"
)

// ISS thresholds.
const (
	issLowB2MCeiling    = 3.5 // mg/L, exclusive
	issAlbuminFloor     = 3.5 // g/dL, inclusive
	issHighB2MThreshold = 5.5 // mg/L, inclusive
)

type rissStage struct {
	stage     string
	name      string
	prognosis string
	medianOS  string
	closing   string
}

var (
	rissStageI = rissStage{"I", "Low Risk", "Excellent", "Not reached",
		"This represents the best prognosis group with longest overall survival. Standard treatment approaches are typically appropriate."}
	rissStageII = rissStage{"II", "Intermediate Risk", "Intermediate", "83 months",
		"This represents intermediate prognosis. Treatment decisions should consider individual patient factors and may benefit from more intensive approaches."}
	rissStageIII = rissStage{"III", "High Risk", "Poor", "43 months",
		"This represents high-risk disease requiring intensive treatment strategies, close monitoring, and consideration for clinical trials."}
)

// ValidateRISSInput collects every problem with an R-ISS staging request.
func ValidateRISSInput(in domain.RISSInput) []string {
	var errs []string
	checkLab := func(label string, v *float64) {
		switch {
		case v == nil:
			errs = append(errs, label+" is required")
		case math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0:
			errs = append(errs, label+" must be a non-negative number")
		}
	}
	checkLab("β2-microglobulin value", in.B2MValue)
	checkLab("Albumin value", in.AlbuminValue)

	switch in.LDHStatus {
	case LDHNormal, LDHElevated:
	case "":
		errs = append(errs, "LDH status is required")
	default:
		errs = append(errs, "LDH status must be 'normal' or 'elevated'")
	}

	switch in.FISHRisk {
	case FISHStandard, FISHHigh:
	case "":
		errs = append(errs, "FISH risk is required")
	default:
		errs = append(errs, "FISH risk must be 'standard' or 'high'")
	}
	return errs
}

// ISSStage returns the International Staging System stage for the given labs.
func ISSStage(b2m, albumin float64) string {
	switch {
	case b2m < issLowB2MCeiling && albumin >= issAlbuminFloor:
		return "I"
	case b2m >= issHighB2MThreshold:
		return "III"
	default:
		return "II"
	}
}

// CalculateRISS computes the Revised ISS stage. Invalid input yields *domain.ValidationErrors.
func CalculateRISS(in domain.RISSInput) (*domain.RISSResult, error) {
	if errs := ValidateRISSInput(in); len(errs) > 0 {
		return nil, domain.NewValidationErrors(errs...)
	}

	b2m, albumin := *in.B2MValue, *in.AlbuminValue
	iss := ISSStage(b2m, albumin)

	var stage rissStage
	switch {
	case iss == "I" && in.FISHRisk == FISHStandard && in.LDHStatus == LDHNormal:
		stage = rissStageI
	case iss == "III" || in.FISHRisk == FISHHigh || in.LDHStatus == LDHElevated:
		stage = rissStageIII
	default:
		stage = rissStageII
	}

	return &domain.RISSResult{
		ISSStage:       iss,
		RISSStage:      stage.stage,
		StageName:      stage.name,
		Prognosis:      stage.prognosis,
		MedianOS:       stage.medianOS,
		Interpretation: rissInterpretation(iss, stage, in),
		LabValues: domain.RISSLabValues{
			B2M:       b2m,
			Albumin:   albumin,
			LDHStatus: in.LDHStatus,
			FISHRisk:  in.FISHRisk,
		},
	}, nil
}

func rissInterpretation(iss string, stage rissStage, in domain.RISSInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient is classified as R-ISS Stage %s (%s) based on:\n\n", stage.stage, stage.name)
	fmt.Fprintf(&b, "ISS Stage: %s\n", iss)
	fmt.Fprintf(&b, "- β2-microglobulin: %s mg/L\n", strconv.FormatFloat(*in.B2MValue, 'f', -1, 64))
	fmt.Fprintf(&b, "- Albumin: %s g/dL\n\n", strconv.FormatFloat(*in.AlbuminValue, 'f', -1, 64))

	b.WriteString("Risk Factors:\n")
	fish := "Standard risk"
	if in.FISHRisk == FISHHigh {
		fish = "High-risk abnormalities present"
	}
	ldh := "Normal"
	if in.LDHStatus == LDHElevated {
		ldh = "Elevated"
	}
	fmt.Fprintf(&b, "- FISH: %s\n", fish)
	fmt.Fprintf(&b, "- LDH: %s\n\n", ldh)

	b.WriteString(stage.closing)
	return b.String()
}
