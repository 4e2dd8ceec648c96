// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package scoring implements the deterministic credit-scoring kernel.
//
// Everything in this package must be bit-reproducible across hosts: no
// wall-clock reads, no floating point, no iteration over an unordered
// container whose order can leak into the output. This is the code that
// runs inside the zkVM guest (see pkg/zkvm), so any nondeterminism here
// is a soundness bug, not a cosmetic one.
package scoring

import (
	"encoding/json"
	"fmt"
)

// Transaction is a single ledger entry considered by the kernel.
type Transaction struct {
	Timestamp       int64  `json:"timestamp"`
	Amount          uint64 `json:"amount"`
	TransactionType string `json:"transaction_type"`
	Reference       string `json:"reference"`
}

// VolumeRange buckets the merchant's monthly transaction volume.
type VolumeRange uint8

const (
	VolumeVeryLow VolumeRange = iota
	VolumeLow
	VolumeMedium
	VolumeHigh
	VolumeVeryHigh
)

func (v VolumeRange) String() string {
	switch v {
	case VolumeVeryLow:
		return "VeryLow"
	case VolumeLow:
		return "Low"
	case VolumeMedium:
		return "Medium"
	case VolumeHigh:
		return "High"
	case VolumeVeryHigh:
		return "VeryHigh"
	default:
		return "Unknown"
	}
}

func (v VolumeRange) MarshalJSON() ([]byte, error) {
	return []byte(`"` + v.String() + `"`), nil
}

func (v *VolumeRange) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return err
	}
	switch s {
	case "VeryLow":
		*v = VolumeVeryLow
	case "Low":
		*v = VolumeLow
	case "Medium":
		*v = VolumeMedium
	case "High":
		*v = VolumeHigh
	case "VeryHigh":
		*v = VolumeVeryHigh
	default:
		return fmt.Errorf("unknown volume range %q", s)
	}
	return nil
}

// GrowthTrend buckets the merchant's volume trajectory.
type GrowthTrend uint8

const (
	GrowthDeclining GrowthTrend = iota
	GrowthStable
	GrowthGrowing
	GrowthRapid
)

func (g GrowthTrend) String() string {
	switch g {
	case GrowthDeclining:
		return "Declining"
	case GrowthStable:
		return "Stable"
	case GrowthGrowing:
		return "Growing"
	case GrowthRapid:
		return "Rapid"
	default:
		return "Unknown"
	}
}

func (g GrowthTrend) MarshalJSON() ([]byte, error) {
	return []byte(`"` + g.String() + `"`), nil
}

func (g *GrowthTrend) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return err
	}
	switch s {
	case "Declining":
		*g = GrowthDeclining
	case "Stable":
		*g = GrowthStable
	case "Growing":
		*g = GrowthGrowing
	case "Rapid":
		*g = GrowthRapid
	default:
		return fmt.Errorf("unknown growth trend %q", s)
	}
	return nil
}

func unquote(data []byte) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", err
	}
	return s, nil
}

// BusinessMetrics is the bounded set of business-health metrics
// committed to the receipt journal alongside the credit score.
type BusinessMetrics struct {
	MonthlyVolumeRange     VolumeRange `json:"monthly_volume_range"`
	ConsistencyScore       uint8       `json:"consistency_score"`
	GrowthTrend            GrowthTrend `json:"growth_trend"`
	ActiveDaysPercentage   uint8       `json:"active_days_percentage"`
	CustomerDiversityScore uint8       `json:"customer_diversity_score"`
}

// ProofOutput is the public journal of the zkVM receipt: everything a
// verifier learns about the underlying transactions.
type ProofOutput struct {
	TillNumberHash [32]byte        `json:"till_number_hash"`
	PeriodStart    int64           `json:"period_start"`
	PeriodEnd      int64           `json:"period_end"`
	CreditScore    uint32          `json:"credit_score"`
	Metrics        BusinessMetrics `json:"metrics"`
}

const (
	// TransactionTypePayment and TransactionTypeReversal are the only
	// transaction types the kernel admits into scoring.
	TransactionTypePayment  = "Payment"
	TransactionTypeReversal = "Reversal"

	secondsPerDay = 86400
)
