// Package funnel computes the conversion funnel and feature engagement grids.
package funnel

import (
	"github.com/leapstack-labs/payinsight/internal/stats"
	"github.com/leapstack-labs/payinsight/pkg/core"
)

// Stage names in funnel order.
const (
	StageAppOpens             = "App Opens"
	StageFeatureUsed          = "Feature Used"
	StageTransactionStarted   = "Transaction Started"
	StageTransactionCompleted = "Transaction Completed"
)

// Funnel is the four-stage conversion funnel.
//
// FeatureUsed and TransactionStarted are measured over the same population
// (distinct transacting users), so FeatureToTransactionRate is 100 whenever
// anyone transacted. The stage is kept as observed; see Redundant.
type Funnel struct {
	AppOpens             int `json:"app_opens"`
	FeatureUsed          int `json:"feature_used"`
	TransactionStarted   int `json:"transaction_started"`
	TransactionCompleted int `json:"transaction_completed"`

	AppToFeatureRate         float64 `json:"app_to_feature_rate"`
	FeatureToTransactionRate float64 `json:"feature_to_transaction_rate"`
	TransactionSuccessRate   float64 `json:"transaction_success_rate"`
	OverallConversionRate    float64 `json:"overall_conversion_rate"`
}

// Stage is one funnel step for exports.
type Stage struct {
	Stage string `json:"stage"`
	Count int    `json:"count"`
}

// Compute builds the funnel.
func Compute(t core.Tables, _ core.AnalysisConfig) Funnel {
	var f Funnel
	for _, a := range t.Activity() {
		if a.AppOpenCount > 0 {
			f.AppOpens++
		}
	}

	transacting := make(map[string]struct{})
	completed := make(map[string]struct{})
	for _, tx := range t.Transactions() {
		transacting[tx.UserID] = struct{}{}
		if tx.Succeeded() {
			completed[tx.UserID] = struct{}{}
		}
	}
	f.FeatureUsed = len(transacting)
	f.TransactionStarted = len(transacting)
	f.TransactionCompleted = len(completed)

	f.AppToFeatureRate = stats.Percent(float64(f.FeatureUsed), float64(f.AppOpens))
	f.FeatureToTransactionRate = stats.Percent(float64(f.TransactionStarted), float64(f.FeatureUsed))
	f.TransactionSuccessRate = stats.Percent(float64(f.TransactionCompleted), float64(f.TransactionStarted))
	f.OverallConversionRate = stats.Percent(float64(f.TransactionCompleted), float64(f.AppOpens))
	return f
}

// Stages returns the funnel steps in order.
func (f Funnel) Stages() []Stage {
	return []Stage{
		{Stage: StageAppOpens, Count: f.AppOpens},
		{Stage: StageFeatureUsed, Count: f.FeatureUsed},
		{Stage: StageTransactionStarted, Count: f.TransactionStarted},
		{Stage: StageTransactionCompleted, Count: f.TransactionCompleted},
	}
}

// Redundant reports whether the feature-used and transaction-started stages
// measure the same population.
func (f Funnel) Redundant() bool {
	return f.FeatureUsed == f.TransactionStarted
}

// Map returns the funnel keyed by report names.
func (f Funnel) Map() map[string]float64 {
	return map[string]float64{
		"app_opens":                   float64(f.AppOpens),
		"feature_used":                float64(f.FeatureUsed),
		"transaction_started":         float64(f.TransactionStarted),
		"transaction_completed":       float64(f.TransactionCompleted),
		"app_to_feature_rate":         f.AppToFeatureRate,
		"feature_to_transaction_rate": f.FeatureToTransactionRate,
		"transaction_success_rate":    f.TransactionSuccessRate,
		"overall_conversion_rate":     f.OverallConversionRate,
	}
}
