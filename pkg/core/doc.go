// Package core defines the shared language of the payinsight system.
//
// This package contains:
//   - Input entities (User, Transaction, ActivityRecord) and the Tables read contract
//   - Analysis thresholds (AnalysisConfig) passed explicitly to every engine
//   - Warehouse adapter contract types (AdapterConfig, Column, TableMetadata, Rows)
//
// pkg/core imports only the standard library.
// All other packages depend on core, not the reverse.
package core
